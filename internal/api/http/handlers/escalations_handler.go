package handlers

import (
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/dto"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// EscalationsHandler manages escalation request and decision endpoints.
type EscalationsHandler struct {
	issues      *service.IssueService
	escalations *service.EscalationService
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(issueService *service.IssueService, escalationService *service.EscalationService) *EscalationsHandler {
	return &EscalationsHandler{issues: issueService, escalations: escalationService}
}

// Escalate POST /issues/:id/escalate.
func (h *EscalationsHandler) Escalate(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.EscalateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Reason == "" {
		return apperrors.NewValidationError("reason required", nil)
	}

	issue, err := h.issues.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}

	result, err := h.escalations.Request(c.Context(), issue.ID, req.Reason, &principal.User.ID)
	if err != nil {
		return err
	}
	if result.AlreadyAtTop {
		return c.JSON(fiber.Map{
			"data": fiber.Map{
				"at_top":    true,
				"authority": issue.Authority,
			},
		})
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewEscalationResponse(result.Escalation)})
}

// ListForIssue GET /issues/:id/escalations.
func (h *EscalationsHandler) ListForIssue(c *fiber.Ctx) error {
	issue, err := h.issues.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	escalations, err := h.escalations.ListForIssue(c.Context(), issue.ID)
	if err != nil {
		return err
	}
	items := make([]dto.EscalationResponse, 0, len(escalations))
	for i := range escalations {
		items = append(items, dto.NewEscalationResponse(&escalations[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// ListPending GET /escalations/pending.
func (h *EscalationsHandler) ListPending(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	escalations, err := h.escalations.ListPending(c.Context(), limit, offset)
	if err != nil {
		return err
	}
	items := make([]dto.EscalationResponse, 0, len(escalations))
	for i := range escalations {
		items = append(items, dto.NewEscalationResponse(&escalations[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Accept POST /escalations/:id/accept.
func (h *EscalationsHandler) Accept(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	escalation, err := h.escalations.Accept(c.Context(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationResponse(escalation)})
}

// Reject POST /escalations/:id/reject.
func (h *EscalationsHandler) Reject(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	escalation, err := h.escalations.Reject(c.Context(), c.Params("id"), principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewEscalationResponse(escalation)})
}
