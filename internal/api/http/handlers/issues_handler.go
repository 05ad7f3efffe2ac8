package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/dto"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// IssuesHandler manages issue reporting and lifecycle endpoints.
type IssuesHandler struct {
	issues *service.IssueService
}

// NewIssuesHandler constructs handler.
func NewIssuesHandler(issueService *service.IssueService) *IssuesHandler {
	return &IssuesHandler{issues: issueService}
}

// Create POST /issues.
func (h *IssuesHandler) Create(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.CreateIssueRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	issue, newBadges, err := h.issues.Report(c.Context(), principal.User.ID, service.ReportInput{
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Severity:    req.Severity,
		Location: domain.Location{
			Address:   req.Location.Address,
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
		},
		Photos:      req.Photos,
		TrainNumber: req.TrainNumber,
	})
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"complaint_id": issue.ComplaintID,
			"issue":        dto.NewIssueDetail(issue),
			"new_badges":   newBadges,
		},
	})
}

// List GET /issues.
func (h *IssuesHandler) List(c *fiber.Ctx) error {
	filter := parseIssueQuery(c)
	issues, err := h.issues.List(c.Context(), filter)
	if err != nil {
		return err
	}
	items := make([]dto.IssueSummary, 0, len(issues))
	for i := range issues {
		items = append(items, dto.NewIssueSummary(&issues[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /issues/:id. Accepts internal key or complaint identifier.
func (h *IssuesHandler) Get(c *fiber.Ctx) error {
	issue, err := h.issues.Get(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueDetail(issue)})
}

// Transition POST /issues/:id/status.
func (h *IssuesHandler) Transition(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.Status == "" {
		return apperrors.NewValidationError("status required", nil)
	}

	issue, err := h.issues.Advance(c.Context(), c.Params("id"), req.Status, req.Comment, principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueSummary(issue)})
}

// Assign POST /issues/:id/assign.
func (h *IssuesHandler) Assign(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}
	var req dto.AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.AssigneeID == "" {
		return apperrors.NewValidationError("assignee_id required", nil)
	}

	issue, err := h.issues.Assign(c.Context(), c.Params("id"), req.AssigneeID, principal.User.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIssueSummary(issue)})
}

func parseIssueQuery(c *fiber.Ctx) repository.IssueFilter {
	filter := repository.IssueFilter{}

	if statuses := splitQuery(c.Query("status")); len(statuses) > 0 {
		for _, s := range statuses {
			filter.Statuses = append(filter.Statuses, domain.IssueStatus(s))
		}
	}
	if categories := splitQuery(c.Query("category")); len(categories) > 0 {
		for _, cat := range categories {
			filter.Categories = append(filter.Categories, domain.IssueCategory(cat))
		}
	}
	if severities := splitQuery(c.Query("severity")); len(severities) > 0 {
		for _, s := range severities {
			filter.Severities = append(filter.Severities, domain.IssueSeverity(s))
		}
	}
	if authority := c.Query("authority"); authority != "" {
		value := domain.AuthorityType(authority)
		filter.Authority = &value
	}
	if reporter := c.Query("reporter"); reporter != "" {
		filter.ReporterID = &reporter
	}
	if assignee := c.Query("assignee"); assignee != "" {
		filter.AssigneeID = &assignee
	}

	if limit, err := strconv.Atoi(c.Query("limit")); err == nil {
		filter.Limit = limit
	}
	if offset, err := strconv.Atoi(c.Query("offset")); err == nil {
		filter.Offset = offset
	}
	return filter
}

func splitQuery(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
