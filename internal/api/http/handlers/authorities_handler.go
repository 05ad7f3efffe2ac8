package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/dto"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// AuthoritiesHandler exposes the authority directory and per-authority queues.
type AuthoritiesHandler struct {
	authorities repository.AuthorityRepository
	issues      *service.IssueService
}

// NewAuthoritiesHandler constructs handler.
func NewAuthoritiesHandler(authorities repository.AuthorityRepository, issueService *service.IssueService) *AuthoritiesHandler {
	return &AuthoritiesHandler{authorities: authorities, issues: issueService}
}

// List GET /authorities.
func (h *AuthoritiesHandler) List(c *fiber.Ctx) error {
	authorities, err := h.authorities.List(c.Context())
	if err != nil {
		return err
	}
	items := make([]dto.AuthorityResponse, 0, len(authorities))
	for i := range authorities {
		items = append(items, dto.NewAuthorityResponse(&authorities[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Get GET /authorities/:type.
func (h *AuthoritiesHandler) Get(c *fiber.Ctx) error {
	authorityType := domain.AuthorityType(c.Params("type"))
	if !domain.ValidAuthorityType(authorityType) {
		return apperrors.NewValidationError("unknown authority type", map[string]any{"type": authorityType})
	}
	authority, err := h.authorities.GetByType(c.Context(), authorityType)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewAuthorityResponse(authority)})
}

// Issues GET /authorities/:type/issues. The working queue for one authority.
func (h *AuthoritiesHandler) Issues(c *fiber.Ctx) error {
	authorityType := domain.AuthorityType(c.Params("type"))
	if !domain.ValidAuthorityType(authorityType) {
		return apperrors.NewValidationError("unknown authority type", map[string]any{"type": authorityType})
	}

	filter := parseIssueQuery(c)
	filter.Authority = &authorityType

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
