package dto

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// EscalateRequest payload.
type EscalateRequest struct {
	Reason string `json:"reason"`
}

// EscalationResponse represents an escalation record.
type EscalationResponse struct {
	ID            string                  `json:"id"`
	IssueID       string                  `json:"issue_id"`
	FromAuthority domain.AuthorityType    `json:"from_authority"`
	ToAuthority   domain.AuthorityType    `json:"to_authority"`
	Reason        string                  `json:"reason"`
	Level         int                     `json:"escalation_level"`
	Status        domain.EscalationStatus `json:"status"`
	CreatedAt     time.Time               `json:"created_at"`
	DecidedAt     *time.Time              `json:"decided_at,omitempty"`
}

// NewEscalationResponse maps a domain escalation.
func NewEscalationResponse(escalation *domain.Escalation) EscalationResponse {
	return EscalationResponse{
		ID:            escalation.ID,
		IssueID:       escalation.IssueID,
		FromAuthority: escalation.FromAuthority,
		ToAuthority:   escalation.ToAuthority,
		Reason:        escalation.Reason,
		Level:         escalation.Level,
		Status:        escalation.Status,
		CreatedAt:     escalation.CreatedAt,
		DecidedAt:     escalation.DecidedAt,
	}
}

// AuthorityResponse represents an authority with its workload counters.
type AuthorityResponse struct {
	Name               string               `json:"name"`
	Type               domain.AuthorityType `json:"type"`
	Email              string               `json:"email"`
	City               string               `json:"city,omitempty"`
	SLAHours           int                  `json:"sla_hours"`
	EscalationHours    int                  `json:"escalation_threshold_hours"`
	ActiveIssues       int                  `json:"active_issues"`
	ResolvedIssues     int                  `json:"resolved_issues"`
	AvgResolutionHours float64              `json:"avg_resolution_hours"`
}

// NewAuthorityResponse maps a domain authority.
func NewAuthorityResponse(authority *domain.Authority) AuthorityResponse {
	return AuthorityResponse{
		Name:               authority.Name,
		Type:               authority.Type,
		Email:              authority.Email,
		City:               authority.City,
		SLAHours:           authority.SLAHours,
		EscalationHours:    authority.EscalationThresholdHrs,
		ActiveIssues:       authority.ActiveIssues,
		ResolvedIssues:     authority.ResolvedIssues,
		AvgResolutionHours: authority.AvgResolutionHours,
	}
}
