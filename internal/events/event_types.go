package events

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventIssueReported       EventType = "issue_reported"
	EventIssueAssigned       EventType = "issue_assigned"
	EventIssueStatusChanged  EventType = "issue_status_changed"
	EventEscalationRequested EventType = "escalation_requested"
	EventEscalationAccepted  EventType = "escalation_accepted"
	EventEscalationRejected  EventType = "escalation_rejected"
	EventPointsCredited      EventType = "points_credited"
	EventBadgeAwarded        EventType = "badge_awarded"
)

// Actor encapsulates actor metadata for an event. A nil UserID means the
// event was produced by the system (SLA sweep).
type Actor struct {
	UserID *string         `json:"user_id,omitempty"`
	Role   domain.UserRole `json:"role,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	IssueID   string      `json:"issue_id,omitempty"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// IssueReportedPayload payload.
type IssueReportedPayload struct {
	ComplaintID string               `json:"complaint_id"`
	Category    domain.IssueCategory `json:"category"`
	Severity    domain.IssueSeverity `json:"severity"`
	Authority   domain.AuthorityType `json:"authority"`
	ReporterID  string               `json:"reporter_id"`
	Title       string               `json:"title"`
}

// IssueAssignedPayload payload.
type IssueAssignedPayload struct {
	AssigneeID string               `json:"assignee_id"`
	Authority  domain.AuthorityType `json:"authority"`
}

// IssueStatusChangedPayload payload.
type IssueStatusChangedPayload struct {
	OldStatus domain.IssueStatus `json:"old_status"`
	NewStatus domain.IssueStatus `json:"new_status"`
	Comment   string             `json:"comment,omitempty"`
}

// EscalationRequestedPayload payload.
type EscalationRequestedPayload struct {
	EscalationID  string               `json:"escalation_id"`
	FromAuthority domain.AuthorityType `json:"from_authority"`
	ToAuthority   domain.AuthorityType `json:"to_authority"`
	Level         int                  `json:"level"`
	Reason        string               `json:"reason"`
}

// EscalationDecidedPayload payload for accept/reject events.
type EscalationDecidedPayload struct {
	EscalationID string                  `json:"escalation_id"`
	Status       domain.EscalationStatus `json:"status"`
	ToAuthority  domain.AuthorityType    `json:"to_authority"`
	Level        int                     `json:"level"`
}

// PointsCreditedPayload payload.
type PointsCreditedPayload struct {
	ReporterID string `json:"reporter_id"`
	Amount     int    `json:"amount"`
	Reason     string `json:"reason"`
	NewTotal   int    `json:"new_total"`
}

// BadgeAwardedPayload payload.
type BadgeAwardedPayload struct {
	ReporterID string `json:"reporter_id"`
	Badge      string `json:"badge"`
}
