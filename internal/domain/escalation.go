package domain

import "time"

// EscalationStatus enumerates decision states for escalation requests.
type EscalationStatus string

const (
	EscalationPending  EscalationStatus = "pending"
	EscalationAccepted EscalationStatus = "accepted"
	EscalationRejected EscalationStatus = "rejected"
)

// Escalation is one request to move an issue up the authority chain.
// It is immutable once accepted or rejected.
type Escalation struct {
	ID            string
	IssueID       string
	FromAuthority AuthorityType
	ToAuthority   AuthorityType
	Reason        string
	Level         int
	Status        EscalationStatus
	RequestedBy   *string
	CreatedAt     time.Time
	DecidedAt     *time.Time
}
