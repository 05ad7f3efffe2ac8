package domain

import "time"

// IssueStatus enumerates lifecycle states for issues.
type IssueStatus string

const (
	IssueStatusReported   IssueStatus = "reported"
	IssueStatusAssigned   IssueStatus = "assigned"
	IssueStatusInProgress IssueStatus = "in-progress"
	IssueStatusResolved   IssueStatus = "resolved"
	IssueStatusClosed     IssueStatus = "closed"
)

// Timeline event kinds that are not lifecycle states. Escalation entries are
// recorded on the timeline without changing the issue status.
const (
	TimelineEventEscalated          = "escalated"
	TimelineEventEscalationAccepted = "escalation-accepted"
)

// IssueCategory enumerates the reportable problem categories.
type IssueCategory string

const (
	CategoryPothole     IssueCategory = "pothole"
	CategoryStreetlight IssueCategory = "streetlight"
	CategoryWater       IssueCategory = "water"
	CategoryTrain       IssueCategory = "train"
	CategoryGarbage     IssueCategory = "garbage"
	CategoryOther       IssueCategory = "other"
)

// KnownCategories lists every valid category value.
func KnownCategories() []IssueCategory {
	return []IssueCategory{
		CategoryPothole,
		CategoryStreetlight,
		CategoryWater,
		CategoryTrain,
		CategoryGarbage,
		CategoryOther,
	}
}

// ValidCategory reports whether the value is a known category.
func ValidCategory(c IssueCategory) bool {
	for _, known := range KnownCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// IssueSeverity enumerates SLA urgency.
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "low"
	SeverityMedium   IssueSeverity = "medium"
	SeverityHigh     IssueSeverity = "high"
	SeverityCritical IssueSeverity = "critical"
)

// ValidSeverity reports whether the value is a known severity.
func ValidSeverity(s IssueSeverity) bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Location is the free-form place a problem was reported at.
type Location struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// TimelineEntry is one append-only record of a status change on an issue.
type TimelineEntry struct {
	ID        int64
	IssueID   string
	Status    string
	Comment   string
	ActorID   *string
	CreatedAt time.Time
}

// Issue is the aggregate for reported civic problems.
type Issue struct {
	ID              string
	ComplaintID     string
	Title           string
	Description     string
	Category        IssueCategory
	Severity        IssueSeverity
	Status          IssueStatus
	Location        Location
	Photos          []string
	TrainNumber     *string
	ReporterID      string
	AssigneeID      *string
	Authority       AuthorityType
	EscalationLevel int
	SLADeadline     time.Time
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// Timeline is hydrated on detail reads, ordered by application order.
	Timeline []TimelineEntry
}

// Settled reports whether the issue has reached resolved or closed. Settled
// issues are never escalated.
func (i *Issue) Settled() bool {
	return i.Status == IssueStatusResolved || i.Status == IssueStatusClosed
}
