package dto

import (
	"time"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

// CreateIssueRequest payload.
type CreateIssueRequest struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Category    domain.IssueCategory `json:"category"`
	Severity    domain.IssueSeverity `json:"severity"`
	Location    LocationPayload      `json:"location"`
	Photos      []string             `json:"photos"`
	TrainNumber *string              `json:"train_number,omitempty"`
}

// LocationPayload mirrors the free-form issue location.
type LocationPayload struct {
	Address   string   `json:"address"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// TransitionRequest payload for status changes.
type TransitionRequest struct {
	Status  domain.IssueStatus `json:"status"`
	Comment string             `json:"comment"`
}

// AssignRequest payload.
type AssignRequest struct {
	AssigneeID string `json:"assignee_id"`
}

// TimelineEntryResponse is one audit record.
type TimelineEntryResponse struct {
	Status    string    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// IssueSummary response.
type IssueSummary struct {
	ID              string               `json:"id"`
	ComplaintID     string               `json:"complaint_id"`
	Title           string               `json:"title"`
	Category        domain.IssueCategory `json:"category"`
	Severity        domain.IssueSeverity `json:"severity"`
	Status          domain.IssueStatus   `json:"status"`
	Authority       domain.AuthorityType `json:"authority"`
	EscalationLevel int                  `json:"escalation_level"`
	SLADeadline     time.Time            `json:"sla_deadline"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}

// IssueDetailResponse provides full issue info including the timeline.
type IssueDetailResponse struct {
	IssueSummary
	Description string                  `json:"description"`
	Location    LocationPayload         `json:"location"`
	Photos      []string                `json:"photos,omitempty"`
	TrainNumber *string                 `json:"train_number,omitempty"`
	ReporterID  string                  `json:"reporter_id"`
	AssigneeID  *string                 `json:"assignee_id,omitempty"`
	Timeline    []TimelineEntryResponse `json:"timeline"`
}

// NewIssueSummary maps a domain issue.
func NewIssueSummary(issue *domain.Issue) IssueSummary {
	return IssueSummary{
		ID:              issue.ID,
		ComplaintID:     issue.ComplaintID,
		Title:           issue.Title,
		Category:        issue.Category,
		Severity:        issue.Severity,
		Status:          issue.Status,
		Authority:       issue.Authority,
		EscalationLevel: issue.EscalationLevel,
		SLADeadline:     issue.SLADeadline,
		CreatedAt:       issue.CreatedAt,
		UpdatedAt:       issue.UpdatedAt,
	}
}

// NewIssueDetail maps a domain issue with its hydrated timeline.
func NewIssueDetail(issue *domain.Issue) IssueDetailResponse {
	timeline := make([]TimelineEntryResponse, 0, len(issue.Timeline))
	for _, entry := range issue.Timeline {
		timeline = append(timeline, TimelineEntryResponse{
			Status:    entry.Status,
			Comment:   entry.Comment,
			ActorID:   entry.ActorID,
			Timestamp: entry.CreatedAt,
		})
	}
	return IssueDetailResponse{
		IssueSummary: NewIssueSummary(issue),
		Description:  issue.Description,
		Location: LocationPayload{
			Address:   issue.Location.Address,
			Latitude:  issue.Location.Latitude,
			Longitude: issue.Location.Longitude,
		},
		Photos:      issue.Photos,
		TrainNumber: issue.TrainNumber,
		ReporterID:  issue.ReporterID,
		AssigneeID:  issue.AssigneeID,
		Timeline:    timeline,
	}
}
