package service

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/directory"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// complaintIDAttempts bounds the local retry on identifier collision.
const complaintIDAttempts = 5

// IssueService is the lifecycle engine: it validates and applies state
// transitions, appends timeline entries, and triggers point awards.
type IssueService struct {
	issues       repository.IssueRepository
	users        repository.UserRepository
	authorities  repository.AuthorityRepository
	directory    *directory.Directory
	gamification *GamificationService
	dispatcher   events.Dispatcher
	logger       *zap.Logger
	sla          config.SLAConfig
	idPrefix     string
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo     repository.IssueRepository
	UserRepo      repository.UserRepository
	AuthorityRepo repository.AuthorityRepository
	Directory     *directory.Directory
	Gamification  *GamificationService
	Dispatcher    events.Dispatcher
	Logger        *zap.Logger
	SLA           config.SLAConfig
	IDPrefix      string
}

// ReportInput describes an issue submission.
type ReportInput struct {
	Title       string
	Description string
	Category    domain.IssueCategory
	Severity    domain.IssueSeverity
	Location    domain.Location
	Photos      []string
	TrainNumber *string
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	return &IssueService{
		issues:       deps.IssueRepo,
		users:        deps.UserRepo,
		authorities:  deps.AuthorityRepo,
		directory:    deps.Directory,
		gamification: deps.Gamification,
		dispatcher:   deps.Dispatcher,
		logger:       deps.Logger,
		sla:          deps.SLA,
		idPrefix:     deps.IDPrefix,
	}
}

// Report creates an issue in the reported state: authority resolved from the
// category, SLA deadline fixed from severity, initial timeline entry
// appended, report points credited.
func (s *IssueService) Report(ctx context.Context, reporterID string, input ReportInput) (*domain.Issue, []string, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, nil, apperrors.NewValidationError("title required", nil)
	}
	if strings.TrimSpace(input.Description) == "" {
		return nil, nil, apperrors.NewValidationError("description required", nil)
	}
	if !domain.ValidCategory(input.Category) {
		return nil, nil, apperrors.NewValidationError("unknown category", map[string]any{"category": input.Category})
	}
	if input.Severity == "" {
		input.Severity = domain.SeverityMedium
	}
	if !domain.ValidSeverity(input.Severity) {
		return nil, nil, apperrors.NewValidationError("unknown severity", map[string]any{"severity": input.Severity})
	}

	now := time.Now()
	issue := &domain.Issue{
		Title:           strings.TrimSpace(input.Title),
		Description:     strings.TrimSpace(input.Description),
		Category:        input.Category,
		Severity:        input.Severity,
		Status:          domain.IssueStatusReported,
		Location:        input.Location,
		Photos:          input.Photos,
		TrainNumber:     input.TrainNumber,
		ReporterID:      reporterID,
		Authority:       s.directory.ResolveAuthority(input.Category),
		EscalationLevel: 0,
		SLADeadline:     now.Add(s.sla.SLAFor(input.Severity)),
	}

	// Identifier collisions are the one locally retried failure: regenerate
	// the suffix and resubmit.
	var lastErr error
	for attempt := 0; attempt < complaintIDAttempts; attempt++ {
		issue.ComplaintID = generateComplaintID(s.idPrefix, now)
		entry := &domain.TimelineEntry{
			Status:  string(domain.IssueStatusReported),
			Comment: "Issue reported by citizen",
			ActorID: &reporterID,
		}
		lastErr = s.issues.Create(ctx, issue, entry)
		if lastErr == nil {
			break
		}
		if !apperrors.IsCode(lastErr, "CONFLICT") {
			return nil, nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, nil, lastErr
	}

	_, badges, err := s.gamification.CreditReport(ctx, reporterID)
	if err != nil {
		return nil, nil, err
	}

	s.publish(ctx, events.Event{
		Type:    events.EventIssueReported,
		IssueID: issue.ID,
		Actor:   events.Actor{UserID: &reporterID, Role: domain.RoleCitizen},
		Payload: events.IssueReportedPayload{
			ComplaintID: issue.ComplaintID,
			Category:    issue.Category,
			Severity:    issue.Severity,
			Authority:   issue.Authority,
			ReporterID:  reporterID,
			Title:       issue.Title,
		},
	})
	return issue, badges, nil
}

// Assign sets the handling identity and moves the issue to assigned.
// Allowed from reported, or from any non-settled state once the issue has
// been escalated.
func (s *IssueService) Assign(ctx context.Context, issueID, assigneeID string, actorID string) (*domain.Issue, error) {
	assignee, err := s.users.GetByID(ctx, assigneeID)
	if err != nil {
		return nil, err
	}
	if assignee.Role != domain.RoleAuthorityUser && assignee.Role != domain.RoleAdmin {
		return nil, apperrors.NewValidationError("assignee must be an authority user", map[string]any{"assignee_id": assigneeID})
	}

	issue, err := s.resolve(ctx, issueID)
	if err != nil {
		return nil, err
	}
	assignable := issue.Status == domain.IssueStatusReported ||
		(issue.EscalationLevel > 0 && !issue.Settled())
	if !assignable {
		return nil, apperrors.NewInvalidTransition(string(issue.Status), string(domain.IssueStatusAssigned))
	}

	issue.Status = domain.IssueStatusAssigned
	issue.AssigneeID = &assigneeID
	entry := &domain.TimelineEntry{
		Status:  string(domain.IssueStatusAssigned),
		Comment: fmt.Sprintf("Assigned to authority: %s", issue.Authority),
		ActorID: &actorID,
	}
	if err := s.issues.ApplyTransition(ctx, issue, entry); err != nil {
		return nil, err
	}
	if err := s.authorities.IncrementActive(ctx, issue.Authority, 1); err != nil {
		s.logger.Warn("failed to bump authority active counter",
			zap.String("authority", string(issue.Authority)), zap.Error(err))
	}

	s.publish(ctx, events.Event{
		Type:    events.EventIssueAssigned,
		IssueID: issue.ID,
		Actor:   events.Actor{UserID: &actorID},
		Payload: events.IssueAssignedPayload{
			AssigneeID: assigneeID,
			Authority:  issue.Authority,
		},
	})
	return issue, nil
}

// advanceNext is the forward-only main chain.
var advanceNext = map[domain.IssueStatus]domain.IssueStatus{
	domain.IssueStatusAssigned:   domain.IssueStatusInProgress,
	domain.IssueStatusInProgress: domain.IssueStatusResolved,
	domain.IssueStatusResolved:   domain.IssueStatusClosed,
}

// Advance moves the issue one step forward along
// assigned -> in-progress -> resolved -> closed. Anything else is an invalid
// transition and leaves the record unchanged. Reaching resolved credits
// resolve points exactly once; the prior-status guard prevents
// double-crediting since a resolved issue can only advance to closed.
func (s *IssueService) Advance(ctx context.Context, issueID string, newStatus domain.IssueStatus, comment string, actorID string) (*domain.Issue, error) {
	issue, err := s.resolve(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if next, ok := advanceNext[issue.Status]; !ok || next != newStatus {
		return nil, apperrors.NewInvalidTransition(string(issue.Status), string(newStatus))
	}

	oldStatus := issue.Status
	issue.Status = newStatus
	entry := &domain.TimelineEntry{
		Status:  string(newStatus),
		Comment: comment,
		ActorID: &actorID,
	}

	if newStatus == domain.IssueStatusResolved {
		// The resolve credit commits with the transition.
		totals, err := s.issues.ApplyResolution(ctx, issue, entry, s.gamification.ResolvePoints())
		if err != nil {
			return nil, err
		}
		hours := time.Since(issue.CreatedAt).Hours()
		if err := s.authorities.RecordResolution(ctx, issue.Authority, hours); err != nil {
			s.logger.Warn("failed to record authority resolution",
				zap.String("authority", string(issue.Authority)), zap.Error(err))
		}
		// Badges recompute from the stored counters on the next credit.
		if _, err := s.gamification.OnResolveCredited(ctx, issue.ReporterID, totals); err != nil {
			s.logger.Warn("badge evaluation failed after resolve",
				zap.String("reporter_id", issue.ReporterID), zap.Error(err))
		}
	} else {
		if err := s.issues.ApplyTransition(ctx, issue, entry); err != nil {
			return nil, err
		}
	}

	s.publish(ctx, events.Event{
		Type:    events.EventIssueStatusChanged,
		IssueID: issue.ID,
		Actor:   events.Actor{UserID: &actorID},
		Payload: events.IssueStatusChangedPayload{
			OldStatus: oldStatus,
			NewStatus: newStatus,
			Comment:   comment,
		},
	})
	return issue, nil
}

// Get fetches an issue by internal key or complaint identifier, with its
// timeline hydrated in application order.
func (s *IssueService) Get(ctx context.Context, ref string) (*domain.Issue, error) {
	issue, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	timeline, err := s.issues.ListTimeline(ctx, issue.ID)
	if err != nil {
		return nil, err
	}
	issue.Timeline = timeline
	return issue, nil
}

// List returns issues matching the filter.
func (s *IssueService) List(ctx context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	return s.issues.ListWithFilter(ctx, filter)
}

// resolve loads an issue by UUID or complaint identifier.
func (s *IssueService) resolve(ctx context.Context, ref string) (*domain.Issue, error) {
	if uuid.Validate(ref) == nil {
		return s.issues.GetByID(ctx, ref)
	}
	return s.issues.GetByComplaintID(ctx, ref)
}

func (s *IssueService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = s.dispatcher.Publish(ctx, event)
}

// generateComplaintID builds a human-readable identifier from the report
// date and a random zero-padded suffix, e.g. CIV-20260115-0042.
func generateComplaintID(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = "CIV"
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, now.Format("20060102"), rand.Intn(10000))
}
