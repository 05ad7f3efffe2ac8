package service

import (
	"context"
	"fmt"
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

// slaBreachReason marks escalations raised by the SLA sweep.
const slaBreachReason = "SLA deadline exceeded"

// EscalationService moves stalled issues up the authority chain. A request
// records intent only; the issue's authority and escalation level change when
// the destination authority accepts.
type EscalationService struct {
	issues      repository.IssueRepository
	escalations repository.EscalationRepository
	directory   *directory.Directory
	dispatcher  events.Dispatcher
	logger      *zap.Logger
	sla         config.SLAConfig
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	IssueRepo      repository.IssueRepository
	EscalationRepo repository.EscalationRepository
	Directory      *directory.Directory
	Dispatcher     events.Dispatcher
	Logger         *zap.Logger
	SLA            config.SLAConfig
}

// EscalationResult reports the outcome of a trigger. AlreadyAtTop means the
// current authority has no parent and the request was recorded as a no-op.
type EscalationResult struct {
	Escalation   *domain.Escalation
	AlreadyAtTop bool
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	return &EscalationService{
		issues:      deps.IssueRepo,
		escalations: deps.EscalationRepo,
		directory:   deps.Directory,
		dispatcher:  deps.Dispatcher,
		logger:      deps.Logger,
		sla:         deps.SLA,
	}
}

// Request raises an explicit escalation for an issue. actorID is nil when
// the system (SLA sweep) is the requester.
func (s *EscalationService) Request(ctx context.Context, issueID, reason string, actorID *string) (*EscalationResult, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return s.trigger(ctx, issue, reason, actorID)
}

// CheckSLABreach escalates the issue if it is still open past the
// escalation threshold for its severity. The threshold sits at or beyond
// the SLA deadline, giving the owning authority a grace window between
// going overdue and being escalated. A no-op (nil result, nil error)
// before the threshold.
func (s *EscalationService) CheckSLABreach(ctx context.Context, issue *domain.Issue, now time.Time) (*EscalationResult, error) {
	if issue.Settled() || now.Before(issue.SLADeadline) {
		return nil, nil
	}
	if now.Before(issue.CreatedAt.Add(s.sla.EscalationAfter(issue.Severity))) {
		return nil, nil
	}
	// The sweep re-runs on an interval, so the at-top no-op is not recorded
	// here; recording it every cycle would flood the timeline.
	if s.directory.AtTop(issue.Authority) {
		return &EscalationResult{AlreadyAtTop: true}, nil
	}
	return s.trigger(ctx, issue, slaBreachReason, nil)
}

func (s *EscalationService) trigger(ctx context.Context, issue *domain.Issue, reason string, actorID *string) (*EscalationResult, error) {
	if issue.Settled() {
		return nil, apperrors.NewConflict("issue already settled", map[string]any{"issue_id": issue.ID, "status": issue.Status})
	}

	parent := s.directory.EscalationParent(issue.Authority)
	if parent == issue.Authority {
		// Top of the chain: record the attempt, change nothing.
		entry := &domain.TimelineEntry{
			Status:  domain.TimelineEventEscalated,
			Comment: fmt.Sprintf("Escalation requested but %s is already the top authority", issue.Authority),
			ActorID: actorID,
		}
		if err := s.issues.ApplyTransition(ctx, issue, entry); err != nil {
			return nil, err
		}
		return &EscalationResult{AlreadyAtTop: true}, nil
	}

	if pending, err := s.escalations.GetPendingByIssue(ctx, issue.ID); err != nil {
		return nil, err
	} else if pending != nil {
		return nil, apperrors.NewConflict("a pending escalation already exists for this issue",
			map[string]any{"issue_id": issue.ID, "escalation_id": pending.ID})
	}

	escalation := &domain.Escalation{
		IssueID:       issue.ID,
		FromAuthority: issue.Authority,
		ToAuthority:   parent,
		Reason:        reason,
		Level:         issue.EscalationLevel + 1,
		Status:        domain.EscalationPending,
		RequestedBy:   actorID,
	}
	// The escalation row and the timeline entry commit together; authority
	// and level stay untouched until the escalation is accepted.
	entry := &domain.TimelineEntry{
		Status:  domain.TimelineEventEscalated,
		Comment: fmt.Sprintf("Escalated to %s: %s", parent, reason),
		ActorID: actorID,
	}
	if err := s.escalations.Create(ctx, escalation, issue, entry); err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:    events.EventEscalationRequested,
		IssueID: issue.ID,
		Actor:   events.Actor{UserID: actorID},
		Payload: events.EscalationRequestedPayload{
			EscalationID:  escalation.ID,
			FromAuthority: escalation.FromAuthority,
			ToAuthority:   escalation.ToAuthority,
			Level:         escalation.Level,
			Reason:        reason,
		},
	})
	return &EscalationResult{Escalation: escalation}, nil
}

// Accept applies a pending escalation: the issue moves to the destination
// authority and its escalation level rises to the escalation's level. The
// decision and the issue update commit as a unit; a concurrent transition
// leaves the escalation pending so the acceptance can be retried.
func (s *EscalationService) Accept(ctx context.Context, escalationID string, actorID string) (*domain.Escalation, error) {
	escalation, err := s.escalations.GetByID(ctx, escalationID)
	if err != nil {
		return nil, err
	}
	issue, err := s.issues.GetByID(ctx, escalation.IssueID)
	if err != nil {
		return nil, err
	}

	entry := &domain.TimelineEntry{
		Status:  domain.TimelineEventEscalationAccepted,
		Comment: fmt.Sprintf("Escalation accepted by %s", escalation.ToAuthority),
		ActorID: &actorID,
	}
	escalation, err = s.escalations.ApplyAcceptance(ctx, escalationID, issue, entry)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:    events.EventEscalationAccepted,
		IssueID: issue.ID,
		Actor:   events.Actor{UserID: &actorID},
		Payload: events.EscalationDecidedPayload{
			EscalationID: escalation.ID,
			Status:       escalation.Status,
			ToAuthority:  escalation.ToAuthority,
			Level:        escalation.Level,
		},
	})
	return escalation, nil
}

// Reject declines a pending escalation. The issue is unaffected; a new
// escalation may be requested afterwards.
func (s *EscalationService) Reject(ctx context.Context, escalationID string, actorID string) (*domain.Escalation, error) {
	escalation, err := s.escalations.Decide(ctx, escalationID, domain.EscalationRejected)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:    events.EventEscalationRejected,
		IssueID: escalation.IssueID,
		Actor:   events.Actor{UserID: &actorID},
		Payload: events.EscalationDecidedPayload{
			EscalationID: escalation.ID,
			Status:       escalation.Status,
			ToAuthority:  escalation.ToAuthority,
			Level:        escalation.Level,
		},
	})
	return escalation, nil
}

// ListPending returns undecided escalations, newest first.
func (s *EscalationService) ListPending(ctx context.Context, limit, offset int) ([]domain.Escalation, error) {
	return s.escalations.ListPending(ctx, limit, offset)
}

// ListForIssue returns all escalations raised for an issue.
func (s *EscalationService) ListForIssue(ctx context.Context, issueID string) ([]domain.Escalation, error) {
	return s.escalations.ListByIssue(ctx, issueID)
}

func (s *EscalationService) publish(ctx context.Context, event events.Event) {
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
