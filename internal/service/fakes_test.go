package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// In-memory repository fakes backing the service tests.

type fakeIssueRepo struct {
	mu          sync.Mutex
	issues      map[string]*domain.Issue
	byComplaint map[string]string
	timeline    map[string][]domain.TimelineEntry
	timelineSeq int64
	users       *fakeUserRepo
}

func newFakeIssueRepo() *fakeIssueRepo {
	return &fakeIssueRepo{
		issues:      make(map[string]*domain.Issue),
		byComplaint: make(map[string]string),
		timeline:    make(map[string][]domain.TimelineEntry),
	}
}

func (f *fakeIssueRepo) Create(_ context.Context, issue *domain.Issue, entry *domain.TimelineEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.byComplaint[issue.ComplaintID]; exists {
		return apperrors.NewConflict("complaint id already exists", map[string]any{"complaint_id": issue.ComplaintID})
	}
	issue.ID = uuid.NewString()
	issue.Version = 1
	issue.CreatedAt = time.Now()
	issue.UpdatedAt = issue.CreatedAt
	stored := *issue
	f.issues[issue.ID] = &stored
	f.byComplaint[issue.ComplaintID] = issue.ID
	f.appendTimeline(issue.ID, entry)
	return nil
}

func (f *fakeIssueRepo) GetByID(_ context.Context, id string) (*domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.issues[id]
	if !ok {
		return nil, apperrors.NewNotFound("issue", map[string]any{"id": id})
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeIssueRepo) GetByComplaintID(ctx context.Context, complaintID string) (*domain.Issue, error) {
	f.mu.Lock()
	id, ok := f.byComplaint[complaintID]
	f.mu.Unlock()
	if !ok {
		return nil, apperrors.NewNotFound("issue", map[string]any{"complaint_id": complaintID})
	}
	return f.GetByID(ctx, id)
}

func (f *fakeIssueRepo) ListWithFilter(_ context.Context, filter repository.IssueFilter) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Issue
	for _, stored := range f.issues {
		if filter.Authority != nil && stored.Authority != *filter.Authority {
			continue
		}
		if filter.ReporterID != nil && stored.ReporterID != *filter.ReporterID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, stored.Status) {
			continue
		}
		out = append(out, *stored)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeIssueRepo) ApplyTransition(_ context.Context, issue *domain.Issue, entry *domain.TimelineEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.issues[issue.ID]
	if !ok {
		return apperrors.NewNotFound("issue", map[string]any{"id": issue.ID})
	}
	if stored.Version != issue.Version {
		return apperrors.NewConflict("issue was modified concurrently", map[string]any{"id": issue.ID})
	}
	issue.Version++
	issue.UpdatedAt = time.Now()
	copied := *issue
	f.issues[issue.ID] = &copied
	f.appendTimeline(issue.ID, entry)
	return nil
}

// ApplyResolution applies the transition and the reporter credit together:
// both checks run before either side mutates.
func (f *fakeIssueRepo) ApplyResolution(ctx context.Context, issue *domain.Issue, entry *domain.TimelineEntry, points int) (*domain.ReporterTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.issues[issue.ID]
	if !ok {
		return nil, apperrors.NewNotFound("issue", map[string]any{"id": issue.ID})
	}
	if stored.Version != issue.Version {
		return nil, apperrors.NewConflict("issue was modified concurrently", map[string]any{"id": issue.ID})
	}

	totals, err := f.users.CreditPoints(ctx, issue.ReporterID, points, 0, 1)
	if err != nil {
		return nil, err
	}

	issue.Version++
	issue.UpdatedAt = time.Now()
	copied := *issue
	f.issues[issue.ID] = &copied
	f.appendTimeline(issue.ID, entry)
	return totals, nil
}

func (f *fakeIssueRepo) ListTimeline(_ context.Context, issueID string) ([]domain.TimelineEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]domain.TimelineEntry, len(f.timeline[issueID]))
	copy(entries, f.timeline[issueID])
	return entries, nil
}

func (f *fakeIssueRepo) ListSLABreached(_ context.Context, now time.Time, limit int) ([]domain.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Issue
	for _, stored := range f.issues {
		if stored.Settled() || now.Before(stored.SLADeadline) {
			continue
		}
		out = append(out, *stored)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (f *fakeIssueRepo) appendTimeline(issueID string, entry *domain.TimelineEntry) {
	f.timelineSeq++
	entry.ID = f.timelineSeq
	entry.IssueID = issueID
	entry.CreatedAt = time.Now()
	f.timeline[issueID] = append(f.timeline[issueID], *entry)
}

func containsStatus(statuses []domain.IssueStatus, status domain.IssueStatus) bool {
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		stored := *user
		repo.users[user.ID] = &stored
	}
	return repo
}

func (f *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return apperrors.NewConflict("email already registered", nil)
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.CreatedAt = time.Now()
	stored := *user
	f.users[user.ID] = &stored
	return nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[id]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": id})
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.users {
		if stored.Email == email {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, apperrors.NewNotFound("user", map[string]any{"email": email})
}

func (f *fakeUserRepo) CreditPoints(_ context.Context, userID string, points, reportedDelta, resolvedDelta int) (*domain.ReporterTotals, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[userID]
	if !ok {
		return nil, apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	stored.Points += points
	stored.IssuesReported += reportedDelta
	stored.IssuesResolved += resolvedDelta
	return &domain.ReporterTotals{
		Points:         stored.Points,
		IssuesReported: stored.IssuesReported,
		IssuesResolved: stored.IssuesResolved,
		Badges:         append([]string(nil), stored.Badges...),
	}, nil
}

func (f *fakeUserRepo) AwardBadge(_ context.Context, userID, badge string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.users[userID]
	if !ok {
		return false, apperrors.NewNotFound("user", map[string]any{"id": userID})
	}
	for _, held := range stored.Badges {
		if held == badge {
			return false, nil
		}
	}
	stored.Badges = append(stored.Badges, badge)
	return true, nil
}

type fakeEscalationRepo struct {
	mu          sync.Mutex
	escalations map[string]*domain.Escalation
	issues      *fakeIssueRepo

	// beforeWrite runs once at the start of the next Create or
	// ApplyAcceptance, standing in for work that lands between the caller's
	// issue read and the write.
	beforeWrite func()
}

func newFakeEscalationRepo(issues *fakeIssueRepo) *fakeEscalationRepo {
	return &fakeEscalationRepo{
		escalations: make(map[string]*domain.Escalation),
		issues:      issues,
	}
}

func (f *fakeEscalationRepo) runBeforeWrite() {
	if hook := f.beforeWrite; hook != nil {
		f.beforeWrite = nil
		hook()
	}
}

func (f *fakeEscalationRepo) Create(ctx context.Context, escalation *domain.Escalation, issue *domain.Issue, entry *domain.TimelineEntry) error {
	f.runBeforeWrite()

	f.mu.Lock()
	for _, existing := range f.escalations {
		if existing.IssueID == escalation.IssueID && existing.Status == domain.EscalationPending {
			f.mu.Unlock()
			return apperrors.NewConflict("pending escalation exists", map[string]any{"issue_id": escalation.IssueID})
		}
	}
	f.mu.Unlock()

	// The issue write carries the version check; a conflict stores nothing.
	if err := f.issues.ApplyTransition(ctx, issue, entry); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	escalation.ID = uuid.NewString()
	escalation.CreatedAt = time.Now()
	stored := *escalation
	f.escalations[escalation.ID] = &stored
	return nil
}

func (f *fakeEscalationRepo) GetByID(_ context.Context, id string) (*domain.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.escalations[id]
	if !ok {
		return nil, apperrors.NewNotFound("escalation", map[string]any{"id": id})
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeEscalationRepo) GetPendingByIssue(_ context.Context, issueID string) (*domain.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, stored := range f.escalations {
		if stored.IssueID == issueID && stored.Status == domain.EscalationPending {
			copied := *stored
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeEscalationRepo) ListPending(_ context.Context, limit, offset int) ([]domain.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Escalation
	for _, stored := range f.escalations {
		if stored.Status == domain.EscalationPending {
			out = append(out, *stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeEscalationRepo) ListByIssue(_ context.Context, issueID string) ([]domain.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Escalation
	for _, stored := range f.escalations {
		if stored.IssueID == issueID {
			out = append(out, *stored)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeEscalationRepo) ApplyAcceptance(ctx context.Context, id string, issue *domain.Issue, entry *domain.TimelineEntry) (*domain.Escalation, error) {
	f.runBeforeWrite()

	f.mu.Lock()
	stored, ok := f.escalations[id]
	if !ok {
		f.mu.Unlock()
		return nil, apperrors.NewNotFound("escalation", map[string]any{"id": id})
	}
	if stored.Status != domain.EscalationPending {
		f.mu.Unlock()
		return nil, apperrors.NewConflict("escalation already decided", map[string]any{"id": id, "status": stored.Status})
	}
	toAuthority := stored.ToAuthority
	level := stored.Level
	f.mu.Unlock()

	issue.Authority = toAuthority
	issue.EscalationLevel = level
	// A version conflict returns before the decision lands, so the
	// escalation stays pending.
	if err := f.issues.ApplyTransition(ctx, issue, entry); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	stored.Status = domain.EscalationAccepted
	now := time.Now()
	stored.DecidedAt = &now
	copied := *stored
	return &copied, nil
}

func (f *fakeEscalationRepo) Decide(_ context.Context, id string, status domain.EscalationStatus) (*domain.Escalation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.escalations[id]
	if !ok {
		return nil, apperrors.NewNotFound("escalation", map[string]any{"id": id})
	}
	if stored.Status != domain.EscalationPending {
		return nil, apperrors.NewConflict("escalation already decided", map[string]any{"id": id, "status": stored.Status})
	}
	stored.Status = status
	now := time.Now()
	stored.DecidedAt = &now
	copied := *stored
	return &copied, nil
}

type fakeAuthorityRepo struct {
	mu          sync.Mutex
	authorities map[domain.AuthorityType]*domain.Authority
	resolutions []float64
}

func newFakeAuthorityRepo(types ...domain.AuthorityType) *fakeAuthorityRepo {
	repo := &fakeAuthorityRepo{authorities: make(map[domain.AuthorityType]*domain.Authority)}
	for _, t := range types {
		repo.authorities[t] = &domain.Authority{
			ID:   uuid.NewString(),
			Name: fmt.Sprintf("%s department", t),
			Type: t,
		}
	}
	return repo
}

func (f *fakeAuthorityRepo) GetByType(_ context.Context, authorityType domain.AuthorityType) (*domain.Authority, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.authorities[authorityType]
	if !ok {
		return nil, apperrors.NewNotFound("authority", map[string]any{"type": authorityType})
	}
	copied := *stored
	return &copied, nil
}

func (f *fakeAuthorityRepo) List(_ context.Context) ([]domain.Authority, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Authority
	for _, stored := range f.authorities {
		out = append(out, *stored)
	}
	return out, nil
}

func (f *fakeAuthorityRepo) IncrementActive(_ context.Context, authorityType domain.AuthorityType, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.authorities[authorityType]; ok {
		stored.ActiveIssues += delta
	}
	return nil
}

func (f *fakeAuthorityRepo) RecordResolution(_ context.Context, authorityType domain.AuthorityType, resolutionHours float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if stored, ok := f.authorities[authorityType]; ok {
		stored.ActiveIssues--
		stored.ResolvedIssues++
	}
	f.resolutions = append(f.resolutions, resolutionHours)
	return nil
}
