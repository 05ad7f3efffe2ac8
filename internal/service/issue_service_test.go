package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/directory"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

type issueHarness struct {
	issues      *fakeIssueRepo
	users       *fakeUserRepo
	authorities *fakeAuthorityRepo
	service     *IssueService
}

func testSLAConfig() config.SLAConfig {
	return config.SLAConfig{
		HoursBySeverity: map[domain.IssueSeverity]int{
			domain.SeverityLow:      72,
			domain.SeverityMedium:   48,
			domain.SeverityHigh:     24,
			domain.SeverityCritical: 12,
		},
		EscalationHoursBySeverity: map[domain.IssueSeverity]int{
			domain.SeverityLow:      96,
			domain.SeverityMedium:   72,
			domain.SeverityHigh:     48,
			domain.SeverityCritical: 24,
		},
	}
}

func testGamificationConfig() config.GamificationConfig {
	return config.GamificationConfig{
		ReportPoints:     10,
		ResolvePoints:    50,
		BadgeBonusPoints: 25,
		Badges:           config.DefaultBadges(),
	}
}

func newIssueHarness(t *testing.T, users ...*domain.User) *issueHarness {
	t.Helper()

	routes, err := directory.New(config.DefaultRouting())
	require.NoError(t, err)

	issueRepo := newFakeIssueRepo()
	userRepo := newFakeUserRepo(users...)
	issueRepo.users = userRepo
	authorityRepo := newFakeAuthorityRepo(domain.KnownAuthorityTypes()...)
	logger := zap.NewNop()
	gamification := NewGamificationService(userRepo, nil, logger, testGamificationConfig())

	svc := NewIssueService(IssueDependencies{
		IssueRepo:     issueRepo,
		UserRepo:      userRepo,
		AuthorityRepo: authorityRepo,
		Directory:     routes,
		Gamification:  gamification,
		Logger:        logger,
		SLA:           testSLAConfig(),
		IDPrefix:      "CIV",
	})
	return &issueHarness{
		issues:      issueRepo,
		users:       userRepo,
		authorities: authorityRepo,
		service:     svc,
	}
}

func citizen(id string) *domain.User {
	return &domain.User{ID: id, Name: "Citizen", Email: id + "@example.com", Role: domain.RoleCitizen}
}

func authorityUser(id string) *domain.User {
	at := domain.AuthorityRoads
	return &domain.User{ID: id, Name: "Officer", Email: id + "@example.com", Role: domain.RoleAuthorityUser, AuthorityType: &at}
}

func potholeInput() ReportInput {
	return ReportInput{
		Title:       "Large pothole on main road",
		Description: "Deep pothole near the bus stop",
		Category:    domain.CategoryPothole,
		Severity:    domain.SeverityHigh,
		Location:    domain.Location{Address: "Main Road, Hyderabad"},
	}
}

func TestReportRoutesPotholeToRoads(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"))

	issue, _, err := h.service.Report(context.Background(), "reporter-1", potholeInput())
	require.NoError(t, err)

	assert.Equal(t, domain.IssueStatusReported, issue.Status)
	assert.Equal(t, domain.AuthorityRoads, issue.Authority)
	assert.Equal(t, 0, issue.EscalationLevel)
	assert.Regexp(t, regexp.MustCompile(`^CIV-\d{8}-\d{4}$`), issue.ComplaintID)

	reporter, err := h.users.GetByID(context.Background(), "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, 10, reporter.Points)
	assert.Equal(t, 1, reporter.IssuesReported)

	timeline, err := h.issues.ListTimeline(context.Background(), issue.ID)
	require.NoError(t, err)
	require.Len(t, timeline, 1)
	assert.Equal(t, string(domain.IssueStatusReported), timeline[0].Status)
}

func TestReportUnknownCategoryRejected(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"))

	input := potholeInput()
	input.Category = "sinkhole"
	_, _, err := h.service.Report(context.Background(), "reporter-1", input)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestReportDefaultsSeverityToMedium(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"))

	input := potholeInput()
	input.Severity = ""
	issue, _, err := h.service.Report(context.Background(), "reporter-1", input)
	require.NoError(t, err)
	assert.Equal(t, domain.SeverityMedium, issue.Severity)
}

func TestReportSLADeadlineFollowsSeverity(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"))

	input := potholeInput()
	input.Severity = domain.SeverityCritical
	issue, _, err := h.service.Report(context.Background(), "reporter-1", input)
	require.NoError(t, err)

	hours := issue.SLADeadline.Sub(issue.CreatedAt).Hours()
	assert.InDelta(t, 12, hours, 0.1)
}

func TestAssignFromReported(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"), authorityUser("officer-1"))

	issue, _, err := h.service.Report(context.Background(), "reporter-1", potholeInput())
	require.NoError(t, err)

	assigned, err := h.service.Assign(context.Background(), issue.ID, "officer-1", "officer-1")
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusAssigned, assigned.Status)
	require.NotNil(t, assigned.AssigneeID)
	assert.Equal(t, "officer-1", *assigned.AssigneeID)

	roads, err := h.authorities.GetByType(context.Background(), domain.AuthorityRoads)
	require.NoError(t, err)
	assert.Equal(t, 1, roads.ActiveIssues)
}

func TestAssignRejectsCitizenAssignee(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"), citizen("other-citizen"))

	issue, _, err := h.service.Report(context.Background(), "reporter-1", potholeInput())
	require.NoError(t, err)

	_, err = h.service.Assign(context.Background(), issue.ID, "other-citizen", "other-citizen")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "VALIDATION_FAILED"))
}

func TestAdvanceFullChain(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"), authorityUser("officer-1"))
	ctx := context.Background()

	issue, _, err := h.service.Report(ctx, "reporter-1", potholeInput())
	require.NoError(t, err)
	_, err = h.service.Assign(ctx, issue.ID, "officer-1", "officer-1")
	require.NoError(t, err)

	for _, next := range []domain.IssueStatus{
		domain.IssueStatusInProgress,
		domain.IssueStatusResolved,
		domain.IssueStatusClosed,
	} {
		issue, err = h.service.Advance(ctx, issue.ID, next, "", "officer-1")
		require.NoError(t, err)
		assert.Equal(t, next, issue.Status)
	}

	detail, err := h.service.Get(ctx, issue.ID)
	require.NoError(t, err)
	// reported, assigned, in-progress, resolved, closed
	require.Len(t, detail.Timeline, 5)
	for i := 1; i < len(detail.Timeline); i++ {
		assert.Greater(t, detail.Timeline[i].ID, detail.Timeline[i-1].ID)
	}
}

func TestAdvanceSkippingStateRejected(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"), authorityUser("officer-1"))
	ctx := context.Background()

	issue, _, err := h.service.Report(ctx, "reporter-1", potholeInput())
	require.NoError(t, err)
	_, err = h.service.Assign(ctx, issue.ID, "officer-1", "officer-1")
	require.NoError(t, err)

	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusResolved, "", "officer-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	got, err := h.service.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusAssigned, got.Status)
	assert.Len(t, got.Timeline, 2)
}

func TestAdvanceFromReportedRejected(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"))
	ctx := context.Background()

	issue, _, err := h.service.Report(ctx, "reporter-1", potholeInput())
	require.NoError(t, err)

	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusInProgress, "", "reporter-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))
}

func TestResolveCreditsReporterOnce(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"), authorityUser("officer-1"))
	ctx := context.Background()

	issue, _, err := h.service.Report(ctx, "reporter-1", potholeInput())
	require.NoError(t, err)
	_, err = h.service.Assign(ctx, issue.ID, "officer-1", "officer-1")
	require.NoError(t, err)
	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusInProgress, "", "officer-1")
	require.NoError(t, err)
	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusResolved, "fixed", "officer-1")
	require.NoError(t, err)

	reporter, err := h.users.GetByID(ctx, "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, 60, reporter.Points)
	assert.Equal(t, 1, reporter.IssuesResolved)

	// A resolved issue can only advance to closed, so resolve points cannot
	// be credited twice.
	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusResolved, "", "officer-1")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "INVALID_TRANSITION"))

	reporter, err = h.users.GetByID(ctx, "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, 60, reporter.Points)

	roads, err := h.authorities.GetByType(ctx, domain.AuthorityRoads)
	require.NoError(t, err)
	assert.Equal(t, 1, roads.ResolvedIssues)
	assert.Equal(t, 0, roads.ActiveIssues)
}

func TestResolveCreditFailureLeavesIssueUnresolved(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"), authorityUser("officer-1"))
	ctx := context.Background()

	issue, _, err := h.service.Report(ctx, "reporter-1", potholeInput())
	require.NoError(t, err)
	_, err = h.service.Assign(ctx, issue.ID, "officer-1", "officer-1")
	require.NoError(t, err)
	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusInProgress, "", "officer-1")
	require.NoError(t, err)

	// The reporter account vanishes before the resolve lands, so the credit
	// cannot be applied.
	h.users.mu.Lock()
	reporter := h.users.users["reporter-1"]
	delete(h.users.users, "reporter-1")
	h.users.mu.Unlock()

	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusResolved, "fixed", "officer-1")
	require.Error(t, err)

	// The transition rolled back with the credit: still in progress, no
	// resolve timeline entry.
	got, err := h.service.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IssueStatusInProgress, got.Status)
	assert.Len(t, got.Timeline, 3)

	h.users.mu.Lock()
	h.users.users["reporter-1"] = reporter
	h.users.mu.Unlock()

	_, err = h.service.Advance(ctx, issue.ID, domain.IssueStatusResolved, "fixed", "officer-1")
	require.NoError(t, err)

	stored, err := h.users.GetByID(ctx, "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, 60, stored.Points)
	assert.Equal(t, 1, stored.IssuesResolved)
}

func TestGetByComplaintID(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"))
	ctx := context.Background()

	issue, _, err := h.service.Report(ctx, "reporter-1", potholeInput())
	require.NoError(t, err)

	got, err := h.service.Get(ctx, issue.ComplaintID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, got.ID)
}

func TestGetUnknownIssue(t *testing.T) {
	h := newIssueHarness(t, citizen("reporter-1"))

	_, err := h.service.Get(context.Background(), "CIV-20260101-9999")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, "NOT_FOUND"))
}

func TestGenerateComplaintIDFormat(t *testing.T) {
	id := generateComplaintID("CIV", mustParseTime(t, "2026-01-15T10:00:00Z"))
	assert.Regexp(t, regexp.MustCompile(`^CIV-20260115-\d{4}$`), id)

	// Empty prefix falls back to the default.
	id = generateComplaintID("", mustParseTime(t, "2026-01-15T10:00:00Z"))
	assert.Regexp(t, regexp.MustCompile(`^CIV-20260115-\d{4}$`), id)
}

func mustParseTime(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, value)
	require.NoError(t, err)
	return parsed
}
