package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/domain"
)

func newGamification(users *fakeUserRepo) *GamificationService {
	return NewGamificationService(users, nil, zap.NewNop(), testGamificationConfig())
}

func TestCreditReportAddsPointsAndCounter(t *testing.T) {
	users := newFakeUserRepo(citizen("reporter-1"))
	g := newGamification(users)

	totals, awarded, err := g.CreditReport(context.Background(), "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, 10, totals.Points)
	assert.Equal(t, 1, totals.IssuesReported)
	assert.Empty(t, awarded)
}

func TestFifthReportAwardsBadgeWithBonus(t *testing.T) {
	users := newFakeUserRepo(citizen("reporter-1"))
	g := newGamification(users)
	ctx := context.Background()

	var awarded []string
	for i := 0; i < 5; i++ {
		var err error
		_, awarded, err = g.CreditReport(ctx, "reporter-1")
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"reports_5"}, awarded)

	user, err := users.GetByID(ctx, "reporter-1")
	require.NoError(t, err)
	// 5 reports at 10 points plus the 25 point badge bonus.
	assert.Equal(t, 75, user.Points)
	assert.Equal(t, []string{"reports_5"}, user.Badges)
}

func TestBadgeNeverAwardedTwice(t *testing.T) {
	users := newFakeUserRepo(citizen("reporter-1"))
	g := newGamification(users)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, _, err := g.CreditReport(ctx, "reporter-1")
		require.NoError(t, err)
	}

	user, err := users.GetByID(ctx, "reporter-1")
	require.NoError(t, err)
	count := 0
	for _, badge := range user.Badges {
		if badge == "reports_5" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestPointsBadgeCrossedByBonusWaitsForNextCredit(t *testing.T) {
	user := citizen("reporter-1")
	user.Points = 85
	user.IssuesReported = 4
	users := newFakeUserRepo(user)
	g := newGamification(users)
	ctx := context.Background()

	// This credit reaches 95 points and the reports_5 badge; the 25 point
	// bonus crosses 100 but points_100 is not evaluated again in the same
	// pass.
	_, awarded, err := g.CreditReport(ctx, "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"reports_5"}, awarded)

	stored, err := users.GetByID(ctx, "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, 120, stored.Points)
	assert.NotContains(t, stored.Badges, "points_100")

	// The next credit picks it up.
	_, awarded, err = g.CreditReport(ctx, "reporter-1")
	require.NoError(t, err)
	assert.Contains(t, awarded, "points_100")
}

func TestOnResolveCreditedEvaluatesBadges(t *testing.T) {
	user := citizen("reporter-1")
	user.Points = 60
	user.IssuesResolved = 4
	users := newFakeUserRepo(user)
	g := newGamification(users)
	ctx := context.Background()

	// The credit itself rides the resolve transition; badge evaluation sees
	// the totals it produced.
	totals, err := users.CreditPoints(ctx, "reporter-1", g.ResolvePoints(), 0, 1)
	require.NoError(t, err)
	assert.Equal(t, 110, totals.Points)
	assert.Equal(t, 5, totals.IssuesResolved)

	awarded, err := g.OnResolveCredited(ctx, "reporter-1", totals)
	require.NoError(t, err)
	assert.Equal(t, []string{"resolved_5", "points_100"}, awarded)
}

func TestEvaluateBadgesIdempotent(t *testing.T) {
	user := citizen("reporter-1")
	user.Points = 150
	user.IssuesReported = 6
	user.Badges = []string{"reports_5", "points_100"}
	users := newFakeUserRepo(user)
	g := newGamification(users)

	awarded, err := g.EvaluateBadges(context.Background(), "reporter-1")
	require.NoError(t, err)
	assert.Empty(t, awarded)

	stored, err := users.GetByID(context.Background(), "reporter-1")
	require.NoError(t, err)
	assert.Equal(t, 150, stored.Points)
}

func TestBadgeSatisfied(t *testing.T) {
	badge := domain.Badge{Name: "reports_5", Metric: domain.BadgeMetricReports, Threshold: 5}
	assert.False(t, badge.Satisfied(domain.ReporterTotals{IssuesReported: 4}))
	assert.True(t, badge.Satisfied(domain.ReporterTotals{IssuesReported: 5}))
	assert.True(t, badge.Satisfied(domain.ReporterTotals{IssuesReported: 6}))
}
