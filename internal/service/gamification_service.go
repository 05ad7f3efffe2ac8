package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/domain"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/repository"
)

// Credit reasons recorded on point events.
const (
	creditReasonReport  = "report"
	creditReasonResolve = "resolve"
	creditReasonBadge   = "badge"
)

// GamificationService maintains the reporter ledger: point credits, report
// and resolve counters, and badge awards. Point amounts and the badge
// catalog come from configuration.
type GamificationService struct {
	users      repository.UserRepository
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.GamificationConfig
}

// NewGamificationService builds the service.
func NewGamificationService(users repository.UserRepository, dispatcher events.Dispatcher, logger *zap.Logger, cfg config.GamificationConfig) *GamificationService {
	return &GamificationService{
		users:      users,
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// CreditReport awards report points and bumps the reported counter, then
// evaluates badges. Returns the post-credit totals and newly awarded badges.
func (g *GamificationService) CreditReport(ctx context.Context, reporterID string) (*domain.ReporterTotals, []string, error) {
	return g.credit(ctx, reporterID, g.cfg.ReportPoints, 1, 0, creditReasonReport)
}

// ResolvePoints is the configured award for a resolved issue. The credit
// itself is committed with the resolve transition; see OnResolveCredited.
func (g *GamificationService) ResolvePoints() int {
	return g.cfg.ResolvePoints
}

// OnResolveCredited publishes the ledger event for a resolve credit that was
// committed alongside its transition, then evaluates badges against the
// returned totals.
func (g *GamificationService) OnResolveCredited(ctx context.Context, reporterID string, totals *domain.ReporterTotals) ([]string, error) {
	g.publishPointsCredited(ctx, reporterID, g.cfg.ResolvePoints, creditReasonResolve, totals.Points)
	return g.evaluate(ctx, reporterID, totals)
}

func (g *GamificationService) credit(ctx context.Context, reporterID string, points, reportedDelta, resolvedDelta int, reason string) (*domain.ReporterTotals, []string, error) {
	totals, err := g.users.CreditPoints(ctx, reporterID, points, reportedDelta, resolvedDelta)
	if err != nil {
		return nil, nil, err
	}
	g.publishPointsCredited(ctx, reporterID, points, reason, totals.Points)

	awarded, err := g.evaluate(ctx, reporterID, totals)
	if err != nil {
		return nil, nil, err
	}
	return totals, awarded, nil
}

// EvaluateBadges re-runs badge evaluation against the reporter's current
// counters. Idempotent: badges already held are never re-awarded.
func (g *GamificationService) EvaluateBadges(ctx context.Context, reporterID string) ([]string, error) {
	user, err := g.users.GetByID(ctx, reporterID)
	if err != nil {
		return nil, err
	}
	totals := &domain.ReporterTotals{
		Points:         user.Points,
		IssuesReported: user.IssuesReported,
		IssuesResolved: user.IssuesResolved,
		Badges:         user.Badges,
	}
	return g.evaluate(ctx, reporterID, totals)
}

// evaluate awards every unheld badge whose criterion is met. Each award
// credits the badge bonus without re-entering evaluation, so a bonus that
// crosses a points threshold takes effect on the next credit.
func (g *GamificationService) evaluate(ctx context.Context, reporterID string, totals *domain.ReporterTotals) ([]string, error) {
	held := make(map[string]struct{}, len(totals.Badges))
	for _, name := range totals.Badges {
		held[name] = struct{}{}
	}

	var awarded []string
	for _, badge := range g.cfg.Badges {
		if _, ok := held[badge.Name]; ok {
			continue
		}
		if !badge.Satisfied(*totals) {
			continue
		}
		newlyAwarded, err := g.users.AwardBadge(ctx, reporterID, badge.Name)
		if err != nil {
			return nil, err
		}
		if !newlyAwarded {
			continue
		}
		awarded = append(awarded, badge.Name)
		g.publishBadgeAwarded(ctx, reporterID, badge.Name)

		if g.cfg.BadgeBonusPoints > 0 {
			bonus, err := g.users.CreditPoints(ctx, reporterID, g.cfg.BadgeBonusPoints, 0, 0)
			if err != nil {
				return nil, err
			}
			g.publishPointsCredited(ctx, reporterID, g.cfg.BadgeBonusPoints, creditReasonBadge, bonus.Points)
		}
	}
	return awarded, nil
}

func (g *GamificationService) publishPointsCredited(ctx context.Context, reporterID string, amount int, reason string, newTotal int) {
	g.publish(ctx, events.Event{
		Type:  events.EventPointsCredited,
		Actor: events.Actor{UserID: &reporterID},
		Payload: events.PointsCreditedPayload{
			ReporterID: reporterID,
			Amount:     amount,
			Reason:     reason,
			NewTotal:   newTotal,
		},
	})
}

func (g *GamificationService) publishBadgeAwarded(ctx context.Context, reporterID, badge string) {
	g.logger.Info("badge awarded", zap.String("reporter_id", reporterID), zap.String("badge", badge))
	g.publish(ctx, events.Event{
		Type:  events.EventBadgeAwarded,
		Actor: events.Actor{UserID: &reporterID},
		Payload: events.BadgeAwardedPayload{
			ReporterID: reporterID,
			Badge:      badge,
		},
	})
}

func (g *GamificationService) publish(ctx context.Context, event events.Event) {
	if g.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	_ = g.dispatcher.Publish(ctx, event)
}
