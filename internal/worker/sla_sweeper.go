// Package worker hosts background loops started alongside the HTTP server.
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
)

// SLASweeper periodically escalates issues stuck past their SLA deadline.
// Each issue check is independent; a failure on one issue does not stop the
// sweep.
type SLASweeper struct {
	issues      repository.IssueRepository
	escalations *service.EscalationService
	logger      *zap.Logger
	cfg         config.SweeperConfig
}

// NewSLASweeper constructs the sweeper.
func NewSLASweeper(issues repository.IssueRepository, escalations *service.EscalationService, logger *zap.Logger, cfg config.SweeperConfig) *SLASweeper {
	return &SLASweeper{
		issues:      issues,
		escalations: escalations,
		logger:      logger,
		cfg:         cfg,
	}
}

// Run blocks sweeping on the configured interval until ctx is cancelled.
func (w *SLASweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval())
	defer ticker.Stop()

	w.logger.Info("sla sweeper started", zap.Duration("interval", w.cfg.Interval()))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla sweeper stopped")
			return
		case <-ticker.C:
			w.SweepOnce(ctx)
		}
	}
}

// SweepOnce escalates every currently breached issue without a pending
// escalation.
func (w *SLASweeper) SweepOnce(ctx context.Context) {
	now := time.Now()
	breached, err := w.issues.ListSLABreached(ctx, now, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("sla sweep: listing breached issues failed", zap.Error(err))
		return
	}

	for i := range breached {
		issue := breached[i]
		result, err := w.escalations.CheckSLABreach(ctx, &issue, now)
		if err != nil {
			w.logger.Warn("sla sweep: escalation failed",
				zap.String("issue_id", issue.ID), zap.Error(err))
			continue
		}
		if result == nil {
			continue
		}
		if result.AlreadyAtTop {
			w.logger.Info("sla sweep: issue already at top authority",
				zap.String("issue_id", issue.ID), zap.String("authority", string(issue.Authority)))
			continue
		}
		w.logger.Info("sla sweep: escalation requested",
			zap.String("issue_id", issue.ID),
			zap.String("escalation_id", result.Escalation.ID),
			zap.Int("level", result.Escalation.Level))
	}
}

// StartNotificationWorker registers notification handlers.
func StartNotificationWorker(notificationService *service.NotificationService) {
	if notificationService == nil {
		return
	}
	notificationService.RegisterHandlers()
}
