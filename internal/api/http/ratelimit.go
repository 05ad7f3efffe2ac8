package http

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/config"
	apperrors "github.com/spec-kit/civic-issue-service/pkg/util"
)

// ReportRateLimiter caps how many issues one reporter can file per calendar day.
// The counter lives in Redis keyed by reporter and date, so the cap holds
// across instances.
type ReportRateLimiter struct {
	client *redis.Client
	logger *zap.Logger
	limit  int
}

// NewReportRateLimiter constructs the limiter.
func NewReportRateLimiter(client *redis.Client, logger *zap.Logger, cfg config.RateLimitConfig) *ReportRateLimiter {
	return &ReportRateLimiter{client: client, logger: logger, limit: cfg.ReportsPerDay}
}

// Handle increments the reporter's daily counter and rejects past the cap.
// When Redis is unreachable the request passes; availability wins over the cap.
func (l *ReportRateLimiter) Handle(c *fiber.Ctx) error {
	if l.limit <= 0 {
		return c.Next()
	}
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	key := fmt.Sprintf("ratelimit:reports:%s:%s", principal.User.ID, time.Now().UTC().Format("20060102"))
	count, err := l.client.Incr(c.Context(), key).Result()
	if err != nil {
		l.logger.Warn("report rate limit check skipped", zap.Error(err))
		return c.Next()
	}
	if count == 1 {
		if err := l.client.Expire(c.Context(), key, 24*time.Hour).Err(); err != nil {
			l.logger.Warn("unable to set rate limit key expiry", zap.String("key", key), zap.Error(err))
		}
	}
	if count > int64(l.limit) {
		return apperrors.NewRateLimited("daily report limit reached", map[string]any{
			"limit": l.limit,
		})
	}
	return c.Next()
}
