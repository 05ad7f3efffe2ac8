package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/civic-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/civic-issue-service/internal/auth"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Users          *handlers.UsersHandler
	Issues         *handlers.IssuesHandler
	Escalations    *handlers.EscalationsHandler
	Authorities    *handlers.AuthoritiesHandler
	AuthMiddleware *auth.AuthMiddleware
	ReportLimiter  *ReportRateLimiter
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	authGroup := app.Group("/auth")
	authGroup.Post("/register", cfg.Users.Register)
	authGroup.Post("/login", cfg.Users.Login)

	users := app.Group("/users")
	users.Get("/me", cfg.AuthMiddleware.Handle, cfg.Users.Me)
	users.Get("/:id/achievements", cfg.Users.Achievements)

	issues := app.Group("/issues")
	issues.Post("", cfg.AuthMiddleware.Handle, cfg.ReportLimiter.Handle, cfg.Issues.Create)
	issues.Get("", cfg.Issues.List)
	issues.Get("/:id", cfg.Issues.Get)
	issues.Get("/:id/escalations", cfg.Escalations.ListForIssue)
	issues.Post("/:id/status", cfg.AuthMiddleware.Handle, auth.RequireHandler(), cfg.Issues.Transition)
	issues.Post("/:id/assign", cfg.AuthMiddleware.Handle, auth.RequireHandler(), cfg.Issues.Assign)
	issues.Post("/:id/escalate", cfg.AuthMiddleware.Handle, cfg.Escalations.Escalate)

	escalations := app.Group("/escalations", cfg.AuthMiddleware.Handle, auth.RequireHandler())
	escalations.Get("/pending", cfg.Escalations.ListPending)
	escalations.Post("/:id/accept", cfg.Escalations.Accept)
	escalations.Post("/:id/reject", cfg.Escalations.Reject)

	authorities := app.Group("/authorities")
	authorities.Get("", cfg.Authorities.List)
	authorities.Get("/:type", cfg.Authorities.Get)
	authorities.Get("/:type/issues", cfg.Authorities.Issues)
}
