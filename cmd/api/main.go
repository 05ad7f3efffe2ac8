package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/civic-issue-service/internal/api/http"
	"github.com/spec-kit/civic-issue-service/internal/api/http/handlers"
	"github.com/spec-kit/civic-issue-service/internal/auth"
	"github.com/spec-kit/civic-issue-service/internal/config"
	"github.com/spec-kit/civic-issue-service/internal/directory"
	"github.com/spec-kit/civic-issue-service/internal/events"
	"github.com/spec-kit/civic-issue-service/internal/observability"
	"github.com/spec-kit/civic-issue-service/internal/persistence"
	"github.com/spec-kit/civic-issue-service/internal/repository"
	"github.com/spec-kit/civic-issue-service/internal/service"
	"github.com/spec-kit/civic-issue-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	routes, err := directory.New(cfg.Routing)
	if err != nil {
		logger.Fatal("invalid routing configuration", zap.Error(err))
	}

	pool := pg.PoolHandle()
	userRepo := repository.NewUserRepository(pool)
	issueRepo := repository.NewIssueRepository(pool)
	escalationRepo := repository.NewEscalationRepository(pool)
	authorityRepo := repository.NewAuthorityRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	gamification := service.NewGamificationService(userRepo, dispatcher, logger, cfg.Gamification)
	issueService := service.NewIssueService(service.IssueDependencies{
		IssueRepo:     issueRepo,
		UserRepo:      userRepo,
		AuthorityRepo: authorityRepo,
		Directory:     routes,
		Gamification:  gamification,
		Dispatcher:    dispatcher,
		Logger:        logger,
		SLA:           cfg.SLA,
		IDPrefix:      cfg.Routing.ComplaintIDPrefix,
	})
	escalationService := service.NewEscalationService(service.EscalationDependencies{
		IssueRepo:      issueRepo,
		EscalationRepo: escalationRepo,
		Directory:      routes,
		Dispatcher:     dispatcher,
		Logger:         logger,
		SLA:            cfg.SLA,
	})
	authService := service.NewAuthService(*cfg, userRepo)
	notificationService := service.NewNotificationService(dispatcher, logger, cfg.Notification)
	worker.StartNotificationWorker(notificationService)

	sweeper := worker.NewSLASweeper(issueRepo, escalationService, logger, cfg.Sweeper)
	if cfg.Sweeper.Enabled {
		go sweeper.Run(ctx)
	}

	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)
	reportLimiter := httptransport.NewReportRateLimiter(redis.Client, logger, cfg.RateLimit)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Users:          handlers.NewUsersHandler(authService),
		Issues:         handlers.NewIssuesHandler(issueService),
		Escalations:    handlers.NewEscalationsHandler(issueService, escalationService),
		Authorities:    handlers.NewAuthoritiesHandler(authorityRepo, issueService),
		AuthMiddleware: authMiddleware,
		ReportLimiter:  reportLimiter,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)
	cancel()

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
