package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/job-board/internal/api/http"
	"github.com/spec-kit/job-board/internal/api/http/handlers"
	"github.com/spec-kit/job-board/internal/auth"
	"github.com/spec-kit/job-board/internal/config"
	"github.com/spec-kit/job-board/internal/events"
	"github.com/spec-kit/job-board/internal/observability"
	"github.com/spec-kit/job-board/internal/persistence"
	"github.com/spec-kit/job-board/internal/repository"
	"github.com/spec-kit/job-board/internal/service"
	"github.com/spec-kit/job-board/internal/storage"
	"github.com/spec-kit/job-board/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.Name)
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

	var repos repository.Repositories
	if pg.Configured() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		repos = repository.NewPostgresRepositories(pg.PoolHandle())
	} else {
		logger.Warn("using in-memory repositories; data will not survive a restart")
		repos = repository.NewMemoryRepositories()
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	cvStore, err := storage.NewCVStore(cfg.Storage, logger)
	if err != nil {
		logger.Fatal("failed to prepare cv storage", zap.Error(err))
	}

	metrics := observability.NewMetrics("jobboard")
	dispatcher := events.NewInMemoryDispatcher()

	mailWorker := worker.NewNotificationWorker(worker.NewMailer(cfg.Notification, logger), cfg.Notification.QueueSize, logger)
	notificationService := service.NewNotificationService(dispatcher, mailWorker, logger)
	worker.StartNotificationWorker(ctx, notificationService, mailWorker)

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:   repos.Users,
		ResetStore: persistence.NewResetTokenStore(redis.Client),
		Mail:       mailWorker,
		Logger:     logger,
	})
	if cfg.Auth.BootstrapAdminEmail != "" && cfg.Auth.BootstrapAdminPassword != "" {
		created, err := authService.EnsureAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword)
		if err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap admin ready", zap.String("email", cfg.Auth.BootstrapAdminEmail))
		}
	}

	jobService := service.NewJobService(service.JobDependencies{
		JobRepo:         repos.Jobs,
		ApplicationRepo: repos.Applications,
		Dispatcher:      dispatcher,
		Logger:          logger,
	})
	applicationService := service.NewApplicationService(service.ApplicationDependencies{
		ApplicationRepo: repos.Applications,
		JobRepo:         repos.Jobs,
		CVStore:         cvStore,
		Dispatcher:      dispatcher,
		Recorder:        metrics,
		Logger:          logger,
		EnforceDeadline: cfg.Applications.EnforceDeadline,
	})
	cvService := service.NewCVService(service.CVDependencies{
		ApplicationRepo: repos.Applications,
		JobRepo:         repos.Jobs,
		Store:           cvStore,
		Logger:          logger,
		OrphanGrace:     cfg.Storage.OrphanGrace(),
	})
	adminService := service.NewAdminService(service.AdminDependencies{
		UserRepo:        repos.Users,
		JobRepo:         repos.Jobs,
		ApplicationRepo: repos.Applications,
		Logger:          logger,
	})
	reportService := service.NewReportService(repos.Jobs, repos.Applications, logger)

	cookie := auth.CookieSettings{Name: cfg.Auth.CookieName, Secure: cfg.Auth.CookieSecure}
	authenticator := auth.NewAuthenticator(authService.TokenManager(), repos.Users, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		BodyLimit:    int(cvStore.MaxBytes()) + 1<<20,
		ErrorHandler: httptransport.ErrorHandler(logger, metrics),
	})
	httptransport.RegisterMiddlewares(app, httptransport.MiddlewareConfig{
		Logger:     logger,
		Metrics:    metrics,
		Timeout:    cfg.App.RequestTimeout(),
		CORSOrigin: cfg.App.CORSOrigin,
		Identity:   auth.NewIdentityMiddleware(authenticator, cookie),
	})

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:       handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, logger),
		Auth:         handlers.NewAuthHandler(authService, cookie),
		Jobs:         handlers.NewJobsHandler(jobService, cvService, reportService),
		Applications: handlers.NewApplicationsHandler(applicationService, cvService),
		Recruiter:    handlers.NewRecruiterHandler(jobService),
		Admin:        handlers.NewAdminHandler(adminService, applicationService, cvService),
		Metrics:      metrics.Handler(),
		AuthLimit: httptransport.RateLimit(cfg.Auth.LoginRateLimitPerMinute,
			persistence.NewLimiterStorage(redis.Client, "ratelimit:")),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.Shutdown(); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	cancel()
	mailWorker.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
