package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/spec-kit/visitor-queue/internal/api/http"
	"github.com/spec-kit/visitor-queue/internal/api/http/handlers"
	"github.com/spec-kit/visitor-queue/internal/auth"
	"github.com/spec-kit/visitor-queue/internal/config"
	"github.com/spec-kit/visitor-queue/internal/events"
	"github.com/spec-kit/visitor-queue/internal/notify"
	"github.com/spec-kit/visitor-queue/internal/observability"
	"github.com/spec-kit/visitor-queue/internal/persistence"
	"github.com/spec-kit/visitor-queue/internal/repository"
	"github.com/spec-kit/visitor-queue/internal/service"
	"github.com/spec-kit/visitor-queue/internal/summary"
	"github.com/spec-kit/visitor-queue/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.App, cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	catalog, err := config.LoadCaseTypeCatalog(cfg.Queue.CaseTypesFile)
	if err != nil {
		logger.Fatal("failed to load case types", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Configured() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	var (
		ticketRepo repository.TicketRepository
		staffRepo  repository.StaffRepository
	)
	if pg.Configured() {
		ticketRepo = repository.NewTicketRepository(pg.PoolHandle())
		staffRepo = repository.NewStaffRepository(pg.PoolHandle())
	} else {
		store := repository.NewMemoryStore()
		ticketRepo = store.Tickets()
		staffRepo = store.Staff()
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	ticketDeps := service.TicketDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Retry:      service.RetryPolicyFromConfig(cfg.Queue),
		Logger:     logger,
	}

	admissionService := service.NewAdmissionService(cfg.Queue, service.AdmissionDependencies{
		Catalog:    catalog,
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Retry:      ticketDeps.Retry,
		Logger:     logger,
	})
	progressService := service.NewProgressService(ticketDeps)
	ticketService := service.NewTicketService(ticketDeps)
	dispatchService := service.NewDispatchService(ticketDeps)
	queueService := service.NewQueueService(ticketRepo, nil)

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if redis.Configured() {
		notifier = notify.NewRedisNotifier(redis.Client, cfg.Notification.Channel)
	}
	notificationService := service.NewNotificationService(dispatcher, notifier, logger)

	summaryDeps := service.SummaryDependencies{
		TicketRepo: ticketRepo,
		Dispatcher: dispatcher,
		Timeout:    cfg.Summary.Timeout(),
		Logger:     logger,
	}
	if cfg.Summary.Enabled() {
		summarizer, err := summary.NewGenAISummarizer(ctx, cfg.Summary)
		if err != nil {
			logger.Warn("summarizer disabled", zap.Error(err))
		} else {
			summaryDeps.Summarizer = summarizer
		}
	}
	// The worker reads tickets from postgres, so tasks are only queued when
	// the API shares that store.
	if redis.Configured() && pg.Configured() && summaryDeps.Summarizer != nil {
		taskClient, err := worker.NewClient(cfg.Redis, cfg.Worker)
		if err != nil {
			logger.Warn("summary task queue disabled", zap.Error(err))
		} else {
			defer taskClient.Close() //nolint:errcheck
			summaryDeps.Enqueuer = taskClient
		}
	}
	summaryService := service.NewSummaryService(summaryDeps)

	worker.StartEventHandlers(notificationService, summaryService)

	authService := service.NewAuthService(cfg.Auth, staffRepo, logger)
	staffService := service.NewStaffService(cfg.Auth, staffRepo, logger)
	if err := staffService.EnsureBootstrapAdmin(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPass); err != nil {
		logger.Fatal("failed to bootstrap admin", zap.Error(err))
	}
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), staffRepo)

	metrics := observability.NewMetrics()
	app := httptransport.NewApp(cfg.App.Name, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis, metrics),
		Tickets:        handlers.NewTicketsHandler(admissionService, progressService, queueService, authService.TokenManager()),
		StaffTickets:   handlers.NewStaffTicketsHandler(queueService, dispatchService, ticketService),
		Staff:          handlers.NewStaffHandler(authService, staffService),
		AuthMiddleware: authMiddleware,
		KioskLimiter:   httptransport.NewIPRateLimiter(cfg.App.KioskRatePerMinute, cfg.App.KioskRateBurst),
	})

	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), cfg.Summary.Timeout())
	defer drainCancel()
	if err := summaryService.Wait(drainCtx); err != nil {
		logger.Warn("inline summaries still running at shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
