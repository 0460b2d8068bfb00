package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/config"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Postgres.DSN == "" {
		logger.Fatal("POSTGRES_DSN is required for the worker")
	}
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	summarizer, err := summary.NewGenAISummarizer(ctx, cfg.Summary)
	if err != nil {
		logger.Fatal("failed to init summarizer", zap.Error(err))
	}

	summaries := service.NewSummaryService(service.SummaryDependencies{
		TicketRepo: repository.NewTicketRepository(pg.PoolHandle()),
		Summarizer: summarizer,
		Timeout:    cfg.Summary.Timeout(),
		Logger:     logger,
	})

	server, err := worker.NewServer(cfg.Redis, cfg.Worker, summaries, logger)
	if err != nil {
		logger.Fatal("failed to init worker", zap.Error(err))
	}

	logger.Info("worker started", zap.String("queue", cfg.Worker.Queue))
	if err := server.Run(ctx); err != nil {
		logger.Fatal("worker stopped", zap.Error(err))
	}
	logger.Info("worker stopped")
}
