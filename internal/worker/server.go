package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/config"
	"github.com/spec-kit/visitor-queue/internal/repository"
)

// Summarizer is the part of the summary service the worker runs.
type Summarizer interface {
	Summarize(ctx context.Context, ticketNumber string) error
}

// Server runs background tasks.
type Server struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	summaries Summarizer
	logger    *zap.Logger
}

// NewServer builds the task server.
func NewServer(redisCfg config.RedisConfig, cfg config.WorkerConfig, summaries Summarizer, logger *zap.Logger) (*Server, error) {
	if redisCfg.Addr == "" {
		return nil, errors.New("redis address not configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 5
	}

	server := asynq.NewServer(redisClientOpt(redisCfg), asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	mux := asynq.NewServeMux()
	s := &Server{
		server:    server,
		mux:       mux,
		summaries: summaries,
		logger:    logger,
	}
	mux.HandleFunc(TaskTicketSummary, s.HandleTicketSummary)
	return s, nil
}

// HandleTicketSummary runs one summary task. Unknown tickets are not retried.
func (s *Server) HandleTicketSummary(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseTicketSummaryPayload(task)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := s.summaries.Summarize(ctx, payload.TicketNumber); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("summary task for unknown ticket", zap.String("ticket_number", payload.TicketNumber))
			return fmt.Errorf("ticket %s: %w", payload.TicketNumber, asynq.SkipRetry)
		}
		return err
	}
	return nil
}

// Run processes tasks until ctx is cancelled, then drains in-flight work.
func (s *Server) Run(ctx context.Context) error {
	if err := s.server.Start(s.mux); err != nil {
		return err
	}
	<-ctx.Done()
	s.server.Shutdown()
	return nil
}
