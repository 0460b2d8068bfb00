package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/events"
	"github.com/spec-kit/visitor-queue/internal/repository"
)

// Summarizer condenses a ticket's progress into a short case summary.
type Summarizer interface {
	Summarize(ctx context.Context, ticketNumber string, entries []domain.ProgressEntry) (string, error)
}

// SummaryEnqueuer schedules summary generation on a background worker.
type SummaryEnqueuer interface {
	EnqueueSummary(ctx context.Context, ticketNumber string) error
}

// SummaryService attaches summaries to completed tickets.
type SummaryService struct {
	tickets    repository.TicketRepository
	summarizer Summarizer
	enqueuer   SummaryEnqueuer
	dispatcher events.Dispatcher
	timeout    time.Duration
	logger     *zap.Logger
	inflight   sync.WaitGroup
}

// SummaryDependencies bundles collaborators for summaries. Summarizer and
// Enqueuer are both optional.
type SummaryDependencies struct {
	TicketRepo repository.TicketRepository
	Summarizer Summarizer
	Enqueuer   SummaryEnqueuer
	Dispatcher events.Dispatcher
	Timeout    time.Duration
	Logger     *zap.Logger
}

// NewSummaryService builds the service.
func NewSummaryService(deps SummaryDependencies) *SummaryService {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SummaryService{
		tickets:    deps.TicketRepo,
		summarizer: deps.Summarizer,
		enqueuer:   deps.Enqueuer,
		dispatcher: deps.Dispatcher,
		timeout:    timeout,
		logger:     loggerOrNop(deps.Logger),
	}
}

// RegisterHandlers requests a summary whenever a ticket completes.
func (s *SummaryService) RegisterHandlers() {
	if s.dispatcher == nil {
		return
	}
	s.dispatcher.Subscribe(events.EventTicketStatusChanged, s.handleTicketStatusChanged)
}

func (s *SummaryService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok || payload.NewStatus != domain.TicketStatusCompleted {
		return nil
	}
	s.Request(ctx, event.Ticket.Number)
	return nil
}

// Request asks for a summary of number. The background queue is preferred;
// without one the summarizer runs in a goroutine under its own deadline so
// the caller never waits on it. Failures are logged and never returned.
func (s *SummaryService) Request(ctx context.Context, number string) {
	if s.enqueuer != nil {
		err := s.enqueuer.EnqueueSummary(ctx, number)
		if err == nil {
			return
		}
		s.logger.Warn("summary enqueue failed; summarizing inline",
			zap.String("ticket_number", number),
			zap.Error(err))
	}
	if s.summarizer == nil {
		return
	}

	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer cancel()
		if err := s.Summarize(runCtx, number); err != nil {
			s.logger.Warn("summary failed",
				zap.String("ticket_number", number),
				zap.Error(err))
		}
	}()
}

// Wait blocks until inline summaries started by Request have finished or
// ctx is done.
func (s *SummaryService) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Summarize generates and stores the summary for number. Worker tasks
// call it directly so that errors drive task retries.
func (s *SummaryService) Summarize(ctx context.Context, number string) error {
	if s.summarizer == nil {
		return nil
	}
	entries, err := s.tickets.ListProgress(ctx, number)
	if err != nil {
		return err
	}
	summary, err := s.summarizer.Summarize(ctx, number, entries)
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}
	if err := s.tickets.AttachSummary(ctx, number, summary); err != nil {
		return err
	}
	s.logger.Info("summary attached", zap.String("ticket_number", number))
	return nil
}
