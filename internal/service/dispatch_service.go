package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/events"
	"github.com/spec-kit/visitor-queue/internal/repository"
)

// DispatchService hands the next waiting ticket to a counter.
type DispatchService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	retry      RetryPolicy
	logger     *zap.Logger
	now        func() time.Time
}

// NewDispatchService builds the service.
func NewDispatchService(deps TicketDependencies) *DispatchService {
	return &DispatchService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		retry:      deps.Retry,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrDefault(deps.Clock),
	}
}

// PullNext claims the head of the waiting order and, when handlerID is
// set, assigns it. It returns a nil ticket when nothing is waiting.
func (s *DispatchService) PullNext(ctx context.Context, handlerID *string) (*domain.Ticket, error) {
	if handlerID != nil {
		trimmed := strings.TrimSpace(*handlerID)
		if trimmed == "" {
			handlerID = nil
		} else {
			handlerID = &trimmed
		}
	}

	var claimed *domain.Ticket
	attempts := 0
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		attempts++
		ticket, err := s.tickets.ClaimHead(ctx, handlerID, s.now())
		if err != nil {
			return err
		}
		claimed = ticket
		return nil
	})
	if err != nil {
		if isContention(err) {
			s.logger.Warn("pull next exhausted retries", zap.Int("attempts", attempts), zap.Error(err))
		}
		return nil, translateError(err, "ticket", nil)
	}
	if claimed == nil {
		return nil, nil
	}

	actor := events.Actor{Type: events.ActorSystem}
	if handlerID != nil {
		actor = StaffActor(*handlerID)
	}
	s.logger.Info("ticket dispatched",
		zap.String("ticket_number", claimed.Number),
		zap.Stringp("handler_id", handlerID))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:   events.EventTicketStatusChanged,
		Ticket: *claimed,
		Actor:  actor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: domain.TicketStatusWaiting,
			NewStatus: domain.TicketStatusInProgress,
		},
	})
	if handlerID != nil {
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:    events.EventTicketAssigned,
			Ticket:  *claimed,
			Actor:   actor,
			Payload: events.TicketAssignedPayload{HandlerID: *handlerID},
		})
	}
	return claimed, nil
}
