package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/events"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// TicketService drives staff-initiated lifecycle changes.
type TicketService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	retry      RetryPolicy
	logger     *zap.Logger
	now        func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Retry      RetryPolicy
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewTicketService builds the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		retry:      deps.Retry,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrDefault(deps.Clock),
	}
}

// CompleteTicket closes an in-progress ticket and releases its handler.
func (s *TicketService) CompleteTicket(ctx context.Context, number string, actor events.Actor) (*domain.Ticket, error) {
	return s.transition(ctx, number, domain.TicketStatusCompleted, actor)
}

// CancelTicket withdraws a waiting or in-progress ticket.
func (s *TicketService) CancelTicket(ctx context.Context, number string, actor events.Actor) (*domain.Ticket, error) {
	return s.transition(ctx, number, domain.TicketStatusCancelled, actor)
}

func (s *TicketService) transition(ctx context.Context, number string, target domain.TicketStatus, actor events.Actor) (*domain.Ticket, error) {
	number, err := normalizeTicketNumber(number)
	if err != nil {
		return nil, err
	}

	var (
		updated *domain.Ticket
		from    domain.TicketStatus
	)
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByNumber(ctx, number)
		if err != nil {
			return err
		}
		if err := domain.ValidateTransition(current.Status, target); err != nil {
			return err
		}
		ticket, err := s.tickets.Apply(ctx, repository.TicketUpdate{
			Number:            number,
			ExpectStatus:      current.Status,
			Status:            target,
			At:                s.now(),
			ReleaseAssignment: true,
		})
		if err != nil {
			return err
		}
		from = current.Status
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, translateError(err, "ticket", ticketDetails(number))
	}

	s.logger.Info("ticket closed",
		zap.String("ticket_number", number),
		zap.String("from", string(from)),
		zap.String("to", string(target)))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:   events.EventTicketStatusChanged,
		Ticket: *updated,
		Actor:  actor,
		Payload: events.TicketStatusChangedPayload{
			OldStatus: from,
			NewStatus: target,
		},
	})
	return updated, nil
}

// normalizeTicketNumber canonicalizes caller input such as " a003 ".
func normalizeTicketNumber(number string) (string, error) {
	class, seq, err := domain.ParseTicketNumber(number)
	if err != nil {
		return "", apperrors.NewValidationError("invalid ticket number", map[string]any{"ticket_number": strings.TrimSpace(number)})
	}
	return domain.FormatTicketNumber(class, seq), nil
}

func publishEvent(ctx context.Context, dispatcher events.Dispatcher, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	_ = dispatcher.Publish(ctx, event)
}

// StaffActor attributes an event to a staff member.
func StaffActor(staffID string) events.Actor {
	return events.Actor{
		Type:    events.ActorStaff,
		StaffID: &staffID,
	}
}

func visitorActor() events.Actor {
	return events.Actor{Type: events.ActorVisitor}
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

func clockOrDefault(clock func() time.Time) func() time.Time {
	if clock != nil {
		return clock
	}
	return func() time.Time { return time.Now().UTC() }
}
