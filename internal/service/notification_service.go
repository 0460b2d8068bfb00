package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/events"
)

// Notifier hands a visitor-facing message to a downstream delivery channel.
type Notifier interface {
	Notify(ctx context.Context, ticket domain.Ticket, message string) error
}

// NotificationService turns ticket events into visitor notifications.
type NotificationService struct {
	dispatcher events.Dispatcher
	notifier   Notifier
	logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, notifier Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     loggerOrNop(logger),
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil || n.notifier == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventTicketCreated, n.handleTicketCreated)
	n.dispatcher.Subscribe(events.EventTicketStatusChanged, n.handleTicketStatusChanged)
}

func (n *NotificationService) handleTicketCreated(ctx context.Context, event events.Event) error {
	message := fmt.Sprintf("Your ticket is %s. Estimated wait: %d minutes.",
		event.Ticket.Number, event.Ticket.EstimatedWaitMinutes)
	n.send(ctx, event, message)
	return nil
}

func (n *NotificationService) handleTicketStatusChanged(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.TicketStatusChangedPayload)
	if !ok {
		return nil
	}
	var message string
	switch payload.NewStatus {
	case domain.TicketStatusInProgress:
		if payload.OldStatus != domain.TicketStatusWaiting || event.Actor.Type == events.ActorVisitor {
			return nil
		}
		message = fmt.Sprintf("Ticket %s, please come to the counter.", event.Ticket.Number)
	case domain.TicketStatusCompleted:
		message = fmt.Sprintf("Your visit for ticket %s is complete.", event.Ticket.Number)
	case domain.TicketStatusCancelled:
		message = fmt.Sprintf("Ticket %s has been cancelled.", event.Ticket.Number)
	default:
		return nil
	}
	n.send(ctx, event, message)
	return nil
}

// send never fails the caller; delivery problems are only logged.
func (n *NotificationService) send(ctx context.Context, event events.Event, message string) {
	if event.Ticket.Contact.IsZero() {
		n.logger.Debug("no contact on ticket; notification skipped",
			zap.String("ticket_number", event.Ticket.Number),
			zap.String("event_type", string(event.Type)))
		return
	}
	if err := n.notifier.Notify(ctx, event.Ticket, message); err != nil {
		n.logger.Warn("notification failed",
			zap.String("ticket_number", event.Ticket.Number),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
