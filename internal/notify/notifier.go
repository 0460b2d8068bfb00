package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

// Message is the envelope published for downstream delivery services.
type Message struct {
	TicketNumber string              `json:"ticket_number"`
	Status       domain.TicketStatus `json:"status"`
	Language     string              `json:"language"`
	Name         string              `json:"name,omitempty"`
	Email        string              `json:"email,omitempty"`
	Phone        string              `json:"phone,omitempty"`
	Text         string              `json:"text"`
	CreatedAt    time.Time           `json:"created_at"`
}

// NewMessage builds the envelope for ticket.
func NewMessage(ticket domain.Ticket, text string, at time.Time) Message {
	return Message{
		TicketNumber: ticket.Number,
		Status:       ticket.Status,
		Language:     ticket.Language,
		Name:         ticket.Contact.Name,
		Email:        ticket.Contact.Email,
		Phone:        ticket.Contact.Phone,
		Text:         text,
		CreatedAt:    at,
	}
}

// RedisNotifier publishes messages on a Redis pub/sub channel.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	now     func() time.Time
}

// NewRedisNotifier builds a notifier publishing on channel.
func NewRedisNotifier(client *redis.Client, channel string) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, now: time.Now}
}

// Notify publishes the message. Having no subscriber is not an error.
func (n *RedisNotifier) Notify(ctx context.Context, ticket domain.Ticket, text string) error {
	if n.client == nil {
		return errors.New("redis client not configured")
	}
	data, err := json.Marshal(NewMessage(ticket, text, n.now().UTC()))
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, data).Err()
}

// LogNotifier writes messages to the service log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier builds a log-only notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger}
}

// Notify logs the message.
func (n *LogNotifier) Notify(_ context.Context, ticket domain.Ticket, text string) error {
	n.logger.Info("visitor notification",
		zap.String("ticket_number", ticket.Number),
		zap.String("status", string(ticket.Status)),
		zap.String("language", ticket.Language),
		zap.String("text", text))
	return nil
}
