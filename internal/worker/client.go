package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"

	"github.com/spec-kit/visitor-queue/internal/config"
)

// Client enqueues background tasks.
type Client struct {
	client   *asynq.Client
	queue    string
	maxRetry int
}

// NewClient connects to the task queue's Redis.
func NewClient(redisCfg config.RedisConfig, cfg config.WorkerConfig) (*Client, error) {
	if redisCfg.Addr == "" {
		return nil, errors.New("redis address not configured")
	}
	return &Client{
		client:   asynq.NewClient(redisClientOpt(redisCfg)),
		queue:    queueName(cfg),
		maxRetry: cfg.MaxRetry,
	}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueSummary schedules summary generation for number.
func (c *Client) EnqueueSummary(ctx context.Context, number string) error {
	if c == nil || c.client == nil {
		return errors.New("task queue not configured")
	}
	task, err := NewTicketSummaryTask(number)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.Queue(c.queue)}
	if c.maxRetry >= 0 {
		opts = append(opts, asynq.MaxRetry(c.maxRetry))
	}
	_, err = c.client.EnqueueContext(ctx, task, opts...)
	return err
}

func redisClientOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func queueName(cfg config.WorkerConfig) string {
	if cfg.Queue == "" {
		return "default"
	}
	return cfg.Queue
}
