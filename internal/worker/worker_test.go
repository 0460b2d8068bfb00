package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"

	"github.com/spec-kit/visitor-queue/internal/config"
	"github.com/spec-kit/visitor-queue/internal/repository"
)

type fakeSummaries struct {
	numbers []string
	err     error
}

func (f *fakeSummaries) Summarize(_ context.Context, number string) error {
	f.numbers = append(f.numbers, number)
	return f.err
}

func newTestServer(t *testing.T, summaries Summarizer) *Server {
	t.Helper()
	mr := miniredis.RunT(t)
	server, err := NewServer(config.RedisConfig{Addr: mr.Addr()}, config.WorkerConfig{}, summaries, nil)
	if err != nil {
		t.Fatal(err)
	}
	return server
}

func TestTicketSummaryPayload(t *testing.T) {
	task, err := NewTicketSummaryTask("C014")
	if err != nil {
		t.Fatal(err)
	}
	if task.Type() != TaskTicketSummary {
		t.Fatalf("type = %s", task.Type())
	}
	payload, err := ParseTicketSummaryPayload(task)
	if err != nil || payload.TicketNumber != "C014" {
		t.Fatalf("payload = %+v, %v", payload, err)
	}

	if _, err := ParseTicketSummaryPayload(asynq.NewTask(TaskTicketSummary, []byte(`{"ticketNumber":" "}`))); err == nil {
		t.Fatal("blank ticket number accepted")
	}
}

func TestHandleTicketSummary(t *testing.T) {
	summaries := &fakeSummaries{}
	server := newTestServer(t, summaries)
	task, _ := NewTicketSummaryTask("A002")

	if err := server.HandleTicketSummary(context.Background(), task); err != nil {
		t.Fatalf("HandleTicketSummary: %v", err)
	}
	if len(summaries.numbers) != 1 || summaries.numbers[0] != "A002" {
		t.Fatalf("summarized = %v", summaries.numbers)
	}
}

func TestHandleTicketSummaryRetryPolicy(t *testing.T) {
	task, _ := NewTicketSummaryTask("A002")

	missing := newTestServer(t, &fakeSummaries{err: repository.ErrNotFound})
	if err := missing.HandleTicketSummary(context.Background(), task); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("unknown ticket err = %v, want SkipRetry", err)
	}

	garbled := newTestServer(t, &fakeSummaries{})
	if err := garbled.HandleTicketSummary(context.Background(), asynq.NewTask(TaskTicketSummary, []byte("{"))); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("bad payload err = %v, want SkipRetry", err)
	}

	flaky := newTestServer(t, &fakeSummaries{err: errors.New("model timeout")})
	err := flaky.HandleTicketSummary(context.Background(), task)
	if err == nil || errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("transient err = %v, want retryable", err)
	}
}

func TestEnqueueSummary(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := NewClient(config.RedisConfig{Addr: mr.Addr()}, config.WorkerConfig{Queue: "summaries", MaxRetry: 2})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.EnqueueSummary(context.Background(), "B007"); err != nil {
		t.Fatalf("EnqueueSummary: %v", err)
	}
	pending, err := mr.List("asynq:{summaries}:pending")
	if err != nil || len(pending) != 1 {
		t.Fatalf("pending = %v, %v", pending, err)
	}
}

func TestClientRequiresRedis(t *testing.T) {
	if _, err := NewClient(config.RedisConfig{}, config.WorkerConfig{}); err == nil {
		t.Fatal("client built without redis")
	}
	var client *Client
	if err := client.EnqueueSummary(context.Background(), "A001"); err == nil {
		t.Fatal("nil client enqueued")
	}
}
