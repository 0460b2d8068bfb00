package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

type fakeSummarizer struct {
	mu      sync.Mutex
	calls   int
	err     error
	release chan struct{}
}

func (f *fakeSummarizer) Summarize(ctx context.Context, number string, entries []domain.ProgressEntry) (string, error) {
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return fmt.Sprintf("%s went through %d steps", number, len(entries)), nil
}

func (f *fakeSummarizer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitSummaries(t *testing.T, svc *SummaryService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := svc.Wait(ctx); err != nil {
		t.Fatalf("summaries still running: %v", err)
	}
}

type fakeEnqueuer struct {
	numbers []string
	err     error
}

func (f *fakeEnqueuer) EnqueueSummary(_ context.Context, number string) error {
	f.numbers = append(f.numbers, number)
	return f.err
}

func completeWithSteps(t *testing.T, env *testEnv, steps int) string {
	t.Helper()
	ctx := context.Background()
	admission := env.submit(t, caseC)
	if steps == 0 {
		if _, err := env.dispatch.PullNext(ctx, nil); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < steps; i++ {
		if _, err := env.progress.RecordStep(ctx, RecordStepInput{
			TicketNumber: admission.TicketNumber,
			StepID:       fmt.Sprintf("step-%d", i),
			StepText:     "Step",
		}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.lifecycle.CompleteTicket(ctx, admission.TicketNumber, StaffActor("s")); err != nil {
		t.Fatal(err)
	}
	return admission.TicketNumber
}

func TestSummaryAttachedOnCompletion(t *testing.T) {
	env := newTestEnv(t)
	summarizer := &fakeSummarizer{}
	svc := NewSummaryService(SummaryDependencies{
		TicketRepo: env.tickets,
		Summarizer: summarizer,
		Dispatcher: env.dispatcher,
	})
	svc.RegisterHandlers()

	number := completeWithSteps(t, env, 2)
	waitSummaries(t, svc)

	ticket, err := env.queue.GetTicket(context.Background(), number)
	if err != nil {
		t.Fatal(err)
	}
	if ticket.Summary == nil || *ticket.Summary != number+" went through 2 steps" {
		t.Fatalf("summary = %v", ticket.Summary)
	}
	if summarizer.calls != 1 {
		t.Fatalf("calls = %d", summarizer.calls)
	}
}

func TestSummaryFailureLeavesCompletionIntact(t *testing.T) {
	env := newTestEnv(t)
	svc := NewSummaryService(SummaryDependencies{
		TicketRepo: env.tickets,
		Summarizer: &fakeSummarizer{err: errors.New("model overloaded")},
		Dispatcher: env.dispatcher,
	})
	svc.RegisterHandlers()

	number := completeWithSteps(t, env, 1)
	waitSummaries(t, svc)

	ticket, _ := env.queue.GetTicket(context.Background(), number)
	if ticket.Status != domain.TicketStatusCompleted || ticket.Summary != nil {
		t.Fatalf("ticket = %+v", ticket)
	}
}

func TestSummaryPrefersQueue(t *testing.T) {
	env := newTestEnv(t)
	summarizer := &fakeSummarizer{}
	enqueuer := &fakeEnqueuer{}
	svc := NewSummaryService(SummaryDependencies{
		TicketRepo: env.tickets,
		Summarizer: summarizer,
		Enqueuer:   enqueuer,
		Dispatcher: env.dispatcher,
	})
	svc.RegisterHandlers()

	number := completeWithSteps(t, env, 1)
	if len(enqueuer.numbers) != 1 || enqueuer.numbers[0] != number {
		t.Fatalf("enqueued = %v", enqueuer.numbers)
	}
	if summarizer.calls != 0 {
		t.Fatalf("summarized inline %d times", summarizer.calls)
	}
}

func TestSummaryFallsBackInlineWhenQueueFails(t *testing.T) {
	env := newTestEnv(t)
	summarizer := &fakeSummarizer{}
	svc := NewSummaryService(SummaryDependencies{
		TicketRepo: env.tickets,
		Summarizer: summarizer,
		Enqueuer:   &fakeEnqueuer{err: errors.New("redis down")},
		Dispatcher: env.dispatcher,
	})
	svc.RegisterHandlers()

	number := completeWithSteps(t, env, 0)
	waitSummaries(t, svc)
	if summarizer.calls != 1 {
		t.Fatalf("calls = %d", summarizer.calls)
	}
	ticket, _ := env.queue.GetTicket(context.Background(), number)
	if ticket.Summary == nil {
		t.Fatal("summary missing")
	}
}

func TestSummaryIgnoresCancellation(t *testing.T) {
	env := newTestEnv(t)
	summarizer := &fakeSummarizer{}
	svc := NewSummaryService(SummaryDependencies{
		TicketRepo: env.tickets,
		Summarizer: summarizer,
		Dispatcher: env.dispatcher,
	})
	svc.RegisterHandlers()

	admission := env.submit(t, caseA)
	if _, err := env.lifecycle.CancelTicket(context.Background(), admission.TicketNumber, StaffActor("s")); err != nil {
		t.Fatal(err)
	}
	waitSummaries(t, svc)
	if summarizer.calls != 0 {
		t.Fatalf("calls = %d", summarizer.calls)
	}
}

func TestCompletionDoesNotWaitForInlineSummary(t *testing.T) {
	env := newTestEnv(t)
	summarizer := &fakeSummarizer{release: make(chan struct{})}
	svc := NewSummaryService(SummaryDependencies{
		TicketRepo: env.tickets,
		Summarizer: summarizer,
		Dispatcher: env.dispatcher,
		Timeout:    5 * time.Second,
	})
	svc.RegisterHandlers()

	admission := env.submit(t, caseB)
	if _, err := env.dispatch.PullNext(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	ticket, err := env.lifecycle.CompleteTicket(ctx, admission.TicketNumber, StaffActor("s"))
	if err != nil {
		t.Fatalf("CompleteTicket: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatal("completion outlived the caller deadline")
	}
	if ticket.Status != domain.TicketStatusCompleted {
		t.Fatalf("status = %s", ticket.Status)
	}
	if got := summarizer.callCount(); got != 0 {
		t.Fatalf("summarizer finished before release: %d", got)
	}

	close(summarizer.release)
	waitSummaries(t, svc)
	stored, _ := env.queue.GetTicket(context.Background(), admission.TicketNumber)
	if stored.Summary == nil {
		t.Fatal("summary missing after release")
	}
}
