package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// flakyTickets fails ClaimHead and Apply with err for the first failures calls.
type flakyTickets struct {
	repository.TicketRepository
	err      error
	failures int
	calls    int
}

func (f *flakyTickets) fail() error {
	f.calls++
	if f.failures < 0 || f.calls <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyTickets) ClaimHead(ctx context.Context, handlerID *string, at time.Time) (*domain.Ticket, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.TicketRepository.ClaimHead(ctx, handlerID, at)
}

func (f *flakyTickets) Apply(ctx context.Context, update repository.TicketUpdate) (*domain.Ticket, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.TicketRepository.Apply(ctx, update)
}

func newFlakyEnv(t *testing.T, err error, failures int) (*testEnv, *flakyTickets) {
	t.Helper()
	base := newTestEnv(t)
	flaky := &flakyTickets{TicketRepository: base.tickets, err: err, failures: failures}
	return newTestEnvWith(t, flaky, base.catalog, base.store), flaky
}

func TestRetryRecoversFromTransientContention(t *testing.T) {
	env, flaky := newFlakyEnv(t, repository.ErrStale, 2)
	env.submit(t, caseA)

	ticket, err := env.dispatch.PullNext(context.Background(), nil)
	if err != nil {
		t.Fatalf("PullNext: %v", err)
	}
	if ticket == nil || ticket.Number != "A001" {
		t.Fatalf("ticket = %+v", ticket)
	}
	if flaky.calls != 3 {
		t.Fatalf("calls = %d, want 3", flaky.calls)
	}
}

func TestRetryExhaustionSurfacesConflict(t *testing.T) {
	env, flaky := newFlakyEnv(t, repository.ErrConflict, -1)
	admission := env.submit(t, caseB)

	_, err := env.lifecycle.CancelTicket(context.Background(), admission.TicketNumber, StaffActor("s"))
	domainErr := requireCode(t, err, apperrors.CodeConflict)
	if !errors.Is(domainErr, repository.ErrConflict) {
		t.Fatalf("cause not wrapped: %v", domainErr.Err)
	}
	if flaky.calls != testRetry.Attempts {
		t.Fatalf("calls = %d, want %d", flaky.calls, testRetry.Attempts)
	}
}

func TestRetrySkipsNonContentionErrors(t *testing.T) {
	env, flaky := newFlakyEnv(t, repository.ErrUnavailable, -1)
	env.submit(t, caseC)

	_, err := env.dispatch.PullNext(context.Background(), nil)
	requireCode(t, err, apperrors.CodeDependencyUnavailable)
	if flaky.calls != 1 {
		t.Fatalf("calls = %d, want 1", flaky.calls)
	}
}

func TestRetryStopsOnCancelledContext(t *testing.T) {
	policy := RetryPolicy{Attempts: 10, BaseDelay: time.Hour}
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := policy.Do(ctx, func(context.Context) error {
		calls++
		cancel()
		return repository.ErrStale
	})
	if err == nil || calls != 1 {
		t.Fatalf("err = %v, calls = %d", err, calls)
	}
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"not found", repository.ErrNotFound, apperrors.CodeNotFound},
		{"stale", repository.ErrStale, apperrors.CodeConflict},
		{"transition", &domain.TransitionError{Current: domain.TicketStatusCompleted, Requested: domain.TicketStatusCancelled}, apperrors.CodeInvalidStateTransition},
		{"unavailable", repository.ErrUnavailable, apperrors.CodeDependencyUnavailable},
		{"deadline", context.DeadlineExceeded, apperrors.CodeDependencyUnavailable},
		{"domain passthrough", apperrors.NewForbidden("no"), apperrors.CodeForbidden},
		{"other", errors.New("boom"), apperrors.CodeInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			requireCode(t, translateError(tc.err, "ticket", nil), tc.code)
		})
	}
	if translateError(nil, "ticket", nil) != nil {
		t.Fatal("nil error translated")
	}
}
