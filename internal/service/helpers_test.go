package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/visitor-queue/internal/config"
	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/events"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

var testRetry = RetryPolicy{Attempts: 4, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

// stepClock advances one second per reading so that ordering by time is deterministic.
type stepClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newStepClock() *stepClock {
	return &stepClock{cur: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Second)
	return c.cur
}

// recordingDispatcher delivers events synchronously and keeps a copy.
type recordingDispatcher struct {
	events.Dispatcher
	mu     sync.Mutex
	events []events.Event
}

func newRecordingDispatcher() *recordingDispatcher {
	return &recordingDispatcher{Dispatcher: events.NewInMemoryDispatcher(nil)}
}

func (d *recordingDispatcher) Publish(ctx context.Context, event events.Event) error {
	d.mu.Lock()
	d.events = append(d.events, event)
	d.mu.Unlock()
	return d.Dispatcher.Publish(ctx, event)
}

func (d *recordingDispatcher) ofType(eventType events.EventType) []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []events.Event
	for _, event := range d.events {
		if event.Type == eventType {
			out = append(out, event)
		}
	}
	return out
}

type testEnv struct {
	store      *repository.MemoryStore
	tickets    repository.TicketRepository
	dispatcher *recordingDispatcher
	catalog    *domain.CaseTypeCatalog
	admission  *AdmissionService
	progress   *ProgressService
	lifecycle  *TicketService
	dispatch   *DispatchService
	queue      *QueueService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	catalog, err := config.LoadCaseTypeCatalog("")
	if err != nil {
		t.Fatalf("load catalog: %v", err)
	}
	store := repository.NewMemoryStore()
	return newTestEnvWith(t, store.Tickets(), catalog, store)
}

func newTestEnvWith(t *testing.T, tickets repository.TicketRepository, catalog *domain.CaseTypeCatalog, store *repository.MemoryStore) *testEnv {
	t.Helper()
	clock := newStepClock()
	dispatcher := newRecordingDispatcher()
	deps := TicketDependencies{
		TicketRepo: tickets,
		Dispatcher: dispatcher,
		Retry:      testRetry,
		Clock:      clock.Now,
	}
	return &testEnv{
		store:      store,
		tickets:    tickets,
		dispatcher: dispatcher,
		catalog:    catalog,
		admission: NewAdmissionService(config.QueueConfig{PhoneRegion: "US", DefaultLanguage: "en"}, AdmissionDependencies{
			Catalog:    catalog,
			TicketRepo: tickets,
			Dispatcher: dispatcher,
			Retry:      testRetry,
			Clock:      clock.Now,
		}),
		progress:  NewProgressService(deps),
		lifecycle: NewTicketService(deps),
		dispatch:  NewDispatchService(deps),
		queue:     NewQueueService(tickets, clock.Now),
	}
}

func (e *testEnv) submit(t *testing.T, caseType string) *Admission {
	t.Helper()
	admission, err := e.admission.SubmitCase(context.Background(), SubmitCaseInput{CaseType: caseType})
	if err != nil {
		t.Fatalf("SubmitCase(%s): %v", caseType, err)
	}
	return admission
}

func requireCode(t *testing.T, err error, code string) *apperrors.DomainError {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	domainErr := apperrors.ToDomainError(err)
	if domainErr.Code != code {
		t.Fatalf("error code = %s (%v), want %s", domainErr.Code, err, code)
	}
	return domainErr
}

func staffID(id string) *string {
	return &id
}
