package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

func admit(t *testing.T, repo TicketRepository, class domain.PriorityClass) *domain.Ticket {
	t.Helper()
	ticket, err := tryAdmit(repo, class)
	if err != nil {
		t.Fatalf("admit: %v", err)
	}
	return ticket
}

func tryAdmit(repo TicketRepository, class domain.PriorityClass) (*domain.Ticket, error) {
	ctx := context.Background()
	var ticket *domain.Ticket
	err := repo.WithinAdmission(ctx, func(tx TicketTx) error {
		seq, err := tx.NextSequence(ctx, class)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		ticket = &domain.Ticket{
			Number:    domain.FormatTicketNumber(class, seq),
			Class:     class,
			Seq:       seq,
			CaseType:  "test",
			Language:  "en",
			Status:    domain.TicketStatusWaiting,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return tx.InsertTicket(ctx, ticket)
	})
	return ticket, err
}

func TestWithinAdmissionRollsBackSequence(t *testing.T) {
	repo := NewMemoryStore().Tickets()
	ctx := context.Background()
	boom := errors.New("boom")

	err := repo.WithinAdmission(ctx, func(tx TicketTx) error {
		if _, err := tx.NextSequence(ctx, domain.PriorityClassA); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	ticket := admit(t, repo, domain.PriorityClassA)
	if ticket.Seq != 1 {
		t.Fatalf("seq after rollback = %d, want 1", ticket.Seq)
	}
	if _, err := repo.GetByNumber(ctx, "A002"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unexpected ticket: %v", err)
	}
}

func TestSequencesArePerClass(t *testing.T) {
	repo := NewMemoryStore().Tickets()
	a1 := admit(t, repo, domain.PriorityClassA)
	c1 := admit(t, repo, domain.PriorityClassC)
	a2 := admit(t, repo, domain.PriorityClassA)
	if a1.Number != "A001" || c1.Number != "C001" || a2.Number != "A002" {
		t.Fatalf("numbers = %s %s %s", a1.Number, c1.Number, a2.Number)
	}
}

func TestConcurrentAdmissionsGetDistinctSequences(t *testing.T) {
	repo := NewMemoryStore().Tickets()
	const n = 50

	var wg sync.WaitGroup
	numbers := make(chan string, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := tryAdmit(repo, domain.PriorityClassB)
			if err != nil {
				errs <- err
				return
			}
			numbers <- ticket.Number
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		t.Fatalf("admit: %v", err)
	}

	seen := make(map[string]bool, n)
	for number := range numbers {
		if seen[number] {
			t.Fatalf("duplicate ticket number %s", number)
		}
		seen[number] = true
	}
	if len(seen) != n {
		t.Fatalf("got %d tickets, want %d", len(seen), n)
	}
}

func TestListWaitingOrdered(t *testing.T) {
	repo := NewMemoryStore().Tickets()
	admit(t, repo, domain.PriorityClassC)
	admit(t, repo, domain.PriorityClassA)
	admit(t, repo, domain.PriorityClassB)
	admit(t, repo, domain.PriorityClassA)

	waiting, err := repo.ListWaitingOrdered(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"A001", "A002", "B001", "C001"}
	if len(waiting) != len(want) {
		t.Fatalf("len = %d", len(waiting))
	}
	for i, ticket := range waiting {
		if ticket.Number != want[i] {
			t.Fatalf("position %d = %s, want %s", i, ticket.Number, want[i])
		}
	}

	if ahead, _ := repo.CountWaitingAhead(context.Background(), domain.PriorityClassB.Rank()); ahead != 3 {
		t.Fatalf("CountWaitingAhead(B) = %d, want 3", ahead)
	}
}

func TestApplyIsCompareAndSet(t *testing.T) {
	repo := NewMemoryStore().Tickets()
	ctx := context.Background()
	ticket := admit(t, repo, domain.PriorityClassD)
	now := time.Now().UTC()

	_, err := repo.Apply(ctx, TicketUpdate{
		Number:       ticket.Number,
		ExpectStatus: domain.TicketStatusInProgress,
		Status:       domain.TicketStatusCompleted,
		At:           now,
	})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("err = %v, want ErrStale", err)
	}

	_, err = repo.Apply(ctx, TicketUpdate{Number: "D999", ExpectStatus: domain.TicketStatusWaiting, Status: domain.TicketStatusCancelled, At: now})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	step := "intake"
	entry := &domain.ProgressEntry{StepID: step, StepText: "Intake form", Timestamp: now}
	updated, err := repo.Apply(ctx, TicketUpdate{
		Number:       ticket.Number,
		ExpectStatus: domain.TicketStatusWaiting,
		Status:       domain.TicketStatusInProgress,
		CurrentStep:  &step,
		At:           now,
		Progress:     entry,
	})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.TicketStatusInProgress || updated.CurrentStep == nil || *updated.CurrentStep != step {
		t.Fatalf("updated = %+v", updated)
	}
	if entry.ID == "" || entry.TicketNumber != ticket.Number {
		t.Fatalf("entry not stamped: %+v", entry)
	}
	entries, _ := repo.ListProgress(ctx, ticket.Number)
	if len(entries) != 1 || entries[0].StepID != step {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestClaimHeadAssignsAndReleases(t *testing.T) {
	repo := NewMemoryStore().Tickets()
	ctx := context.Background()
	admit(t, repo, domain.PriorityClassC)
	admit(t, repo, domain.PriorityClassB)
	handler := "staff-1"
	now := time.Now().UTC()

	claimed, err := repo.ClaimHead(ctx, &handler, now)
	if err != nil {
		t.Fatal(err)
	}
	if claimed.Number != "B001" || claimed.Status != domain.TicketStatusInProgress {
		t.Fatalf("claimed = %+v", claimed)
	}
	assignment, err := repo.ActiveAssignment(ctx, claimed.Number)
	if err != nil || assignment.HandlerID != handler {
		t.Fatalf("assignment = %+v, %v", assignment, err)
	}

	closed, err := repo.Apply(ctx, TicketUpdate{
		Number:            claimed.Number,
		ExpectStatus:      domain.TicketStatusInProgress,
		Status:            domain.TicketStatusCompleted,
		At:                now.Add(time.Minute),
		ReleaseAssignment: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if closed.ClosedAt == nil {
		t.Fatal("closed_at not set")
	}
	if _, err := repo.ActiveAssignment(ctx, claimed.Number); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assignment still active: %v", err)
	}

	next, _ := repo.ClaimHead(ctx, nil, now)
	if next == nil || next.Number != "C001" {
		t.Fatalf("next = %+v", next)
	}
	empty, err := repo.ClaimHead(ctx, nil, now)
	if err != nil || empty != nil {
		t.Fatalf("empty queue = %+v, %v", empty, err)
	}
}

func TestReturnedTicketsAreCopies(t *testing.T) {
	repo := NewMemoryStore().Tickets()
	ctx := context.Background()
	ticket := admit(t, repo, domain.PriorityClassA)

	got, _ := repo.GetByNumber(ctx, ticket.Number)
	got.Status = domain.TicketStatusCancelled

	again, _ := repo.GetByNumber(ctx, ticket.Number)
	if again.Status != domain.TicketStatusWaiting {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestMemoryStaff(t *testing.T) {
	repo := NewMemoryStore().Staff()
	ctx := context.Background()

	staff := &domain.StaffMember{Name: "Ana", Email: "Ana@Court.example", Role: domain.StaffRoleAgent, Active: true}
	if err := repo.Create(ctx, staff); err != nil {
		t.Fatal(err)
	}
	if staff.ID == "" {
		t.Fatal("id not assigned")
	}
	if err := repo.Create(ctx, &domain.StaffMember{Email: "ana@court.example"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate email err = %v", err)
	}
	found, err := repo.GetByEmail(ctx, "ANA@court.example")
	if err != nil || found.ID != staff.ID {
		t.Fatalf("GetByEmail = %+v, %v", found, err)
	}
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetByID missing err = %v", err)
	}
}
