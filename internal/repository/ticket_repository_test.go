package repository

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap/zaptest"
	"golang.org/x/sync/errgroup"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/persistence"
)

// postgresTestDSNEnv points the store tests at a disposable database. Each
// test runs the migrations inside its own schema and drops it afterwards.
const postgresTestDSNEnv = "POSTGRES_TEST_DSN"

func newPostgresTicketRepo(t *testing.T) TicketRepository {
	t.Helper()
	dsn := os.Getenv(postgresTestDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping postgres store test", postgresTestDSNEnv)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	schema := "vq_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	quoted := pgx.Identifier{schema}.Sanitize()

	admin, err := pgx.Connect(ctx, dsn)
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+quoted); err != nil {
		admin.Close(ctx)
		t.Fatalf("create schema: %v", err)
	}
	admin.Close(ctx)

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	poolCfg.MaxConns = 16
	poolCfg.ConnConfig.RuntimeParams["search_path"] = schema + ",public"
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() {
		dropCtx, dropCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer dropCancel()
		if _, err := pool.Exec(dropCtx, "DROP SCHEMA "+quoted+" CASCADE"); err != nil {
			t.Logf("drop schema %s: %v", schema, err)
		}
		pool.Close()
	})

	if err := persistence.RunMigrations(ctx, pool, zaptest.NewLogger(t)); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return NewTicketRepository(pool)
}

func TestPostgresConcurrentAdmissionsAreContiguous(t *testing.T) {
	repo := newPostgresTicketRepo(t)
	const admissions = 25

	var (
		mu   sync.Mutex
		seqs []int
	)
	var g errgroup.Group
	for i := 0; i < admissions; i++ {
		g.Go(func() error {
			ticket, err := tryAdmit(repo, domain.PriorityClassB)
			if err != nil {
				return err
			}
			mu.Lock()
			seqs = append(seqs, ticket.Seq)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("admission failed: %v", err)
	}

	sort.Ints(seqs)
	for i, seq := range seqs {
		if seq != i+1 {
			t.Fatalf("seqs = %v, want 1..%d", seqs, admissions)
		}
	}

	other := admit(t, repo, domain.PriorityClassA)
	if other.Number != "A001" {
		t.Fatalf("class A started at %s", other.Number)
	}
}

func TestPostgresRolledBackAdmissionKeepsSequence(t *testing.T) {
	repo := newPostgresTicketRepo(t)
	ctx := context.Background()
	admit(t, repo, domain.PriorityClassC)
	boom := errors.New("boom")

	err := repo.WithinAdmission(ctx, func(tx TicketTx) error {
		seq, err := tx.NextSequence(ctx, domain.PriorityClassC)
		if err != nil {
			return err
		}
		if seq != 2 {
			t.Errorf("reserved seq = %d, want 2", seq)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}

	next := admit(t, repo, domain.PriorityClassC)
	if next.Number != "C002" {
		t.Fatalf("after rollback got %s, want C002", next.Number)
	}
}

func TestPostgresDuplicateInsertIsConflict(t *testing.T) {
	repo := newPostgresTicketRepo(t)
	ctx := context.Background()
	existing := admit(t, repo, domain.PriorityClassD)

	err := repo.WithinAdmission(ctx, func(tx TicketTx) error {
		dup := *existing
		return tx.InsertTicket(ctx, &dup)
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestPostgresConcurrentClaimsTakeEachTicketOnce(t *testing.T) {
	repo := newPostgresTicketRepo(t)
	ctx := context.Background()
	const tickets = 30
	classes := []domain.PriorityClass{domain.PriorityClassA, domain.PriorityClassB, domain.PriorityClassC}
	for i := 0; i < tickets; i++ {
		admit(t, repo, classes[i%len(classes)])
	}

	var (
		mu      sync.Mutex
		claimed = map[string]int{}
	)
	var g errgroup.Group
	for w := 0; w < 8; w++ {
		handler := "handler-" + string(rune('a'+w))
		g.Go(func() error {
			for {
				ticket, err := repo.ClaimHead(ctx, &handler, time.Now().UTC())
				if err != nil {
					return err
				}
				if ticket == nil {
					return nil
				}
				mu.Lock()
				claimed[ticket.Number]++
				mu.Unlock()
			}
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("claim failed: %v", err)
	}

	if len(claimed) != tickets {
		t.Fatalf("claimed %d distinct tickets, want %d", len(claimed), tickets)
	}
	for number, count := range claimed {
		if count != 1 {
			t.Fatalf("%s claimed %d times", number, count)
		}
		assignment, err := repo.ActiveAssignment(ctx, number)
		if err != nil || assignment == nil {
			t.Fatalf("%s has no active assignment: %v", number, err)
		}
	}
	if ticket, err := repo.ClaimHead(ctx, nil, time.Now().UTC()); err != nil || ticket != nil {
		t.Fatalf("drained queue claim = %v, %v", ticket, err)
	}
}

func TestPostgresClaimHeadFollowsWaitingOrder(t *testing.T) {
	repo := newPostgresTicketRepo(t)
	ctx := context.Background()
	admit(t, repo, domain.PriorityClassC)
	admit(t, repo, domain.PriorityClassB)
	admit(t, repo, domain.PriorityClassA)
	admit(t, repo, domain.PriorityClassB)

	var order []string
	for {
		ticket, err := repo.ClaimHead(ctx, nil, time.Now().UTC())
		if err != nil {
			t.Fatal(err)
		}
		if ticket == nil {
			break
		}
		order = append(order, ticket.Number)
	}
	want := []string{"A001", "B001", "B002", "C001"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

func TestPostgresApplyIsCompareAndSet(t *testing.T) {
	repo := newPostgresTicketRepo(t)
	ctx := context.Background()
	ticket := admit(t, repo, domain.PriorityClassA)
	now := time.Now().UTC()

	_, err := repo.Apply(ctx, TicketUpdate{
		Number:       ticket.Number,
		ExpectStatus: domain.TicketStatusInProgress,
		Status:       domain.TicketStatusCompleted,
		At:           now,
	})
	if !errors.Is(err, ErrStale) {
		t.Fatalf("stale apply err = %v, want ErrStale", err)
	}

	_, err = repo.Apply(ctx, TicketUpdate{
		Number:       "A999",
		ExpectStatus: domain.TicketStatusWaiting,
		Status:       domain.TicketStatusCancelled,
		At:           now,
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing apply err = %v, want ErrNotFound", err)
	}

	step := "intake"
	handler := "handler-1"
	entry := &domain.ProgressEntry{StepID: step, StepText: "Intake", Timestamp: now}
	updated, err := repo.Apply(ctx, TicketUpdate{
		Number:       ticket.Number,
		ExpectStatus: domain.TicketStatusWaiting,
		Status:       domain.TicketStatusInProgress,
		CurrentStep:  &step,
		At:           now,
		Progress:     entry,
		HandlerID:    &handler,
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if updated.Status != domain.TicketStatusInProgress || updated.CurrentStep == nil || *updated.CurrentStep != step {
		t.Fatalf("updated = %+v", updated)
	}
	if entry.ID == "" {
		t.Fatal("progress entry id not stamped")
	}

	closed, err := repo.Apply(ctx, TicketUpdate{
		Number:            ticket.Number,
		ExpectStatus:      domain.TicketStatusInProgress,
		Status:            domain.TicketStatusCompleted,
		At:                now.Add(time.Minute),
		ReleaseAssignment: true,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if closed.ClosedAt == nil {
		t.Fatal("closed_at not set")
	}
	if _, err := repo.ActiveAssignment(ctx, ticket.Number); !errors.Is(err, ErrNotFound) {
		t.Fatalf("assignment still active: %v", err)
	}
	progress, err := repo.ListProgress(ctx, ticket.Number)
	if err != nil || len(progress) != 1 || progress[0].StepID != step {
		t.Fatalf("progress = %+v, %v", progress, err)
	}
}

func TestPostgresAttachSummary(t *testing.T) {
	repo := newPostgresTicketRepo(t)
	ctx := context.Background()
	ticket := admit(t, repo, domain.PriorityClassB)

	if err := repo.AttachSummary(ctx, ticket.Number, "Filed the response."); err != nil {
		t.Fatal(err)
	}
	stored, err := repo.GetByNumber(ctx, ticket.Number)
	if err != nil || stored.Summary == nil || *stored.Summary != "Filed the response." {
		t.Fatalf("stored = %+v, %v", stored, err)
	}
	if err := repo.AttachSummary(ctx, "B999", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}
