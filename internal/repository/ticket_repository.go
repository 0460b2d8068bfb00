package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

// TicketTx is the transactional view used while admitting a ticket.
// Everything done through it commits or rolls back together.
type TicketTx interface {
	// NextSequence reserves the next seq for class. The reservation is
	// released if the surrounding transaction does not commit.
	NextSequence(ctx context.Context, class domain.PriorityClass) (int, error)
	CountWaitingAhead(ctx context.Context, rank int) (int, error)
	InsertTicket(ctx context.Context, ticket *domain.Ticket) error
}

// TicketUpdate is a single-ticket compare-and-set write. It only applies
// when the stored status still equals ExpectStatus.
type TicketUpdate struct {
	Number       string
	ExpectStatus domain.TicketStatus
	Status       domain.TicketStatus
	// CurrentStep replaces the current step when non-nil.
	CurrentStep *string
	At          time.Time
	// Progress is appended in the same write when non-nil.
	Progress *domain.ProgressEntry
	// HandlerID opens an active assignment when non-nil.
	HandlerID *string
	// ReleaseAssignment closes the active assignment.
	ReleaseAssignment bool
}

// TicketRepository is the queue store.
type TicketRepository interface {
	WithinAdmission(ctx context.Context, fn func(tx TicketTx) error) error
	GetByNumber(ctx context.Context, number string) (*domain.Ticket, error)
	ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error)
	ListWaitingOrdered(ctx context.Context) ([]domain.Ticket, error)
	// Snapshot returns waiting and in-progress tickets read in one statement.
	Snapshot(ctx context.Context) (waiting, inProgress []domain.Ticket, err error)
	CountWaitingAhead(ctx context.Context, rank int) (int, error)
	Apply(ctx context.Context, update TicketUpdate) (*domain.Ticket, error)
	// ClaimHead moves the head of the waiting order to in_progress. It
	// returns nil without error when nothing is waiting.
	ClaimHead(ctx context.Context, handlerID *string, at time.Time) (*domain.Ticket, error)
	ListProgress(ctx context.Context, number string) ([]domain.ProgressEntry, error)
	ActiveAssignment(ctx context.Context, number string) (*domain.HandlerAssignment, error)
	AttachSummary(ctx context.Context, number, summary string) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the PostgreSQL queue store.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `number, class, seq, case_type, contact_name, contact_email, contact_phone, language,
               status, current_step, estimated_wait_minutes, assigned_handler_id, summary,
               created_at, updated_at, closed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *ticketRepository) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return classifyError(pgx.BeginFunc(ctx, r.pool, fn))
}

func (r *ticketRepository) WithinAdmission(ctx context.Context, fn func(tx TicketTx) error) error {
	return r.inTx(ctx, func(tx pgx.Tx) error {
		return fn(&pgTicketTx{tx: tx})
	})
}

type pgTicketTx struct {
	tx pgx.Tx
}

func (t *pgTicketTx) NextSequence(ctx context.Context, class domain.PriorityClass) (int, error) {
	// The counter row is seeded from existing tickets so a lost counter
	// never hands out a seq that is already taken.
	const query = `
        INSERT INTO ticket_sequences (class, last_seq)
        VALUES ($1, COALESCE((SELECT MAX(seq) FROM tickets WHERE class=$1), 0) + 1)
        ON CONFLICT (class) DO UPDATE SET last_seq = ticket_sequences.last_seq + 1
        RETURNING last_seq`
	var seq int
	if err := t.tx.QueryRow(ctx, query, string(class)).Scan(&seq); err != nil {
		return 0, classifyError(err)
	}
	return seq, nil
}

func (t *pgTicketTx) CountWaitingAhead(ctx context.Context, rank int) (int, error) {
	return countWaitingAhead(ctx, t.tx, rank)
}

func (t *pgTicketTx) InsertTicket(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (number, class, class_rank, seq, case_type, contact_name, contact_email, contact_phone,
            language, status, current_step, estimated_wait_minutes, assigned_handler_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`
	_, err := t.tx.Exec(ctx, query,
		ticket.Number,
		string(ticket.Class),
		ticket.Class.Rank(),
		ticket.Seq,
		ticket.CaseType,
		nullString(ticket.Contact.Name),
		nullString(ticket.Contact.Email),
		nullString(ticket.Contact.Phone),
		ticket.Language,
		string(ticket.Status),
		ticket.CurrentStep,
		ticket.EstimatedWaitMinutes,
		ticket.AssignedHandlerID,
		ticket.CreatedAt,
		ticket.UpdatedAt,
	)
	return classifyError(err)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func countWaitingAhead(ctx context.Context, q querier, rank int) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE status='waiting' AND class_rank <= $1`
	var count int
	if err := q.QueryRow(ctx, query, rank).Scan(&count); err != nil {
		return 0, classifyError(err)
	}
	return count, nil
}

func (r *ticketRepository) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE number=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, number))
	if err != nil {
		return nil, classifyError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status=$1 ORDER BY class_rank ASC, seq ASC`
	return r.list(ctx, query, string(status))
}

func (r *ticketRepository) ListWaitingOrdered(ctx context.Context) ([]domain.Ticket, error) {
	return r.ListByStatus(ctx, domain.TicketStatusWaiting)
}

func (r *ticketRepository) Snapshot(ctx context.Context) ([]domain.Ticket, []domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
             WHERE status IN ('waiting','in_progress') ORDER BY class_rank ASC, seq ASC`
	tickets, err := r.list(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	waiting := make([]domain.Ticket, 0, len(tickets))
	inProgress := make([]domain.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Status == domain.TicketStatusWaiting {
			waiting = append(waiting, ticket)
		} else {
			inProgress = append(inProgress, ticket)
		}
	}
	return waiting, inProgress, nil
}

func (r *ticketRepository) list(ctx context.Context, query string, args ...any) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, classifyError(err)
		}
		result = append(result, *ticket)
	}
	return result, classifyError(rows.Err())
}

func (r *ticketRepository) CountWaitingAhead(ctx context.Context, rank int) (int, error) {
	return countWaitingAhead(ctx, r.pool, rank)
}

func (r *ticketRepository) Apply(ctx context.Context, update TicketUpdate) (*domain.Ticket, error) {
	var updated *domain.Ticket
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		ticket, err := applyUpdate(ctx, tx, update)
		if err != nil {
			return err
		}
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *ticketRepository) ClaimHead(ctx context.Context, handlerID *string, at time.Time) (*domain.Ticket, error) {
	// SKIP LOCKED: a head row locked by a concurrent claim is passed over
	// instead of re-evaluated after the lock wait, which would yield no row.
	const headQuery = `
        SELECT number FROM tickets WHERE status='waiting'
        ORDER BY class_rank ASC, seq ASC
        LIMIT 1 FOR UPDATE SKIP LOCKED`

	var claimed *domain.Ticket
	err := r.inTx(ctx, func(tx pgx.Tx) error {
		var number string
		if err := tx.QueryRow(ctx, headQuery).Scan(&number); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil
			}
			return err
		}
		ticket, err := applyUpdate(ctx, tx, TicketUpdate{
			Number:       number,
			ExpectStatus: domain.TicketStatusWaiting,
			Status:       domain.TicketStatusInProgress,
			At:           at,
			HandlerID:    handlerID,
		})
		if err != nil {
			return err
		}
		claimed = ticket
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func applyUpdate(ctx context.Context, tx pgx.Tx, u TicketUpdate) (*domain.Ticket, error) {
	var closedAt *time.Time
	if u.Status.IsTerminal() {
		at := u.At
		closedAt = &at
	}
	query := `
        UPDATE tickets SET status=$1, current_step=COALESCE($2, current_step),
            assigned_handler_id=COALESCE($3, assigned_handler_id), updated_at=$4, closed_at=COALESCE($5, closed_at)
        WHERE number=$6 AND status=$7
        RETURNING ` + ticketColumns
	ticket, err := scanTicket(tx.QueryRow(ctx, query,
		string(u.Status),
		u.CurrentStep,
		u.HandlerID,
		u.At,
		closedAt,
		u.Number,
		string(u.ExpectStatus),
	))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tickets WHERE number=$1)`, u.Number).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrStale
	}

	if u.Progress != nil {
		const insertProgress = `
            INSERT INTO progress_entries (ticket_number, step_id, step_text, response_text, recorded_at)
            VALUES ($1,$2,$3,$4,$5)
            RETURNING id`
		u.Progress.TicketNumber = ticket.Number
		if err := tx.QueryRow(ctx, insertProgress,
			u.Progress.TicketNumber,
			u.Progress.StepID,
			u.Progress.StepText,
			u.Progress.ResponseText,
			u.Progress.Timestamp,
		).Scan(&u.Progress.ID); err != nil {
			return nil, err
		}
	}
	if u.ReleaseAssignment {
		const release = `UPDATE handler_assignments SET released_at=$2 WHERE ticket_number=$1 AND released_at IS NULL`
		if _, err := tx.Exec(ctx, release, ticket.Number, u.At); err != nil {
			return nil, err
		}
	}
	if u.HandlerID != nil {
		const assign = `INSERT INTO handler_assignments (ticket_number, handler_id, assigned_at) VALUES ($1,$2,$3)`
		if _, err := tx.Exec(ctx, assign, ticket.Number, *u.HandlerID, u.At); err != nil {
			return nil, err
		}
	}
	return ticket, nil
}

func (r *ticketRepository) ListProgress(ctx context.Context, number string) ([]domain.ProgressEntry, error) {
	const query = `
        SELECT id, ticket_number, step_id, step_text, response_text, recorded_at
        FROM progress_entries WHERE ticket_number=$1 ORDER BY recorded_at ASC, position ASC`
	rows, err := r.pool.Query(ctx, query, number)
	if err != nil {
		return nil, classifyError(err)
	}
	defer rows.Close()

	result := []domain.ProgressEntry{}
	for rows.Next() {
		var entry domain.ProgressEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketNumber,
			&entry.StepID,
			&entry.StepText,
			&entry.ResponseText,
			&entry.Timestamp,
		); err != nil {
			return nil, classifyError(err)
		}
		result = append(result, entry)
	}
	return result, classifyError(rows.Err())
}

func (r *ticketRepository) ActiveAssignment(ctx context.Context, number string) (*domain.HandlerAssignment, error) {
	const query = `
        SELECT id, ticket_number, handler_id, assigned_at, released_at
        FROM handler_assignments WHERE ticket_number=$1 AND released_at IS NULL`
	var assignment domain.HandlerAssignment
	if err := r.pool.QueryRow(ctx, query, number).Scan(
		&assignment.ID,
		&assignment.TicketNumber,
		&assignment.HandlerID,
		&assignment.AssignedAt,
		&assignment.ReleasedAt,
	); err != nil {
		return nil, classifyError(err)
	}
	return &assignment, nil
}

func (r *ticketRepository) AttachSummary(ctx context.Context, number, summary string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE tickets SET summary=$1 WHERE number=$2`, summary, number)
	if err != nil {
		return classifyError(err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket             domain.Ticket
		class, status      string
		name, email, phone *string
	)
	if err := row.Scan(
		&ticket.Number,
		&class,
		&ticket.Seq,
		&ticket.CaseType,
		&name,
		&email,
		&phone,
		&ticket.Language,
		&status,
		&ticket.CurrentStep,
		&ticket.EstimatedWaitMinutes,
		&ticket.AssignedHandlerID,
		&ticket.Summary,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	ticket.Class = domain.PriorityClass(class)
	ticket.Status = domain.TicketStatus(status)
	ticket.Contact = domain.Contact{Name: deref(name), Email: deref(email), Phone: deref(phone)}
	return &ticket, nil
}

func nullString(val string) *string {
	if val == "" {
		return nil
	}
	return &val
}

func deref(val *string) string {
	if val == nil {
		return ""
	}
	return *val
}
