package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

// MemoryStore is a mutex-guarded queue and staff store. It serves local
// development without a database and the package tests; counters do not
// survive a restart.
type MemoryStore struct {
	mu          sync.RWMutex
	tickets     map[string]*domain.Ticket
	sequences   map[domain.PriorityClass]int
	progress    map[string][]domain.ProgressEntry
	assignments map[string][]domain.HandlerAssignment
	staff       map[string]*domain.StaffMember
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tickets:     make(map[string]*domain.Ticket),
		sequences:   make(map[domain.PriorityClass]int),
		progress:    make(map[string][]domain.ProgressEntry),
		assignments: make(map[string][]domain.HandlerAssignment),
		staff:       make(map[string]*domain.StaffMember),
	}
}

// Tickets exposes the store as a TicketRepository.
func (m *MemoryStore) Tickets() TicketRepository {
	return memoryTickets{m}
}

// Staff exposes the store as a StaffRepository.
func (m *MemoryStore) Staff() StaffRepository {
	return memoryStaff{m}
}

type memoryTickets struct {
	m *MemoryStore
}

// memoryTx stages writes until the admission callback returns without error.
type memoryTx struct {
	m         *MemoryStore
	sequences map[domain.PriorityClass]int
	inserted  []*domain.Ticket
}

func (s memoryTickets) WithinAdmission(ctx context.Context, fn func(tx TicketTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	tx := &memoryTx{m: s.m, sequences: make(map[domain.PriorityClass]int)}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	for class, seq := range tx.sequences {
		s.m.sequences[class] = seq
	}
	for _, ticket := range tx.inserted {
		s.m.tickets[ticket.Number] = ticket
	}
	return nil
}

func (tx *memoryTx) NextSequence(_ context.Context, class domain.PriorityClass) (int, error) {
	current, staged := tx.sequences[class]
	if !staged {
		current = tx.m.sequences[class]
	}
	tx.sequences[class] = current + 1
	return current + 1, nil
}

func (tx *memoryTx) CountWaitingAhead(_ context.Context, rank int) (int, error) {
	return tx.m.countWaitingAhead(rank), nil
}

func (tx *memoryTx) InsertTicket(_ context.Context, ticket *domain.Ticket) error {
	if _, exists := tx.m.tickets[ticket.Number]; exists {
		return ErrConflict
	}
	for _, staged := range tx.inserted {
		if staged.Number == ticket.Number {
			return ErrConflict
		}
	}
	clone := cloneTicket(ticket)
	tx.inserted = append(tx.inserted, &clone)
	return nil
}

func (s memoryTickets) GetByNumber(ctx context.Context, number string) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	ticket, ok := s.m.tickets[number]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneTicket(ticket)
	return &clone, nil
}

func (s memoryTickets) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.m.listByStatus(status), nil
}

func (s memoryTickets) ListWaitingOrdered(ctx context.Context) ([]domain.Ticket, error) {
	return s.ListByStatus(ctx, domain.TicketStatusWaiting)
}

func (s memoryTickets) Snapshot(ctx context.Context) ([]domain.Ticket, []domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.m.listByStatus(domain.TicketStatusWaiting), s.m.listByStatus(domain.TicketStatusInProgress), nil
}

func (s memoryTickets) CountWaitingAhead(ctx context.Context, rank int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	return s.m.countWaitingAhead(rank), nil
}

func (s memoryTickets) Apply(ctx context.Context, update TicketUpdate) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	return s.m.apply(update)
}

func (s memoryTickets) ClaimHead(ctx context.Context, handlerID *string, at time.Time) (*domain.Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	waiting := s.m.listByStatus(domain.TicketStatusWaiting)
	if len(waiting) == 0 {
		return nil, nil
	}
	return s.m.apply(TicketUpdate{
		Number:       waiting[0].Number,
		ExpectStatus: domain.TicketStatusWaiting,
		Status:       domain.TicketStatusInProgress,
		At:           at,
		HandlerID:    handlerID,
	})
}

func (s memoryTickets) ListProgress(ctx context.Context, number string) ([]domain.ProgressEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	entries := append([]domain.ProgressEntry{}, s.m.progress[number]...)
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
	return entries, nil
}

func (s memoryTickets) ActiveAssignment(ctx context.Context, number string) (*domain.HandlerAssignment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	for _, assignment := range s.m.assignments[number] {
		if assignment.Active() {
			found := assignment
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (s memoryTickets) AttachSummary(ctx context.Context, number, summary string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	ticket, ok := s.m.tickets[number]
	if !ok {
		return ErrNotFound
	}
	ticket.Summary = &summary
	return nil
}

// apply requires m.mu held for writing.
func (m *MemoryStore) apply(u TicketUpdate) (*domain.Ticket, error) {
	ticket, ok := m.tickets[u.Number]
	if !ok {
		return nil, ErrNotFound
	}
	if ticket.Status != u.ExpectStatus {
		return nil, ErrStale
	}

	ticket.Status = u.Status
	ticket.UpdatedAt = u.At
	if u.CurrentStep != nil {
		step := *u.CurrentStep
		ticket.CurrentStep = &step
	}
	if u.Status.IsTerminal() {
		at := u.At
		ticket.ClosedAt = &at
	}
	if u.Progress != nil {
		u.Progress.ID = uuid.NewString()
		u.Progress.TicketNumber = ticket.Number
		m.progress[ticket.Number] = append(m.progress[ticket.Number], *u.Progress)
	}
	if u.ReleaseAssignment {
		list := m.assignments[ticket.Number]
		for i := range list {
			if list[i].Active() {
				at := u.At
				list[i].ReleasedAt = &at
			}
		}
	}
	if u.HandlerID != nil {
		handler := *u.HandlerID
		ticket.AssignedHandlerID = &handler
		m.assignments[ticket.Number] = append(m.assignments[ticket.Number], domain.HandlerAssignment{
			ID:           uuid.NewString(),
			TicketNumber: ticket.Number,
			HandlerID:    handler,
			AssignedAt:   u.At,
		})
	}
	clone := cloneTicket(ticket)
	return &clone, nil
}

// listByStatus requires m.mu held.
func (m *MemoryStore) listByStatus(status domain.TicketStatus) []domain.Ticket {
	result := []domain.Ticket{}
	for _, ticket := range m.tickets {
		if ticket.Status == status {
			result = append(result, cloneTicket(ticket))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].WaitsBefore(result[j])
	})
	return result
}

// countWaitingAhead requires m.mu held.
func (m *MemoryStore) countWaitingAhead(rank int) int {
	count := 0
	for _, ticket := range m.tickets {
		if ticket.Status == domain.TicketStatusWaiting && ticket.Class.Rank() <= rank {
			count++
		}
	}
	return count
}

func cloneTicket(ticket *domain.Ticket) domain.Ticket {
	clone := *ticket
	clone.CurrentStep = clonePtr(ticket.CurrentStep)
	clone.AssignedHandlerID = clonePtr(ticket.AssignedHandlerID)
	clone.Summary = clonePtr(ticket.Summary)
	if ticket.ClosedAt != nil {
		closed := *ticket.ClosedAt
		clone.ClosedAt = &closed
	}
	return clone
}

func clonePtr(val *string) *string {
	if val == nil {
		return nil
	}
	copied := *val
	return &copied
}

type memoryStaff struct {
	m *MemoryStore
}

func (s memoryStaff) Create(ctx context.Context, staff *domain.StaffMember) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	staff.Email = strings.ToLower(staff.Email)
	for _, existing := range s.m.staff {
		if existing.Email == staff.Email {
			return ErrConflict
		}
	}
	now := time.Now().UTC()
	staff.ID = uuid.NewString()
	staff.CreatedAt = now
	staff.UpdatedAt = now
	stored := *staff
	s.m.staff[staff.ID] = &stored
	return nil
}

func (s memoryStaff) GetByID(ctx context.Context, id string) (*domain.StaffMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	staff, ok := s.m.staff[id]
	if !ok {
		return nil, ErrNotFound
	}
	found := *staff
	return &found, nil
}

func (s memoryStaff) GetByEmail(ctx context.Context, email string) (*domain.StaffMember, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.m.mu.RLock()
	defer s.m.mu.RUnlock()
	email = strings.ToLower(email)
	for _, staff := range s.m.staff {
		if staff.Email == email {
			found := *staff
			return &found, nil
		}
	}
	return nil, ErrNotFound
}
