package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

const snapshotTimeout = 5 * time.Second

// QueueSnapshot is the staff view of the live queue. Waiting is in
// dispatch order.
type QueueSnapshot struct {
	Waiting    []domain.Ticket
	InProgress []domain.Ticket
	TakenAt    time.Time
}

// TicketDetail is a ticket with its history.
type TicketDetail struct {
	Ticket     domain.Ticket
	Progress   []domain.ProgressEntry
	Assignment *domain.HandlerAssignment
}

// QueueService serves the read side of the queue.
type QueueService struct {
	tickets repository.TicketRepository
	group   singleflight.Group
	now     func() time.Time
}

// NewQueueService builds the service.
func NewQueueService(tickets repository.TicketRepository, clock func() time.Time) *QueueService {
	return &QueueService{tickets: tickets, now: clockOrDefault(clock)}
}

// GetQueueSnapshot returns waiting and in-progress tickets read at one
// instant. Concurrent callers share a single store read, so the returned
// slices must be treated as read-only.
func (s *QueueService) GetQueueSnapshot(ctx context.Context) (*QueueSnapshot, error) {
	ch := s.group.DoChan("snapshot", func() (any, error) {
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), snapshotTimeout)
		defer cancel()
		waiting, inProgress, err := s.tickets.Snapshot(readCtx)
		if err != nil {
			return nil, err
		}
		return &QueueSnapshot{Waiting: waiting, InProgress: inProgress, TakenAt: s.now()}, nil
	})

	select {
	case <-ctx.Done():
		return nil, translateError(ctx.Err(), "queue", nil)
	case res := <-ch:
		if res.Err != nil {
			return nil, translateError(res.Err, "queue", nil)
		}
		return res.Val.(*QueueSnapshot), nil
	}
}

// GetTicket returns a ticket by number.
func (s *QueueService) GetTicket(ctx context.Context, number string) (*domain.Ticket, error) {
	number, err := normalizeTicketNumber(number)
	if err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByNumber(ctx, number)
	if err != nil {
		return nil, translateError(err, "ticket", ticketDetails(number))
	}
	return ticket, nil
}

// GetTicketDetail returns a ticket with its progress entries and active assignment.
func (s *QueueService) GetTicketDetail(ctx context.Context, number string) (*TicketDetail, error) {
	ticket, err := s.GetTicket(ctx, number)
	if err != nil {
		return nil, err
	}
	progress, err := s.tickets.ListProgress(ctx, ticket.Number)
	if err != nil {
		return nil, translateError(err, "ticket", ticketDetails(ticket.Number))
	}
	assignment, err := s.tickets.ActiveAssignment(ctx, ticket.Number)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, translateError(err, "ticket", ticketDetails(ticket.Number))
	}
	return &TicketDetail{Ticket: *ticket, Progress: progress, Assignment: assignment}, nil
}

// ListByStatus returns tickets in one status in dispatch order.
func (s *QueueService) ListByStatus(ctx context.Context, status domain.TicketStatus) ([]domain.Ticket, error) {
	if !status.Valid() {
		return nil, apperrors.NewValidationError("unknown ticket status", map[string]any{"status": string(status)})
	}
	tickets, err := s.tickets.ListByStatus(ctx, status)
	if err != nil {
		return nil, translateError(err, "queue", nil)
	}
	return tickets, nil
}
