package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// SequenceAllocator hands out per-class ticket sequence numbers.
type SequenceAllocator struct {
	tickets repository.TicketRepository
	retry   RetryPolicy
	logger  *zap.Logger
}

// NewSequenceAllocator builds the allocator.
func NewSequenceAllocator(tickets repository.TicketRepository, policy RetryPolicy, logger *zap.Logger) *SequenceAllocator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceAllocator{tickets: tickets, retry: policy, logger: logger}
}

// Allocate reserves the next seq for class inside tx. The seq is only
// consumed if tx commits.
func (a *SequenceAllocator) Allocate(ctx context.Context, tx repository.TicketTx, class domain.PriorityClass) (int, error) {
	if !class.Valid() {
		return 0, apperrors.NewValidationError("unknown priority class", map[string]any{"class": string(class)})
	}
	return tx.NextSequence(ctx, class)
}

// Reserve allocates a seq for class and runs fn with it in the same
// storage transaction. Contention restarts the whole unit with backoff.
func (a *SequenceAllocator) Reserve(ctx context.Context, class domain.PriorityClass, fn func(ctx context.Context, tx repository.TicketTx, seq int) error) error {
	attempt := 0
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		return a.tickets.WithinAdmission(ctx, func(tx repository.TicketTx) error {
			seq, err := a.Allocate(ctx, tx, class)
			if err != nil {
				return err
			}
			return fn(ctx, tx, seq)
		})
	})
	if isContention(err) {
		a.logger.Warn("sequence allocation exhausted retries",
			zap.String("class", string(class)),
			zap.Int("attempts", attempt),
			zap.Error(err))
	}
	return err
}
