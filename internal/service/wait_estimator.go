package service

import (
	"context"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

type waitingCounter interface {
	CountWaitingAhead(ctx context.Context, rank int) (int, error)
}

// WaitEstimator derives the wait quoted to a visitor at admission.
type WaitEstimator struct {
	catalog *domain.CaseTypeCatalog
}

// NewWaitEstimator builds the estimator.
func NewWaitEstimator(catalog *domain.CaseTypeCatalog) *WaitEstimator {
	return &WaitEstimator{catalog: catalog}
}

// Compute returns the estimate for class with ahead tickets waiting at the same or higher priority.
func (e *WaitEstimator) Compute(class domain.PriorityClass, ahead int) int {
	if ahead < 0 {
		ahead = 0
	}
	return e.catalog.BaseWaitMinutes(class) + ahead*e.catalog.PerPersonMinutes()
}

func (e *WaitEstimator) estimateFrom(ctx context.Context, counter waitingCounter, class domain.PriorityClass) (int, error) {
	ahead, err := counter.CountWaitingAhead(ctx, class.Rank())
	if err != nil {
		return 0, err
	}
	return e.Compute(class, ahead), nil
}
