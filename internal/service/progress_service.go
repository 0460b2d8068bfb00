package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/events"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// RecordStepInput is one step a visitor went through at the kiosk.
type RecordStepInput struct {
	TicketNumber string
	StepID       string
	StepText     string
	ResponseText *string
}

// ProgressResult reports the ticket state after a step was recorded.
type ProgressResult struct {
	TicketNumber string
	CurrentStep  string
	Status       domain.TicketStatus
	Entry        domain.ProgressEntry
}

// ProgressService appends progress entries to tickets.
type ProgressService struct {
	tickets    repository.TicketRepository
	dispatcher events.Dispatcher
	retry      RetryPolicy
	logger     *zap.Logger
	now        func() time.Time
}

// NewProgressService builds the service.
func NewProgressService(deps TicketDependencies) *ProgressService {
	return &ProgressService{
		tickets:    deps.TicketRepo,
		dispatcher: deps.Dispatcher,
		retry:      deps.Retry,
		logger:     loggerOrNop(deps.Logger),
		now:        clockOrDefault(deps.Clock),
	}
}

// RecordStep appends a progress entry and moves the ticket's current step.
// A waiting ticket is promoted to in_progress in the same write; a closed
// ticket rejects the step.
func (s *ProgressService) RecordStep(ctx context.Context, input RecordStepInput) (*ProgressResult, error) {
	number, err := normalizeTicketNumber(input.TicketNumber)
	if err != nil {
		return nil, err
	}
	stepID := strings.TrimSpace(input.StepID)
	stepText := strings.TrimSpace(input.StepText)
	if stepID == "" || stepText == "" {
		return nil, apperrors.NewValidationError("step_id and step_text are required", ticketDetails(number))
	}

	var (
		updated *domain.Ticket
		entry   domain.ProgressEntry
		from    domain.TicketStatus
	)
	err = s.retry.Do(ctx, func(ctx context.Context) error {
		current, err := s.tickets.GetByNumber(ctx, number)
		if err != nil {
			return err
		}
		next, err := domain.ProgressStatus(current.Status)
		if err != nil {
			return err
		}
		at := s.now()
		candidate := domain.ProgressEntry{
			StepID:       stepID,
			StepText:     stepText,
			ResponseText: input.ResponseText,
			Timestamp:    at,
		}
		ticket, err := s.tickets.Apply(ctx, repository.TicketUpdate{
			Number:       number,
			ExpectStatus: current.Status,
			Status:       next,
			CurrentStep:  &stepID,
			At:           at,
			Progress:     &candidate,
		})
		if err != nil {
			return err
		}
		from = current.Status
		updated = ticket
		entry = candidate
		return nil
	})
	if err != nil {
		return nil, translateError(err, "ticket", ticketDetails(number))
	}

	s.logger.Debug("progress recorded",
		zap.String("ticket_number", number),
		zap.String("step_id", stepID))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:   events.EventTicketProgressRecorded,
		Ticket: *updated,
		Actor:  visitorActor(),
		Payload: events.TicketProgressRecordedPayload{
			EntryID: entry.ID,
			StepID:  stepID,
		},
	})
	if from != updated.Status {
		publishEvent(ctx, s.dispatcher, events.Event{
			Type:   events.EventTicketStatusChanged,
			Ticket: *updated,
			Actor:  visitorActor(),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: from,
				NewStatus: updated.Status,
				Comment:   "promoted by progress",
			},
		})
	}

	return &ProgressResult{
		TicketNumber: number,
		CurrentStep:  stepID,
		Status:       updated.Status,
		Entry:        entry,
	}, nil
}
