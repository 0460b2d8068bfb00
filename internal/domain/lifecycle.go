package domain

import "fmt"

// TransitionError describes a lifecycle change that is not allowed.
type TransitionError struct {
	Current   TicketStatus
	Requested TicketStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.Current, e.Requested)
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusWaiting:    {TicketStatusInProgress, TicketStatusCancelled},
	TicketStatusInProgress: {TicketStatusCompleted, TicketStatusCancelled},
	TicketStatusCompleted:  {},
	TicketStatusCancelled:  {},
}

// CanTransition reports whether current may move to next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// ValidateTransition returns a *TransitionError when current may not move to next.
func ValidateTransition(current, next TicketStatus) error {
	if !CanTransition(current, next) {
		return &TransitionError{Current: current, Requested: next}
	}
	return nil
}

// ProgressStatus returns the status a ticket has after a step is recorded.
// Waiting tickets are promoted; in-progress tickets stay; terminal tickets refuse.
func ProgressStatus(current TicketStatus) (TicketStatus, error) {
	switch current {
	case TicketStatusWaiting:
		return TicketStatusInProgress, nil
	case TicketStatusInProgress:
		return TicketStatusInProgress, nil
	default:
		return current, &TransitionError{Current: current, Requested: TicketStatusInProgress}
	}
}
