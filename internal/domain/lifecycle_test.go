package domain

import (
	"errors"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		from, to TicketStatus
		ok       bool
	}{
		{TicketStatusWaiting, TicketStatusInProgress, true},
		{TicketStatusWaiting, TicketStatusCancelled, true},
		{TicketStatusWaiting, TicketStatusCompleted, false},
		{TicketStatusInProgress, TicketStatusCompleted, true},
		{TicketStatusInProgress, TicketStatusCancelled, true},
		{TicketStatusInProgress, TicketStatusWaiting, false},
		{TicketStatusCompleted, TicketStatusCancelled, false},
		{TicketStatusCompleted, TicketStatusCompleted, false},
		{TicketStatusCancelled, TicketStatusInProgress, false},
	}
	for _, tt := range tests {
		err := ValidateTransition(tt.from, tt.to)
		if tt.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tt.from, tt.to, err)
		}
		if !tt.ok {
			var transitionErr *TransitionError
			if !errors.As(err, &transitionErr) {
				t.Errorf("%s -> %s: want TransitionError, got %v", tt.from, tt.to, err)
				continue
			}
			if transitionErr.Current != tt.from || transitionErr.Requested != tt.to {
				t.Errorf("TransitionError = %+v", transitionErr)
			}
		}
	}
}

func TestProgressStatus(t *testing.T) {
	if next, err := ProgressStatus(TicketStatusWaiting); err != nil || next != TicketStatusInProgress {
		t.Fatalf("waiting: got %s, %v", next, err)
	}
	if next, err := ProgressStatus(TicketStatusInProgress); err != nil || next != TicketStatusInProgress {
		t.Fatalf("in_progress: got %s, %v", next, err)
	}
	for _, terminal := range []TicketStatus{TicketStatusCompleted, TicketStatusCancelled} {
		_, err := ProgressStatus(terminal)
		var transitionErr *TransitionError
		if !errors.As(err, &transitionErr) || transitionErr.Requested != TicketStatusInProgress {
			t.Fatalf("%s: want TransitionError requesting in_progress, got %v", terminal, err)
		}
	}
}
