package domain

import "time"

// ProgressEntry is an append-only record of one step a visitor went through.
type ProgressEntry struct {
	ID           string
	TicketNumber string
	StepID       string
	StepText     string
	ResponseText *string
	Timestamp    time.Time
}

// HandlerAssignment links a claimed ticket to the staff member handling it.
type HandlerAssignment struct {
	ID           string
	TicketNumber string
	HandlerID    string
	AssignedAt   time.Time
	ReleasedAt   *time.Time
}

// Active reports whether the assignment has not been released.
func (a HandlerAssignment) Active() bool {
	return a.ReleasedAt == nil
}
