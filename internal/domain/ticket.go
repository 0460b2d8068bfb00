package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusWaiting    TicketStatus = "waiting"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusCompleted  TicketStatus = "completed"
	TicketStatusCancelled  TicketStatus = "cancelled"
)

// IsTerminal reports whether no further lifecycle change is possible.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusCompleted || s == TicketStatusCancelled
}

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusWaiting, TicketStatusInProgress, TicketStatusCompleted, TicketStatusCancelled:
		return true
	}
	return false
}

// Contact holds optional visitor contact details.
type Contact struct {
	Name  string
	Email string
	Phone string
}

// IsZero reports whether no contact detail was given.
func (c Contact) IsZero() bool {
	return c.Name == "" && c.Email == "" && c.Phone == ""
}

// Ticket is one visitor's queue admission.
type Ticket struct {
	Number               string
	Class                PriorityClass
	Seq                  int
	CaseType             string
	Contact              Contact
	Language             string
	Status               TicketStatus
	CurrentStep          *string
	EstimatedWaitMinutes int
	AssignedHandlerID    *string
	Summary              *string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	ClosedAt             *time.Time
}

// WaitsBefore reports whether t is served before other in the waiting order.
func (t Ticket) WaitsBefore(other Ticket) bool {
	if t.Class.Rank() != other.Class.Rank() {
		return t.Class.Rank() < other.Class.Rank()
	}
	return t.Seq < other.Seq
}

const ticketSeqWidth = 3

// FormatTicketNumber renders class and seq as e.g. "A003". Seqs beyond three digits widen.
func FormatTicketNumber(class PriorityClass, seq int) string {
	return fmt.Sprintf("%s%0*d", class, ticketSeqWidth, seq)
}

// ParseTicketNumber splits a ticket number into its class and seq.
func ParseTicketNumber(number string) (PriorityClass, int, error) {
	number = strings.ToUpper(strings.TrimSpace(number))
	if len(number) < 2 {
		return "", 0, fmt.Errorf("ticket number %q too short", number)
	}
	class, err := ParsePriorityClass(number[:1])
	if err != nil {
		return "", 0, err
	}
	digits := number[1:]
	if strings.IndexFunc(digits, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return "", 0, fmt.Errorf("ticket number %q has invalid sequence", number)
	}
	seq, err := strconv.Atoi(digits)
	if err != nil || seq < 1 {
		return "", 0, fmt.Errorf("ticket number %q has invalid sequence", number)
	}
	return class, seq, nil
}
