package events

import (
	"time"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated          EventType = "ticket_created"
	EventTicketStatusChanged    EventType = "ticket_status_changed"
	EventTicketAssigned         EventType = "ticket_assigned"
	EventTicketProgressRecorded EventType = "ticket_progress_recorded"
)

// ActorType identifies who caused an event.
type ActorType string

const (
	ActorVisitor ActorType = "VISITOR"
	ActorStaff   ActorType = "STAFF"
	ActorSystem  ActorType = "SYSTEM"
)

// Actor encapsulates actor metadata for an event.
type Actor struct {
	Type    ActorType `json:"type"`
	StaffID *string   `json:"staff_id,omitempty"`
}

// Event represents a domain event emitted by services. Ticket is the
// state after the change.
type Event struct {
	ID        string        `json:"id"`
	Type      EventType     `json:"type"`
	Ticket    domain.Ticket `json:"-"`
	Actor     Actor         `json:"actor"`
	Timestamp time.Time     `json:"timestamp"`
	Payload   interface{}   `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Class                domain.PriorityClass `json:"class"`
	CaseType             string               `json:"case_type"`
	EstimatedWaitMinutes int                  `json:"estimated_wait_minutes"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
	Comment   string              `json:"comment,omitempty"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	HandlerID string `json:"handler_id"`
}

// TicketProgressRecordedPayload payload.
type TicketProgressRecordedPayload struct {
	EntryID string `json:"entry_id"`
	StepID  string `json:"step_id"`
}
