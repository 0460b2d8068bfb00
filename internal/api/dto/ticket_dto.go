package dto

import (
	"time"

	"github.com/spec-kit/visitor-queue/internal/domain"
)

// ContactRequest carries optional visitor contact details.
type ContactRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// SubmitCaseRequest payload for POST /kiosk/tickets.
type SubmitCaseRequest struct {
	CaseType string          `json:"case_type"`
	Contact  *ContactRequest `json:"contact,omitempty"`
	Language string          `json:"language"`
}

// SubmitCaseResponse is shown to the visitor at the kiosk.
type SubmitCaseResponse struct {
	TicketNumber         string               `json:"ticket_number"`
	EstimatedWaitMinutes int                  `json:"estimated_wait_minutes"`
	Class                domain.PriorityClass `json:"class"`
	TicketToken          string               `json:"ticket_token"`
}

// RecordProgressRequest payload for POST /kiosk/tickets/:number/progress.
type RecordProgressRequest struct {
	StepID       string  `json:"step_id"`
	StepText     string  `json:"step_text"`
	ResponseText *string `json:"response_text,omitempty"`
}

// ProgressResponse reports where the ticket stands after a step.
type ProgressResponse struct {
	TicketNumber string              `json:"ticket_number"`
	CurrentStep  string              `json:"current_step"`
	Status       domain.TicketStatus `json:"status"`
}

// TicketStatusResponse is the public view of a ticket. It carries no contact data.
type TicketStatusResponse struct {
	TicketNumber         string               `json:"ticket_number"`
	Class                domain.PriorityClass `json:"class"`
	Status               domain.TicketStatus  `json:"status"`
	CurrentStep          *string              `json:"current_step"`
	EstimatedWaitMinutes int                  `json:"estimated_wait_minutes"`
	CreatedAt            time.Time            `json:"created_at"`
}

// TicketResponse is the staff view of a ticket.
type TicketResponse struct {
	TicketNumber         string               `json:"ticket_number"`
	Class                domain.PriorityClass `json:"class"`
	Seq                  int                  `json:"seq"`
	CaseType             string               `json:"case_type"`
	Contact              *ContactRequest      `json:"contact,omitempty"`
	Language             string               `json:"language"`
	Status               domain.TicketStatus  `json:"status"`
	CurrentStep          *string              `json:"current_step"`
	EstimatedWaitMinutes int                  `json:"estimated_wait_minutes"`
	AssignedHandlerID    *string              `json:"assigned_handler_id"`
	Summary              *string              `json:"summary,omitempty"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
	ClosedAt             *time.Time           `json:"closed_at"`
}

// ProgressEntryResponse is one recorded step.
type ProgressEntryResponse struct {
	ID           string    `json:"id"`
	StepID       string    `json:"step_id"`
	StepText     string    `json:"step_text"`
	ResponseText *string   `json:"response_text,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// AssignmentResponse is the active handler assignment.
type AssignmentResponse struct {
	HandlerID  string    `json:"handler_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// TicketDetailResponse provides full ticket info.
type TicketDetailResponse struct {
	TicketResponse
	Progress   []ProgressEntryResponse `json:"progress"`
	Assignment *AssignmentResponse     `json:"assignment"`
}

// QueueSnapshotResponse is the staff queue board.
type QueueSnapshotResponse struct {
	Waiting    []TicketResponse `json:"waiting"`
	InProgress []TicketResponse `json:"in_progress"`
	TakenAt    time.Time        `json:"taken_at"`
}
