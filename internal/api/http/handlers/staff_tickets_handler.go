package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/visitor-queue/internal/api/dto"
	"github.com/spec-kit/visitor-queue/internal/auth"
	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/service"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// StaffTicketsHandler exposes the counter staff queue endpoints.
type StaffTicketsHandler struct {
	queue    *service.QueueService
	dispatch *service.DispatchService
	tickets  *service.TicketService
}

// NewStaffTicketsHandler constructs handler.
func NewStaffTicketsHandler(queue *service.QueueService, dispatch *service.DispatchService, tickets *service.TicketService) *StaffTicketsHandler {
	return &StaffTicketsHandler{queue: queue, dispatch: dispatch, tickets: tickets}
}

// Snapshot GET /staff/queue.
func (h *StaffTicketsHandler) Snapshot(c *fiber.Ctx) error {
	snap, err := h.queue.GetQueueSnapshot(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.QueueSnapshotResponse{
		Waiting:    ticketResponses(snap.Waiting),
		InProgress: ticketResponses(snap.InProgress),
		TakenAt:    snap.TakenAt,
	}})
}

// ListTickets GET /staff/tickets?status=.
func (h *StaffTicketsHandler) ListTickets(c *fiber.Ctx) error {
	status := domain.TicketStatus(strings.ToLower(strings.TrimSpace(c.Query("status", string(domain.TicketStatusWaiting)))))
	tickets, err := h.queue.ListByStatus(c.UserContext(), status)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponses(tickets)})
}

// GetTicket GET /staff/tickets/:number.
func (h *StaffTicketsHandler) GetTicket(c *fiber.Ctx) error {
	detail, err := h.queue.GetTicketDetail(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	resp := dto.TicketDetailResponse{
		TicketResponse: ticketResponse(&detail.Ticket),
		Progress:       make([]dto.ProgressEntryResponse, 0, len(detail.Progress)),
	}
	for _, entry := range detail.Progress {
		resp.Progress = append(resp.Progress, dto.ProgressEntryResponse{
			ID:           entry.ID,
			StepID:       entry.StepID,
			StepText:     entry.StepText,
			ResponseText: entry.ResponseText,
			Timestamp:    entry.Timestamp,
		})
	}
	if detail.Assignment != nil {
		resp.Assignment = &dto.AssignmentResponse{
			HandlerID:  detail.Assignment.HandlerID,
			AssignedAt: detail.Assignment.AssignedAt,
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}

// PullNext POST /staff/queue/next. The caller becomes the handler.
func (h *StaffTicketsHandler) PullNext(c *fiber.Ctx) error {
	staff, err := currentStaff(c)
	if err != nil {
		return err
	}
	ticket, err := h.dispatch.PullNext(c.UserContext(), &staff.ID)
	if err != nil {
		return err
	}
	if ticket == nil {
		return c.SendStatus(http.StatusNoContent)
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Complete POST /staff/tickets/:number/complete.
func (h *StaffTicketsHandler) Complete(c *fiber.Ctx) error {
	staff, err := currentStaff(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.CompleteTicket(c.UserContext(), c.Params("number"), service.StaffActor(staff.ID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// Cancel POST /staff/tickets/:number/cancel.
func (h *StaffTicketsHandler) Cancel(c *fiber.Ctx) error {
	staff, err := currentStaff(c)
	if err != nil {
		return err
	}
	ticket, err := h.tickets.CancelTicket(c.UserContext(), c.Params("number"), service.StaffActor(staff.ID))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

func currentStaff(c *fiber.Ctx) (*domain.StaffMember, error) {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok || principal.Staff == nil {
		return nil, apperrors.NewUnauthorized("staff required")
	}
	return principal.Staff, nil
}

func ticketResponses(tickets []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return items
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	resp := dto.TicketResponse{
		TicketNumber:         ticket.Number,
		Class:                ticket.Class,
		Seq:                  ticket.Seq,
		CaseType:             ticket.CaseType,
		Language:             ticket.Language,
		Status:               ticket.Status,
		CurrentStep:          ticket.CurrentStep,
		EstimatedWaitMinutes: ticket.EstimatedWaitMinutes,
		AssignedHandlerID:    ticket.AssignedHandlerID,
		Summary:              ticket.Summary,
		CreatedAt:            ticket.CreatedAt,
		UpdatedAt:            ticket.UpdatedAt,
		ClosedAt:             ticket.ClosedAt,
	}
	if !ticket.Contact.IsZero() {
		resp.Contact = &dto.ContactRequest{
			Name:  ticket.Contact.Name,
			Email: ticket.Contact.Email,
			Phone: ticket.Contact.Phone,
		}
	}
	return resp
}
