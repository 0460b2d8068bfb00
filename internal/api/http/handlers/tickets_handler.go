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

// TicketTokenHeader carries the token returned at submission. Recording
// progress requires it.
const TicketTokenHeader = "X-Ticket-Token"

// TicketsHandler serves the public kiosk endpoints.
type TicketsHandler struct {
	admission *service.AdmissionService
	progress  *service.ProgressService
	queue     *service.QueueService
	tokens    *auth.TokenManager
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(admission *service.AdmissionService, progress *service.ProgressService, queue *service.QueueService, tokens *auth.TokenManager) *TicketsHandler {
	return &TicketsHandler{admission: admission, progress: progress, queue: queue, tokens: tokens}
}

// SubmitCase POST /kiosk/tickets.
func (h *TicketsHandler) SubmitCase(c *fiber.Ctx) error {
	var req dto.SubmitCaseRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.SubmitCaseInput{CaseType: req.CaseType, Language: req.Language}
	if req.Contact != nil {
		input.Contact = &domain.Contact{
			Name:  req.Contact.Name,
			Email: req.Contact.Email,
			Phone: req.Contact.Phone,
		}
	}

	admission, err := h.admission.SubmitCase(c.UserContext(), input)
	if err != nil {
		return err
	}
	token, _, err := h.tokens.GenerateTicketToken(admission.TicketNumber)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.SubmitCaseResponse{
		TicketNumber:         admission.TicketNumber,
		EstimatedWaitMinutes: admission.EstimatedWaitMinutes,
		Class:                admission.Class,
		TicketToken:          token,
	}})
}

// GetStatus GET /kiosk/tickets/:number.
func (h *TicketsHandler) GetStatus(c *fiber.Ctx) error {
	ticket, err := h.queue.GetTicket(c.UserContext(), c.Params("number"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TicketStatusResponse{
		TicketNumber:         ticket.Number,
		Class:                ticket.Class,
		Status:               ticket.Status,
		CurrentStep:          ticket.CurrentStep,
		EstimatedWaitMinutes: ticket.EstimatedWaitMinutes,
		CreatedAt:            ticket.CreatedAt,
	}})
}

// RecordProgress POST /kiosk/tickets/:number/progress.
func (h *TicketsHandler) RecordProgress(c *fiber.Ctx) error {
	if err := h.authorizeTicket(c); err != nil {
		return err
	}
	var req dto.RecordProgressRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	result, err := h.progress.RecordStep(c.UserContext(), service.RecordStepInput{
		TicketNumber: c.Params("number"),
		StepID:       req.StepID,
		StepText:     req.StepText,
		ResponseText: req.ResponseText,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.ProgressResponse{
		TicketNumber: result.TicketNumber,
		CurrentStep:  result.CurrentStep,
		Status:       result.Status,
	}})
}

func (h *TicketsHandler) authorizeTicket(c *fiber.Ctx) error {
	class, seq, err := domain.ParseTicketNumber(c.Params("number"))
	if err != nil {
		return apperrors.NewValidationError("invalid ticket number", map[string]any{"ticket_number": c.Params("number")})
	}
	token := strings.TrimSpace(c.Get(TicketTokenHeader))
	if token == "" {
		return apperrors.NewUnauthorized("ticket token required")
	}
	if err := h.tokens.VerifyTicketToken(token, domain.FormatTicketNumber(class, seq)); err != nil {
		return apperrors.NewUnauthorized("invalid ticket token")
	}
	return nil
}
