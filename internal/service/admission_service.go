package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/nyaruka/phonenumbers"
	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/config"
	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/events"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// SubmitCaseInput is a kiosk submission.
type SubmitCaseInput struct {
	CaseType string
	Contact  *domain.Contact
	Language string
}

// Admission is what the visitor is told after submitting a case.
type Admission struct {
	TicketNumber         string
	EstimatedWaitMinutes int
	Class                domain.PriorityClass
	Ticket               domain.Ticket
}

type admissionFields struct {
	Name     string `validate:"omitempty,max=120"`
	Email    string `validate:"omitempty,email,max=254"`
	Phone    string `validate:"omitempty,max=32"`
	Language string `validate:"required,bcp47_language_tag"`
}

// AdmissionService turns kiosk submissions into waiting tickets.
type AdmissionService struct {
	catalog         *domain.CaseTypeCatalog
	allocator       *SequenceAllocator
	estimator       *WaitEstimator
	dispatcher      events.Dispatcher
	validate        *validator.Validate
	phoneRegion     string
	defaultLanguage string
	logger          *zap.Logger
	now             func() time.Time
}

// AdmissionDependencies bundles collaborators for admission.
type AdmissionDependencies struct {
	Catalog    *domain.CaseTypeCatalog
	TicketRepo repository.TicketRepository
	Dispatcher events.Dispatcher
	Retry      RetryPolicy
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewAdmissionService builds the service.
func NewAdmissionService(cfg config.QueueConfig, deps AdmissionDependencies) *AdmissionService {
	logger := loggerOrNop(deps.Logger)
	region := strings.ToUpper(strings.TrimSpace(cfg.PhoneRegion))
	if region == "" {
		region = "US"
	}
	language := strings.TrimSpace(cfg.DefaultLanguage)
	if language == "" {
		language = "en"
	}
	return &AdmissionService{
		catalog:         deps.Catalog,
		allocator:       NewSequenceAllocator(deps.TicketRepo, deps.Retry, logger),
		estimator:       NewWaitEstimator(deps.Catalog),
		dispatcher:      deps.Dispatcher,
		validate:        validator.New(),
		phoneRegion:     region,
		defaultLanguage: language,
		logger:          logger,
		now:             clockOrDefault(deps.Clock),
	}
}

// SubmitCase admits a visitor. The estimate is taken from the queue as it
// stands inside the admission transaction, before the new ticket exists.
func (s *AdmissionService) SubmitCase(ctx context.Context, input SubmitCaseInput) (*Admission, error) {
	caseType := domain.NormalizeCaseType(input.CaseType)
	if caseType == "" {
		return nil, apperrors.NewValidationError("case_type is required", nil)
	}
	class, ok := s.catalog.Lookup(caseType)
	if !ok {
		return nil, apperrors.NewValidationError("unknown case type", map[string]any{
			"case_type": caseType,
			"known":     s.catalog.CaseTypes(),
		})
	}

	contact, language, err := s.normalizeFields(input.Contact, input.Language)
	if err != nil {
		return nil, err
	}

	var ticket *domain.Ticket
	err = s.allocator.Reserve(ctx, class, func(ctx context.Context, tx repository.TicketTx, seq int) error {
		estimate, err := s.estimator.estimateFrom(ctx, tx, class)
		if err != nil {
			return err
		}
		now := s.now()
		candidate := &domain.Ticket{
			Number:               domain.FormatTicketNumber(class, seq),
			Class:                class,
			Seq:                  seq,
			CaseType:             caseType,
			Contact:              contact,
			Language:             language,
			Status:               domain.TicketStatusWaiting,
			EstimatedWaitMinutes: estimate,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := tx.InsertTicket(ctx, candidate); err != nil {
			return err
		}
		ticket = candidate
		return nil
	})
	if err != nil {
		return nil, translateError(err, "ticket", map[string]any{"class": string(class)})
	}

	s.logger.Info("ticket admitted",
		zap.String("ticket_number", ticket.Number),
		zap.String("class", string(class)),
		zap.String("case_type", caseType),
		zap.Int("estimated_wait_minutes", ticket.EstimatedWaitMinutes))
	publishEvent(ctx, s.dispatcher, events.Event{
		Type:   events.EventTicketCreated,
		Ticket: *ticket,
		Actor:  visitorActor(),
		Payload: events.TicketCreatedPayload{
			Class:                class,
			CaseType:             caseType,
			EstimatedWaitMinutes: ticket.EstimatedWaitMinutes,
		},
	})

	return &Admission{
		TicketNumber:         ticket.Number,
		EstimatedWaitMinutes: ticket.EstimatedWaitMinutes,
		Class:                class,
		Ticket:               *ticket,
	}, nil
}

func (s *AdmissionService) normalizeFields(contact *domain.Contact, language string) (domain.Contact, string, error) {
	fields := admissionFields{Language: strings.TrimSpace(language)}
	if fields.Language == "" {
		fields.Language = s.defaultLanguage
	}
	if contact != nil {
		fields.Name = strings.TrimSpace(contact.Name)
		fields.Email = strings.ToLower(strings.TrimSpace(contact.Email))
		fields.Phone = strings.TrimSpace(contact.Phone)
	}

	if err := s.validate.Struct(fields); err != nil {
		return domain.Contact{}, "", validationFailure(err)
	}

	phone, err := s.normalizePhone(fields.Phone)
	if err != nil {
		return domain.Contact{}, "", err
	}

	return domain.Contact{Name: fields.Name, Email: fields.Email, Phone: phone}, fields.Language, nil
}

func (s *AdmissionService) normalizePhone(raw string) (string, error) {
	if raw == "" {
		return "", nil
	}
	parsed, err := phonenumbers.Parse(raw, s.phoneRegion)
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return "", apperrors.NewValidationError("invalid phone number", map[string]any{"phone": "invalid"})
	}
	return phonenumbers.Format(parsed, phonenumbers.E164), nil
}

// validationFailure turns validator output into a ValidationError keyed by field.
func validationFailure(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("invalid request", nil)
	}
	details := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		details[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return apperrors.NewValidationError("invalid request", details)
}
