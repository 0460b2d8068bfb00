package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/spec-kit/visitor-queue/internal/auth"
	"github.com/spec-kit/visitor-queue/internal/config"
	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// CreateStaffInput describes a new counter account.
type CreateStaffInput struct {
	Name     string `validate:"required,max=120"`
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
	Role     domain.StaffRole
}

// StaffService manages staff accounts.
type StaffService struct {
	staff      repository.StaffRepository
	bcryptCost int
	validate   *validator.Validate
	logger     *zap.Logger
}

// NewStaffService builds the service.
func NewStaffService(cfg config.AuthConfig, staff repository.StaffRepository, logger *zap.Logger) *StaffService {
	return &StaffService{
		staff:      staff,
		bcryptCost: cfg.BcryptCost,
		validate:   validator.New(),
		logger:     loggerOrNop(logger),
	}
}

func requireAdmin(actor *domain.StaffMember) error {
	if actor == nil || actor.Role != domain.StaffRoleAdmin {
		return apperrors.NewForbidden("admin role required")
	}
	return nil
}

// CreateStaffMember adds a new staff account on behalf of an admin.
func (s *StaffService) CreateStaffMember(ctx context.Context, actor *domain.StaffMember, input CreateStaffInput) (*domain.StaffMember, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return s.create(ctx, input)
}

// EnsureBootstrapAdmin creates the configured admin account when it does
// not exist yet. Empty credentials disable bootstrapping.
func (s *StaffService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return nil
	}
	if _, err := s.staff.GetByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return translateError(err, "staff member", nil)
	}

	staff, err := s.create(ctx, CreateStaffInput{
		Name:     "Administrator",
		Email:    email,
		Password: password,
		Role:     domain.StaffRoleAdmin,
	})
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeConflict) {
			return nil
		}
		return err
	}
	s.logger.Info("bootstrap admin created", zap.String("staff_id", staff.ID))
	return nil
}

func (s *StaffService) create(ctx context.Context, input CreateStaffInput) (*domain.StaffMember, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	if input.Role == "" {
		input.Role = domain.StaffRoleAgent
	}
	if !input.Role.Valid() {
		return nil, apperrors.NewValidationError("invalid role", map[string]any{"role": string(input.Role)})
	}
	if err := s.validate.Struct(input); err != nil {
		return nil, validationFailure(err)
	}

	hash, err := auth.HashPassword(input.Password, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	staff := &domain.StaffMember{
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
		Role:         input.Role,
		Active:       true,
	}
	if err := s.staff.Create(ctx, staff); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, apperrors.NewConflict("staff email already exists", map[string]any{"email": input.Email})
		}
		return nil, translateError(err, "staff member", nil)
	}
	return staff, nil
}
