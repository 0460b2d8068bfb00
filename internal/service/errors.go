package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/spec-kit/visitor-queue/internal/domain"
	"github.com/spec-kit/visitor-queue/internal/repository"
	apperrors "github.com/spec-kit/visitor-queue/pkg/util/errorutil"
)

// translateError maps repository and domain failures onto API errors.
func translateError(err error, resource string, details map[string]any) error {
	if err == nil {
		return nil
	}

	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return err
	}

	var transitionErr *domain.TransitionError
	if errors.As(err, &transitionErr) {
		return apperrors.NewInvalidStateTransition(string(transitionErr.Current), string(transitionErr.Requested), details)
	}

	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, details)
	case isContention(err):
		conflict := apperrors.NewDomainError(apperrors.CodeConflict, "concurrent update, retry the request", http.StatusConflict, details)
		conflict.Err = err
		return conflict
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return apperrors.NewDependencyUnavailable("storage", err)
	}
	return apperrors.NewInternalError(err)
}

func ticketDetails(number string) map[string]any {
	return map[string]any{"ticket_number": number}
}
