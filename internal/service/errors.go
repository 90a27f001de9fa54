package service

import (
	"errors"

	"github.com/spec-kit/job-board/internal/repository"
	apperrors "github.com/spec-kit/job-board/pkg/util/errorutil"
)

// lookupError converts a repository read failure into a client error.
func lookupError(err error, resource string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, nil)
	}
	return apperrors.NewInternalError(err)
}

// writeError converts a repository write failure into a client error without
// leaking storage details.
func writeError(err error, resource string) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, nil)
	case errors.Is(err, repository.ErrDuplicateEmail):
		return apperrors.NewConflict(apperrors.CodeDuplicateEmail, "email already registered", map[string]any{"field": "email"})
	case errors.Is(err, repository.ErrDuplicatePhone):
		return apperrors.NewValidationError("phone number already registered", map[string]any{"field": "phone"})
	case errors.Is(err, repository.ErrDuplicateApplication):
		return apperrors.NewConflict(apperrors.CodeDuplicateApplication, "you have already applied to this job", nil)
	case errors.Is(err, repository.ErrReferenced):
		return apperrors.NewConflict(apperrors.CodeHasDependents, resource+" has dependent records", nil)
	}
	return apperrors.NewPersistenceError(err)
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
