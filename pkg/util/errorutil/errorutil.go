package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Error codes surfaced to API clients.
const (
	CodeValidation           = "VALIDATION_FAILED"
	CodeNotAuthenticated     = "NOT_AUTHENTICATED"
	CodeWrongRole            = "WRONG_ROLE"
	CodeNotOwner             = "NOT_OWNER"
	CodeNotFound             = "NOT_FOUND"
	CodeDuplicateApplication = "DUPLICATE_APPLICATION"
	CodeDuplicateEmail       = "DUPLICATE_EMAIL"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeTerminalState        = "TERMINAL_STATE"
	CodeScoreOutOfRange      = "SCORE_OUT_OF_RANGE"
	CodeUnsupportedFormat    = "UNSUPPORTED_FORMAT"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeHasDependents        = "HAS_DEPENDENTS"
	CodeSelfModification     = "SELF_MODIFICATION"
	CodeDeadlinePassed       = "DEADLINE_PASSED"
	CodeInvalidCredentials   = "INVALID_CREDENTIALS"
	CodeAccountInactive      = "ACCOUNT_INACTIVE"
	CodeRateLimited          = "RATE_LIMITED"
	CodePersistence          = "PERSISTENCE_ERROR"
	CodeInternal             = "INTERNAL_ERROR"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

// NewNotFoundMessage is NewNotFound with a caller supplied message.
func NewNotFoundMessage(message string, details map[string]any) error {
	return NewDomainError(CodeNotFound, message, http.StatusNotFound, details)
}

func NewNotAuthenticated(message string) error {
	return NewDomainError(CodeNotAuthenticated, message, http.StatusUnauthorized, nil)
}

func NewWrongRole(message string) error {
	return NewDomainError(CodeWrongRole, message, http.StatusForbidden, nil)
}

func NewNotOwner(message string) error {
	return NewDomainError(CodeNotOwner, message, http.StatusForbidden, nil)
}

func NewConflict(code, message string, details map[string]any) error {
	return NewDomainError(code, message, http.StatusConflict, details)
}

func NewInvalidStatus(status string, details map[string]any) error {
	return NewDomainError(CodeInvalidStatus, fmt.Sprintf("invalid status %q", status), http.StatusBadRequest, details)
}

func NewTerminalState(status string) error {
	return NewDomainError(CodeTerminalState, fmt.Sprintf("application is already %s", status), http.StatusConflict,
		map[string]any{"status": status})
}

func NewScoreOutOfRange(min, max int) error {
	return NewDomainError(CodeScoreOutOfRange, fmt.Sprintf("score must be between %d and %d", min, max), http.StatusBadRequest,
		map[string]any{"min": min, "max": max})
}

func NewUnsupportedFormat(allowed []string) error {
	return NewDomainError(CodeUnsupportedFormat, "unsupported file format", http.StatusUnsupportedMediaType,
		map[string]any{"allowed": allowed})
}

func NewFileTooLarge(limit int64) error {
	return NewDomainError(CodeFileTooLarge, "file too large", http.StatusRequestEntityTooLarge,
		map[string]any{"max_bytes": limit})
}

func NewSelfModification(message string) error {
	return NewDomainError(CodeSelfModification, message, http.StatusBadRequest, nil)
}

func NewInvalidCredentials() error {
	return NewDomainError(CodeInvalidCredentials, "invalid email or password", http.StatusUnauthorized, nil)
}

func NewAccountInactive() error {
	return NewDomainError(CodeAccountInactive, "account is inactive", http.StatusUnauthorized, nil)
}

// NewPersistenceError hides storage internals behind a generic message.
func NewPersistenceError(err error) error {
	return &DomainError{
		Code:       CodePersistence,
		Message:    "could not save changes",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err is a DomainError carrying code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr) && domainErr.Code == code
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return &DomainError{
			Code:       codeForStatus(fiberErr.Code),
			Message:    fiberErr.Message,
			HTTPStatus: fiberErr.Code,
		}
	}
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeNotAuthenticated
	case http.StatusForbidden:
		return CodeWrongRole
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusRequestEntityTooLarge:
		return CodeFileTooLarge
	case http.StatusTooManyRequests:
		return CodeRateLimited
	}
	if status >= 500 {
		return CodeInternal
	}
	return CodeValidation
}
