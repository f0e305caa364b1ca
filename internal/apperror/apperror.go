// Package apperror defines the error taxonomy shared by services and handlers.
// Services return these; only the handler layer knows about HTTP status codes.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrInternal     = errors.New("internal error")

	// ErrInvalidState is a conflict with the course's current review status
	// at a call site that answers 400 rather than 409.
	ErrInvalidState = fmt.Errorf("invalid state: %w", ErrConflict)
)

type AppError struct {
	Err     error          // sentinel from the list above
	Message string         // human-readable error message
	Field   string         // optional: field causing the error
	Details map[string]any // optional: extra fields merged into the error body
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a caller-chosen message, for lookups
// whose key must not be echoed back (tokens).
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

func Conflict(resource, id string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %s", resource, id),
	}
}

// ConflictWith returns a conflict carrying extra response fields, e.g. the
// id of the record the caller collided with.
func ConflictWith(message string, details map[string]any) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
		Details: details,
	}
}

// InvalidState reports a review-status guard violation answered with 400.
func InvalidState(message string) *AppError {
	return &AppError{
		Err:     ErrInvalidState,
		Message: message,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// ForbiddenWith is Forbidden carrying extra response fields.
func ForbiddenWith(message string, details map[string]any) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
		Details: details,
	}
}

// Internal wraps an unexpected failure. The message is safe to show; err is
// kept for logs only.
func Internal(message string, err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %w", ErrInternal, err),
		Message: message,
	}
}
