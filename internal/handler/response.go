package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON or writeError so the API has one
// response shape. Errors always look like:
//
//	{"error": "not_found", "message": "course not found with id abc123"}
//
// plus any details the service attached (for example "existingCourseId"
// on a duplicate-course conflict, or "reviewStatus" when an enrollment is
// withheld).

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/learnify/internal/apperror"
)

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be written before the body: once Encode calls
// w.Write the headers are on the wire and later changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to an HTTP status and sends it.
//
// ERROR MAPPING:
//
//	ErrValidation    → 400
//	ErrInvalidState  → 400 (a status guard at the verification call sites)
//	ErrUnauthorized  → 401
//	ErrForbidden     → 403
//	ErrNotFound      → 404
//	ErrConflict      → 409
//	ErrInternal      → 500 with the AppError message, cause logged
//	anything else    → 500, logged, with a generic message
//
// ErrInvalidState wraps ErrConflict, so it has to be matched first.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		// Never expose driver or transport messages to the client.
		slog.Error("request failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error":   "internal_error",
			"message": "An internal error occurred",
		})
		return
	}

	status, errorType := http.StatusInternalServerError, "internal_error"
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status, errorType = http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrInvalidState):
		status, errorType = http.StatusBadRequest, "invalid_state"
	case errors.Is(err, apperror.ErrUnauthorized):
		status, errorType = http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		status, errorType = http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		status, errorType = http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		status, errorType = http.StatusConflict, "conflict"
	}

	if status == http.StatusInternalServerError {
		// Internal messages are written for clients; the cause only goes to the log.
		slog.Error("request failed", slog.String("error", err.Error()))
	}

	body := make(map[string]any, len(appErr.Details)+3)
	for k, v := range appErr.Details {
		body[k] = v
	}
	body["error"] = errorType
	body["message"] = appErr.Message
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	writeJSON(w, status, body)
}
