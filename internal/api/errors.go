package api

import (
	"errors"
	"net/http"

	"github.com/replyd/replyd/internal/domain"
	"github.com/replyd/replyd/internal/ratelimit"
	"github.com/replyd/replyd/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes
// without leaking internal error types or messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Not found errors
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound

	// State machine conflicts
	case errors.Is(err, store.ErrConflict):
		return http.StatusConflict

	// Rate limiting
	case errors.Is(err, ratelimit.ErrRateLimited):
		return http.StatusTooManyRequests

	// Bad request errors
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest

	// Default: internal server error
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly message for
// the error.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return "Task not found"

	case errors.Is(err, store.ErrRunNotFound):
		return "Run not found"

	case errors.Is(err, store.ErrPostNotFound):
		return "Post not found"

	case errors.Is(err, store.ErrNotFound):
		return "Not found"

	case errors.Is(err, store.ErrConflict):
		// Conflict details describe only task states, safe to expose.
		return err.Error()

	case errors.Is(err, ratelimit.ErrRateLimited):
		return "Too many submissions, please wait before trying again"

	case errors.Is(err, domain.ErrValidation):
		return err.Error()

	case errors.Is(err, store.ErrInvalidEntity):
		return "Invalid entity data"

	default:
		return "An unexpected error occurred"
	}
}
