package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/store"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes without
// leaking their types to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, deadletter.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, deadletter.ErrReplayInProgress), errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, deadletter.ErrInvalidEntry), errors.Is(err, store.ErrInvalidEntity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a client-facing message for err.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, deadletter.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return "Dead letter entry not found"
	case errors.Is(err, deadletter.ErrReplayInProgress):
		return "Replay already in progress"
	case errors.Is(err, store.ErrDuplicate):
		return "Entry already exists"
	case errors.Is(err, deadletter.ErrInvalidEntry), errors.Is(err, store.ErrInvalidEntity):
		return "Invalid dead letter entry"
	default:
		return "An unexpected error occurred"
	}
}
