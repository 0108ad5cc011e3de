package deadletter

import (
	"context"
	"errors"
	"time"
)

// Common errors returned by the dead-letter archive.
var (
	// ErrNotFound is returned when no entry has the requested ID.
	ErrNotFound = errors.New("dead letter entry not found")

	// ErrInvalidEntry is returned when an entry fails validation before being stored.
	ErrInvalidEntry = errors.New("invalid dead letter entry")

	// ErrReplayInProgress is returned when an entry is already being replayed.
	ErrReplayInProgress = errors.New("dead letter replay already in progress")

	// ErrNoReplayFunc is returned when no replay function is registered for an operation.
	ErrNoReplayFunc = errors.New("no replay function registered for operation")
)

// Entry is one archived failure. Entries are immutable once written except
// for the Replayed flag.
type Entry struct {
	ID        string         `json:"id"`
	Operation string         `json:"operation"`
	Args      map[string]any `json:"args"`
	Error     string         `json:"error"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
	Replayed  bool           `json:"replayed"`
}

// ListOptions filters List results. The zero value lists entries that have
// not been replayed yet.
type ListOptions struct {
	IncludeReplayed bool
	Operation       string
	Since           time.Time
}

func (o ListOptions) match(e Entry) bool {
	if e.Replayed && !o.IncludeReplayed {
		return false
	}
	if o.Operation != "" && e.Operation != o.Operation {
		return false
	}
	if !o.Since.IsZero() && e.Timestamp.Before(o.Since) {
		return false
	}
	return true
}

// ReplayFunc re-executes an archived operation.
type ReplayFunc func(ctx context.Context, operation string, args map[string]any) (any, error)

// ReplayResult is the outcome of Queue.Replay.
type ReplayResult struct {
	Success bool   `json:"success"`
	Result  any    `json:"result,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Store persists entries for a Queue. Implementations are only called with
// the Queue's mutex held and need not be safe for concurrent use by
// themselves. Entries must be returned in insertion order.
type Store interface {
	Append(ctx context.Context, e Entry) error
	Entries(ctx context.Context) ([]Entry, error)
	// MarkReplayed sets Replayed on the entry with the given ID, leaving every
	// other entry untouched. It returns ErrNotFound for unknown IDs.
	MarkReplayed(ctx context.Context, id string) error
	// Purge removes every entry when before is nil, otherwise only entries
	// with a timestamp strictly before it. It returns the number removed.
	Purge(ctx context.Context, before *time.Time) (int, error)
}
