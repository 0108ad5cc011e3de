package deadletter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Queue is a durable archive of failed operations. It serializes all access
// to its Store, so several goroutines (workers, the admin API, a CLI
// replaying entries) can share one Queue.
type Queue struct {
	mu        sync.Mutex
	store     Store
	replaying map[string]struct{}
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a Queue over store.
func New(store Store, logger *slog.Logger) *Queue {
	return &Queue{
		store:     store,
		replaying: make(map[string]struct{}),
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger.With("component", "dead_letter_queue"),
	}
}

// Add archives a failed operation and returns the new entry's ID.
func (q *Queue) Add(
	ctx context.Context,
	operation string,
	args map[string]any,
	errMsg string,
	metadata map[string]any,
) (string, error) {
	if strings.TrimSpace(operation) == "" {
		return "", fmt.Errorf("%w: operation is required", ErrInvalidEntry)
	}
	if args == nil {
		args = map[string]any{}
	}
	if metadata == nil {
		metadata = map[string]any{}
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	e := Entry{
		ID:        uuid.NewString(),
		Operation: operation,
		Args:      args,
		Error:     errMsg,
		Metadata:  metadata,
		Timestamp: q.now(),
	}
	if err := q.store.Append(ctx, e); err != nil {
		return "", fmt.Errorf("failed to append dead letter entry: %w", err)
	}

	q.logger.Info("dead letter recorded",
		"entry_id", e.ID,
		"operation", operation,
		"error", errMsg)
	return e.ID, nil
}

// List returns the entries matching opts in insertion order.
func (q *Queue) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	q.mu.Lock()
	all, err := q.store.Entries(ctx)
	q.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter entries: %w", err)
	}

	out := make([]Entry, 0, len(all))
	for _, e := range all {
		if opts.match(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

// Get returns the entry with the given ID.
func (q *Queue) Get(ctx context.Context, id string) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.findLocked(ctx, id)
}

// Count returns the number of archived entries, replayed or not.
func (q *Queue) Count(ctx context.Context) (int, error) {
	q.mu.Lock()
	all, err := q.store.Entries(ctx)
	q.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("failed to read dead letter entries: %w", err)
	}
	return len(all), nil
}

// Replay looks up the entry and runs fn with its operation and arguments.
// On success the entry is marked replayed. On failure, including a panic in
// fn, the entry is left as it was so it can be replayed again later.
//
// fn runs without the queue lock held, so it may record new dead letters.
// Concurrent replays of the same entry are rejected.
func (q *Queue) Replay(ctx context.Context, id string, fn ReplayFunc) ReplayResult {
	q.mu.Lock()
	e, err := q.findLocked(ctx, id)
	if err != nil {
		q.mu.Unlock()
		if errors.Is(err, ErrNotFound) {
			return ReplayResult{Error: fmt.Sprintf("dead letter entry %s not found", id)}
		}
		return ReplayResult{Error: err.Error()}
	}
	if _, busy := q.replaying[id]; busy {
		q.mu.Unlock()
		return ReplayResult{Error: fmt.Sprintf("%s: %s", ErrReplayInProgress, id)}
	}
	q.replaying[id] = struct{}{}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		delete(q.replaying, id)
		q.mu.Unlock()
	}()

	logger := q.logger.With("entry_id", id, "operation", e.Operation)

	result, err := safeReplay(ctx, fn, e)
	if err != nil {
		logger.Warn("dead letter replay failed", "error", err)
		return ReplayResult{Error: err.Error()}
	}

	q.mu.Lock()
	err = q.store.MarkReplayed(ctx, id)
	q.mu.Unlock()
	if err != nil {
		logger.Error("replay succeeded but entry could not be marked", "error", err)
		return ReplayResult{Result: result, Error: fmt.Sprintf("failed to mark entry replayed: %v", err)}
	}

	logger.Info("dead letter replayed")
	return ReplayResult{Success: true, Result: result}
}

// Purge removes every entry when before is nil, otherwise only entries older
// than before. It returns the number of entries removed.
func (q *Queue) Purge(ctx context.Context, before *time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	n, err := q.store.Purge(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("failed to purge dead letter entries: %w", err)
	}

	if before == nil {
		q.logger.Info("dead letters purged", "removed", n)
	} else {
		q.logger.Info("dead letters purged", "removed", n, "before", before.Format(time.RFC3339))
	}
	return n, nil
}

func (q *Queue) findLocked(ctx context.Context, id string) (Entry, error) {
	all, err := q.store.Entries(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to read dead letter entries: %w", err)
	}
	for _, e := range all {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func safeReplay(ctx context.Context, fn ReplayFunc, e Entry) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("replay panicked: %v", r)
		}
	}()
	return fn(ctx, e.Operation, e.Args)
}
