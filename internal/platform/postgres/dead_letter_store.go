package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/store"
)

// DeadLetterStore implements deadletter.Store on the dead_letters table
// created by the embedded migrations. Rows are returned in insertion order
// by their BIGSERIAL sequence.
type DeadLetterStore struct {
	db store.DBTX
	// pool is nil for stores bound to a transaction by WithTx.
	pool *sql.DB
}

// NewDeadLetterStore creates a store over db. Migrate must have been run
// against the same database.
func NewDeadLetterStore(db *sql.DB) *DeadLetterStore {
	return &DeadLetterStore{db: db, pool: db}
}

// WithTx returns a store that runs every statement inside tx.
func (s *DeadLetterStore) WithTx(tx *sql.Tx) *DeadLetterStore {
	return &DeadLetterStore{db: tx}
}

// Append inserts e.
func (s *DeadLetterStore) Append(ctx context.Context, e deadletter.Entry) error {
	log := logger.FromContext(ctx)

	args, err := json.Marshal(e.Args)
	if err != nil {
		return fmt.Errorf("failed to encode args: %w", err)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	query := `
		INSERT INTO dead_letters (id, operation, args, error, metadata, created_at, replayed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		e.ID,
		e.Operation,
		args,
		e.Error,
		meta,
		e.Timestamp.UTC(),
		e.Replayed,
	)
	if err != nil {
		log.Error("failed to insert dead letter",
			"entry_id", e.ID,
			"operation", e.Operation,
			"error", err)
		mapped := MapError(err)
		storeErr := store.NewStoreError("dead_letter", "append", "insert failed", mapped)
		if store.IsDuplicateError(mapped) {
			return fmt.Errorf("%w: id %s already archived: %w", deadletter.ErrInvalidEntry, e.ID, storeErr)
		}
		return storeErr
	}
	return nil
}

// Entries returns every row ordered by insertion.
func (s *DeadLetterStore) Entries(ctx context.Context) ([]deadletter.Entry, error) {
	query := `
		SELECT id, operation, args, error, metadata, created_at, replayed
		FROM dead_letters
		ORDER BY seq ASC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, store.NewStoreError("dead_letter", "list", "query failed", MapError(err))
	}
	defer rows.Close()

	entries := []deadletter.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStoreError("dead_letter", "list", "row iteration failed", err)
	}
	return entries, nil
}

// MarkReplayed locks the row, then sets its replayed flag. It opens its own
// transaction unless the store is already bound to one.
func (s *DeadLetterStore) MarkReplayed(ctx context.Context, id string) error {
	if s.pool == nil {
		return s.markReplayed(ctx, id)
	}
	return store.RunInTransaction(ctx, s.pool, func(ctx context.Context, tx *sql.Tx) error {
		return s.WithTx(tx).markReplayed(ctx, id)
	})
}

func (s *DeadLetterStore) markReplayed(ctx context.Context, id string) error {
	var replayed bool
	err := s.db.QueryRowContext(ctx,
		`SELECT replayed FROM dead_letters WHERE id = $1 FOR UPDATE`, id,
	).Scan(&replayed)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", deadletter.ErrNotFound, id)
	}
	if err != nil {
		return store.NewStoreError("dead_letter", "mark_replayed", "lookup failed", MapError(err))
	}
	if replayed {
		return nil
	}

	result, err := s.db.ExecContext(ctx, `UPDATE dead_letters SET replayed = TRUE WHERE id = $1`, id)
	if err != nil {
		return store.NewStoreError("dead_letter", "mark_replayed", "update failed", MapError(err))
	}
	if err := CheckRowsAffected(result, "dead letter "+id); err != nil {
		if store.IsNotFoundError(err) {
			return fmt.Errorf("%w: %s", deadletter.ErrNotFound, id)
		}
		return err
	}
	return nil
}

// Purge deletes every row, or only rows created before the cutoff.
func (s *DeadLetterStore) Purge(ctx context.Context, before *time.Time) (int, error) {
	var (
		result sql.Result
		err    error
	)
	if before == nil {
		result, err = s.db.ExecContext(ctx, `DELETE FROM dead_letters`)
	} else {
		result, err = s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE created_at < $1`, before.UTC())
	}
	if err != nil {
		return 0, store.NewStoreError("dead_letter", "purge", "delete failed", MapError(err))
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return int(n), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (deadletter.Entry, error) {
	var (
		e       deadletter.Entry
		argsRaw []byte
		metaRaw []byte
	)
	if err := row.Scan(&e.ID, &e.Operation, &argsRaw, &e.Error, &metaRaw, &e.Timestamp, &e.Replayed); err != nil {
		return deadletter.Entry{}, store.NewStoreError("dead_letter", "list", "scan failed", err)
	}
	if err := json.Unmarshal(argsRaw, &e.Args); err != nil {
		return deadletter.Entry{}, fmt.Errorf("failed to decode args for %s: %w", e.ID, err)
	}
	if err := json.Unmarshal(metaRaw, &e.Metadata); err != nil {
		return deadletter.Entry{}, fmt.Errorf("failed to decode metadata for %s: %w", e.ID, err)
	}
	e.Timestamp = e.Timestamp.UTC()
	return e, nil
}
