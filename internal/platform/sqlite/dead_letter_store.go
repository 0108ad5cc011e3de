package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/taskcore/internal/deadletter"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DeadLetterStore keeps dead-letter entries in a single SQLite table. Rows
// are ordered by an autoincrement sequence so Entries returns insertion
// order.
type DeadLetterStore struct {
	db *sql.DB
}

// Open creates the database file and schema at path if they do not exist.
func Open(path string) (*DeadLetterStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("dead letter sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dead letter db dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dead letter sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.ExecContext(context.Background(), "PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable wal: %w", err)
	}
	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize dead letter schema: %w", err)
	}
	return &DeadLetterStore{db: db}, nil
}

// Close releases the database handle.
func (s *DeadLetterStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *DeadLetterStore) Append(ctx context.Context, e deadletter.Entry) error {
	args, err := json.Marshal(e.Args)
	if err != nil {
		return fmt.Errorf("encode args: %w", err)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	const q = `
INSERT INTO dead_letters (id, operation, args_json, error, metadata_json, created_at_ns, replayed)
VALUES (?, ?, ?, ?, ?, ?, ?);
`
	if _, err := s.db.ExecContext(ctx, q,
		e.ID, e.Operation, string(args), e.Error, string(meta), e.Timestamp.UnixNano(), boolToInt(e.Replayed),
	); err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func (s *DeadLetterStore) Entries(ctx context.Context) ([]deadletter.Entry, error) {
	const q = `
SELECT id, operation, args_json, error, metadata_json, created_at_ns, replayed
FROM dead_letters
ORDER BY seq ASC;
`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	out := []deadletter.Entry{}
	for rows.Next() {
		var (
			e        deadletter.Entry
			argsRaw  string
			metaRaw  string
			nanos    int64
			replayed int
		)
		if err := rows.Scan(&e.ID, &e.Operation, &argsRaw, &e.Error, &metaRaw, &nanos, &replayed); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		if err := json.Unmarshal([]byte(argsRaw), &e.Args); err != nil {
			return nil, fmt.Errorf("decode args for %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(metaRaw), &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", e.ID, err)
		}
		e.Timestamp = time.Unix(0, nanos).UTC()
		e.Replayed = replayed != 0
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

func (s *DeadLetterStore) MarkReplayed(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE dead_letters SET replayed = 1 WHERE id = ?;`, id)
	if err != nil {
		return fmt.Errorf("mark dead letter replayed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark dead letter replayed: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", deadletter.ErrNotFound, id)
	}
	return nil
}

func (s *DeadLetterStore) Purge(ctx context.Context, before *time.Time) (int, error) {
	var (
		res sql.Result
		err error
	)
	if before == nil {
		res, err = s.db.ExecContext(ctx, `DELETE FROM dead_letters;`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM dead_letters WHERE created_at_ns < ?;`, before.UnixNano())
	}
	if err != nil {
		return 0, fmt.Errorf("purge dead letters: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge dead letters: %w", err)
	}
	return int(n), nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
