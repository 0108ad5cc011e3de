package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/phrazzld/taskcore/internal/deadletter"
)

const (
	defaultKey = "taskcore:dead_letters"

	// maxTxRetries bounds optimistic-lock retries when another client
	// changes the list between read and write.
	maxTxRetries = 5
)

// DeadLetterStore keeps entries in a Redis list, oldest first. Appends are
// a single RPUSH; rewrites run in a WATCH transaction so concurrent writers
// from other processes are not lost.
type DeadLetterStore struct {
	client   *goredis.Client
	key      string
	addr     string
	db       int
	password string
}

// Option configures a DeadLetterStore built by New.
type Option func(*DeadLetterStore)

// WithPassword sets the AUTH password.
func WithPassword(password string) Option {
	return func(s *DeadLetterStore) {
		s.password = password
	}
}

// WithDB selects the logical database.
func WithDB(db int) Option {
	return func(s *DeadLetterStore) {
		s.db = db
	}
}

// WithKey sets the list key. Blank keys are ignored.
func WithKey(key string) Option {
	return func(s *DeadLetterStore) {
		if strings.TrimSpace(key) != "" {
			s.key = strings.TrimSpace(key)
		}
	}
}

// WithClient uses an existing client instead of dialing addr.
func WithClient(client *goredis.Client) Option {
	return func(s *DeadLetterStore) {
		if client != nil {
			s.client = client
		}
	}
}

// New connects to addr and verifies the connection with PING.
func New(addr string, opts ...Option) (*DeadLetterStore, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	s := &DeadLetterStore{
		key:  defaultKey,
		addr: addr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = goredis.NewClient(&goredis.Options{
			Addr:     s.addr,
			Password: s.password,
			DB:       s.db,
		})
	}

	if err := s.client.Ping(context.Background()).Err(); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return s, nil
}

// Key returns the list key the store writes to.
func (s *DeadLetterStore) Key() string { return s.key }

// Close closes the underlying client.
func (s *DeadLetterStore) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

// Append pushes e onto the tail of the list.
func (s *DeadLetterStore) Append(ctx context.Context, e deadletter.Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}
	if err := s.client.RPush(ctx, s.key, string(raw)).Err(); err != nil {
		return fmt.Errorf("failed to push dead letter to redis: %w", err)
	}
	return nil
}

// Entries decodes the whole list in order.
func (s *DeadLetterStore) Entries(ctx context.Context) ([]deadletter.Entry, error) {
	raw, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letters from redis: %w", err)
	}

	out := make([]deadletter.Entry, 0, len(raw))
	for i, item := range raw {
		var e deadletter.Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter at index %d: %w", i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// MarkReplayed rewrites the matching list element in place with LSET.
func (s *DeadLetterStore) MarkReplayed(ctx context.Context, id string) error {
	return s.withWatch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.LRange(ctx, s.key, 0, -1).Result()
		if err != nil {
			return err
		}

		for i, item := range raw {
			var e deadletter.Entry
			if err := json.Unmarshal([]byte(item), &e); err != nil || e.ID != id {
				continue
			}
			e.Replayed = true
			updated, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal dead letter: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.LSet(ctx, s.key, int64(i), string(updated))
				return nil
			})
			return err
		}
		return fmt.Errorf("%w: %s", deadletter.ErrNotFound, id)
	})
}

// Purge deletes the list, or rebuilds it from the entries at or after
// before.
func (s *DeadLetterStore) Purge(ctx context.Context, before *time.Time) (int, error) {
	removed := 0
	err := s.withWatch(ctx, func(tx *goredis.Tx) error {
		raw, err := tx.LRange(ctx, s.key, 0, -1).Result()
		if err != nil {
			return err
		}

		kept := make([]any, 0, len(raw))
		removed = 0
		for _, item := range raw {
			if before == nil {
				removed++
				continue
			}
			var e deadletter.Entry
			if err := json.Unmarshal([]byte(item), &e); err == nil && e.Timestamp.Before(*before) {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		if removed == 0 {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			pipe.Del(ctx, s.key)
			if len(kept) > 0 {
				pipe.RPush(ctx, s.key, kept...)
			}
			return nil
		})
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (s *DeadLetterStore) withWatch(ctx context.Context, fn func(tx *goredis.Tx) error) error {
	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.client.Watch(ctx, fn, s.key)
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		if err != nil && !errors.Is(err, deadletter.ErrNotFound) {
			return fmt.Errorf("redis dead letter transaction failed: %w", err)
		}
		return err
	}
	return fmt.Errorf("redis dead letter transaction failed: key %s kept changing", s.key)
}
