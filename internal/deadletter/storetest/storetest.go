// Package storetest holds a behavioural test suite shared by every
// deadletter.Store implementation.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewEntry builds an entry with a fresh ID at the given timestamp.
func NewEntry(operation string, ts time.Time) deadletter.Entry {
	return deadletter.Entry{
		ID:        uuid.NewString(),
		Operation: operation,
		Args:      map[string]any{"path": "/var/data/" + operation, "attempt": float64(2)},
		Error:     operation + " failed",
		Metadata:  map[string]any{"source": "storetest"},
		Timestamp: ts.UTC(),
	}
}

// Run exercises a Store created fresh for each subtest by newStore.
func Run(t *testing.T, newStore func(t *testing.T) deadletter.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 30, 0, 123456000, time.UTC)

	t.Run("empty store has no entries", func(t *testing.T) {
		s := newStore(t)
		entries, err := s.Entries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)

		n, err := s.Purge(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
	})

	t.Run("append preserves order and fields", func(t *testing.T) {
		s := newStore(t)
		first := NewEntry("resize", base)
		second := NewEntry("encode", base.Add(time.Second))
		require.NoError(t, s.Append(ctx, first))
		require.NoError(t, s.Append(ctx, second))

		entries, err := s.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assertEntryEqual(t, first, entries[0])
		assertEntryEqual(t, second, entries[1])
	})

	t.Run("mark replayed", func(t *testing.T) {
		s := newStore(t)
		a := NewEntry("a", base)
		b := NewEntry("b", base.Add(time.Second))
		require.NoError(t, s.Append(ctx, a))
		require.NoError(t, s.Append(ctx, b))

		require.NoError(t, s.MarkReplayed(ctx, b.ID))

		entries, err := s.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.False(t, entries[0].Replayed)
		assert.True(t, entries[1].Replayed)
		assert.Equal(t, b.ID, entries[1].ID)

		err = s.MarkReplayed(ctx, uuid.NewString())
		assert.True(t, errors.Is(err, deadletter.ErrNotFound), "got %v", err)
	})

	t.Run("purge all", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 3; i++ {
			require.NoError(t, s.Append(ctx, NewEntry("op", base.Add(time.Duration(i)*time.Minute))))
		}

		n, err := s.Purge(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		entries, err := s.Entries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("purge before", func(t *testing.T) {
		s := newStore(t)
		old := NewEntry("old", base)
		edge := NewEntry("edge", base.Add(time.Hour))
		fresh := NewEntry("fresh", base.Add(2*time.Hour))
		for _, e := range []deadletter.Entry{old, edge, fresh} {
			require.NoError(t, s.Append(ctx, e))
		}

		early := base.Add(-time.Hour)
		n, err := s.Purge(ctx, &early)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		cutoff := base.Add(time.Hour)
		n, err = s.Purge(ctx, &cutoff)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		entries, err := s.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, edge.ID, entries[0].ID, "entries at the cutoff are kept")
		assert.Equal(t, fresh.ID, entries[1].ID)
	})
}

func assertEntryEqual(t *testing.T, want, got deadletter.Entry) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Operation, got.Operation)
	assert.Equal(t, want.Args, got.Args)
	assert.Equal(t, want.Error, got.Error)
	assert.Equal(t, want.Metadata, got.Metadata)
	assert.True(t, want.Timestamp.Equal(got.Timestamp), "timestamp %s != %s", want.Timestamp, got.Timestamp)
	assert.Equal(t, want.Replayed, got.Replayed)
}
