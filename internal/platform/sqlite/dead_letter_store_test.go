package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/deadletter/storetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *DeadLetterStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "dlq", "dead_letters.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDeadLetterStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) deadletter.Store {
		return newTestStore(t)
	})
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("")
	assert.Error(t, err)
}

func TestDeadLetterStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dead_letters.db")
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store, err := Open(path)
	require.NoError(t, err)
	q := deadletter.New(store, logger)
	id, err := q.Add(ctx, "export", map[string]any{"report": "q3"}, "disk full", nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	entry, err := deadletter.New(reopened, logger).Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "export", entry.Operation)
	assert.Equal(t, "q3", entry.Args["report"])
}
