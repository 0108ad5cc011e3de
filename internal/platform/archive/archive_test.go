package archive_test

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/platform/archive"
	"github.com/phrazzld/taskcore/internal/platform/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		cfg := &config.Config{DeadLetter: config.DeadLetterConfig{
			Backend: config.BackendFile,
			Path:    filepath.Join(dir, "dlq.jsonl"),
		}}
		b, err := archive.Open(ctx, cfg, discard())
		require.NoError(t, err)
		defer func() { assert.NoError(t, b.Close()) }()

		assert.Equal(t, config.BackendFile, b.Name)
		assert.IsType(t, &deadletter.FileStore{}, b.Store)
		assert.NoError(t, b.Migrate(ctx, discard()))
	})

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.Config{DeadLetter: config.DeadLetterConfig{
			Backend:    config.BackendSQLite,
			SQLitePath: filepath.Join(dir, "dlq.db"),
		}}
		b, err := archive.Open(ctx, cfg, discard())
		require.NoError(t, err)
		defer func() { assert.NoError(t, b.Close()) }()

		assert.IsType(t, &sqlite.DeadLetterStore{}, b.Store)

		q := deadletter.New(b.Store, discard())
		_, err = q.Add(ctx, "resize", nil, "boom", nil)
		require.NoError(t, err)
		n, err := q.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := &config.Config{DeadLetter: config.DeadLetterConfig{Backend: "s3"}}
		_, err := archive.Open(ctx, cfg, discard())
		assert.ErrorIs(t, err, config.ErrBackendConfig)
	})

	t.Run("unreachable redis", func(t *testing.T) {
		cfg := &config.Config{
			DeadLetter: config.DeadLetterConfig{Backend: config.BackendRedis},
			Redis:      config.RedisConfig{Addr: "127.0.0.1:1", Key: "dlq"},
		}
		_, err := archive.Open(ctx, cfg, discard())
		assert.Error(t, err)
	})
}

func TestBackendCloseNil(t *testing.T) {
	var b *archive.Backend
	assert.NoError(t, b.Close())
}
