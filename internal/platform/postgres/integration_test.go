package postgres

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/phrazzld/taskcore/internal/ciutil"
	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/deadletter/storetest"
	"github.com/stretchr/testify/require"
)

func TestDeadLetterStore_Integration(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	url := ciutil.TestDatabaseURL(logger)
	if url == "" {
		if ciutil.RequireServices() {
			t.Fatalf("%s must be set", ciutil.EnvTestDatabaseURL)
		}
		t.Skipf("%s not set", ciutil.EnvTestDatabaseURL)
	}
	ctx := context.Background()

	db, err := Open(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, Migrate(ctx, db, logger))
	// Applying twice must be a no-op.
	require.NoError(t, Migrate(ctx, db, logger))

	storetest.Run(t, func(t *testing.T) deadletter.Store {
		_, err := db.ExecContext(ctx, "TRUNCATE dead_letters")
		require.NoError(t, err)
		return NewDeadLetterStore(db)
	})
}
