// Package archive opens the dead-letter Store selected by configuration.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/platform/postgres"
	"github.com/phrazzld/taskcore/internal/platform/redis"
	"github.com/phrazzld/taskcore/internal/platform/sqlite"
	"github.com/phrazzld/taskcore/internal/redact"
)

// Backend is an opened dead-letter store together with the resources it holds.
type Backend struct {
	Name  string
	Store deadletter.Store

	// DB is the PostgreSQL handle when Name is config.BackendPostgres.
	DB *sql.DB

	close func() error
}

// Close releases the backend's connections or file handles.
func (b *Backend) Close() error {
	if b == nil || b.close == nil {
		return nil
	}
	return b.close()
}

// Open connects to the backend named by cfg.DeadLetter.Backend. Unreachable
// backends are reported as errors; callers treat them as fatal at startup.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Backend, error) {
	name := cfg.DeadLetter.Backend

	switch name {
	case config.BackendFile, "":
		store, err := deadletter.NewFileStore(cfg.DeadLetter.Path, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("dead letter archive opened", "backend", config.BackendFile, "path", store.Path())
		return &Backend{Name: config.BackendFile, Store: store}, nil

	case config.BackendSQLite:
		store, err := sqlite.Open(cfg.DeadLetter.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("dead letter archive opened", "backend", name, "path", cfg.DeadLetter.SQLitePath)
		return &Backend{Name: name, Store: store, close: store.Close}, nil

	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres archive at %s: %w", redact.URL(cfg.Database.URL), err)
		}
		logger.Info("dead letter archive opened", "backend", name, "database_url", redact.URL(cfg.Database.URL))
		return &Backend{Name: name, Store: postgres.NewDeadLetterStore(db), DB: db, close: db.Close}, nil

	case config.BackendRedis:
		store, err := redis.New(cfg.Redis.Addr,
			redis.WithPassword(cfg.Redis.Password),
			redis.WithDB(cfg.Redis.DB),
			redis.WithKey(cfg.Redis.Key))
		if err != nil {
			return nil, fmt.Errorf("failed to open redis archive at %s: %w", cfg.Redis.Addr, err)
		}
		logger.Info("dead letter archive opened", "backend", name, "addr", cfg.Redis.Addr, "key", store.Key())
		return &Backend{Name: name, Store: store, close: store.Close}, nil

	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrBackendConfig, name)
	}
}

// Migrate applies pending schema migrations for backends that need them.
// It is a no-op for every backend except PostgreSQL.
func (b *Backend) Migrate(ctx context.Context, logger *slog.Logger) error {
	if b.Name != config.BackendPostgres {
		logger.Info("no migrations required", "backend", b.Name)
		return nil
	}
	return postgres.Migrate(ctx, b.DB, logger)
}
