package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/events"
	"github.com/phrazzld/taskcore/internal/platform/archive"
	"github.com/phrazzld/taskcore/internal/redact"
	"github.com/phrazzld/taskcore/internal/service/auth"
	"github.com/phrazzld/taskcore/internal/task"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config  *config.Config
	logger  *slog.Logger
	backend *archive.Backend

	// Task processing
	queue      *task.TaskQueue
	router     *task.Router
	aggregator *task.ResultAggregator
	pool       *task.WorkerPool

	// Dead-letter archive
	emitter *events.InMemoryEventEmitter
	archive *deadletter.Queue
	replays *deadletter.Registry

	// nil when the admin API is unauthenticated
	tokens *auth.TokenService
}

// newApplication wires the queue, worker pool and dead-letter archive on top
// of an already opened backend.
func newApplication(cfg *config.Config, logger *slog.Logger, backend *archive.Backend) (*application, error) {
	app := &application{
		config:     cfg,
		logger:     logger,
		backend:    backend,
		queue:      task.NewTaskQueue(logger),
		router:     task.NewRouter(),
		aggregator: task.NewResultAggregator(),
		emitter:    events.NewInMemoryEventEmitter(logger),
		archive:    deadletter.New(backend.Store, logger),
		replays:    deadletter.NewRegistry(),
	}

	registerTaskHandlers(app.router)

	// Tasks the queue gives up on flow through the emitter into the archive.
	app.emitter.RegisterHandlerFor(events.TypeTaskDeadLettered, deadletter.NewArchiveHandler(app.archive, logger))
	app.queue.SetDeadLetterHandler(task.EmitDeadLetters(app.emitter, logger))

	for _, taskType := range app.router.Types() {
		app.replays.Register(taskType, app.resubmit)
	}

	app.pool = task.NewWorkerPool(app.queue, app.aggregator, app.router.Handle, task.WorkerPoolConfig{
		WorkerCount:  cfg.Worker.Count,
		Timeout:      cfg.Worker.Timeout,
		PollInterval: cfg.Worker.PollInterval,
	}, logger)
	app.pool.SetErrorHandler(task.EmitFailures(app.emitter, logger))
	app.emitter.RegisterHandlerFor(events.TypeTaskFailed, events.HandlerFunc(
		func(_ context.Context, e *events.TaskEvent) error {
			logger.Warn("task attempt failed",
				"task_id", e.TaskID,
				"task_type", e.TaskType,
				"retry_count", e.RetryCount,
				"error", redact.String(e.Error))
			return nil
		}))

	if cfg.Auth.AuthEnabled() {
		tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenLifetime)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize token service: %w", err)
		}
		app.tokens = tokens
		logger.Info("operator authentication enabled", "token_lifetime", cfg.Auth.TokenLifetime.String())
	} else {
		logger.Warn("operator authentication disabled, admin API is open")
	}

	logger.Info("application initialized",
		"task_types", app.router.Types(),
		"dead_letter_backend", backend.Name)
	return app, nil
}

// resubmit replays an archived entry by enqueueing it as a fresh task of the
// same type with the configured retry budget.
func (app *application) resubmit(_ context.Context, operation string, args map[string]any) (any, error) {
	if !app.router.Has(operation) {
		return nil, fmt.Errorf("%w: %q", task.ErrNoHandler, operation)
	}

	t := task.NewTask(operation, args, task.WithMaxRetries(app.config.Queue.DefaultMaxRetries))
	if !app.queue.Enqueue(t) {
		return nil, fmt.Errorf("task %s is already queued", t.ID)
	}
	return map[string]any{"task_id": t.ID}, nil
}

// Run starts the worker pool and the HTTP server and blocks until shutdown.
func (app *application) Run(ctx context.Context) error {
	if err := app.pool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup drains the worker pool and releases the archive backend.
func (app *application) cleanup() {
	stopCtx, cancel := context.WithTimeout(context.Background(), app.config.Worker.Timeout+5*time.Second)
	defer cancel()

	if err := app.pool.Stop(stopCtx); err != nil {
		app.logger.Error("error stopping worker pool", "error", err)
	}

	if err := app.backend.Close(); err != nil {
		app.logger.Error("error closing dead letter backend", "error", err)
	}

	stats := app.queue.Stats()
	app.logger.Info("application shutdown completed",
		"pending", stats.Pending,
		"dead_lettered", stats.DeadLettered,
		"completed_total", stats.Completed)
}
