package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// DefaultTimeout bounds a single handler invocation when no timeout is configured.
const DefaultTimeout = 30 * time.Second

const tracerName = "github.com/phrazzld/taskcore/internal/task"

// Handler executes a task and returns an opaque result. Handlers should
// honour ctx cancellation; a handler that overruns its timeout is abandoned.
type Handler func(ctx context.Context, t *Task) (any, error)

// EchoHandler returns the task ID. It is the default handler of a TaskWorker.
func EchoHandler(_ context.Context, t *Task) (any, error) {
	return t.ID, nil
}

// TaskWorker runs a handler against one task at a time and converts every
// outcome, including panics and timeouts, into a TaskResult.
type TaskWorker struct {
	id      string
	handler Handler
	timeout time.Duration
	tracer  trace.Tracer
	logger  *slog.Logger

	processed atomic.Int64
	failed    atomic.Int64
	running   atomic.Bool
}

// WorkerOption configures a TaskWorker.
type WorkerOption func(*TaskWorker)

// WithHandler sets the handler invoked by ProcessOne.
func WithHandler(h Handler) WorkerOption {
	return func(w *TaskWorker) {
		if h != nil {
			w.handler = h
		}
	}
}

// WithTimeout sets the per-task timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) WorkerOption {
	return func(w *TaskWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

// WithTracerProvider makes the worker record a span per processed task.
func WithTracerProvider(tp trace.TracerProvider) WorkerOption {
	return func(w *TaskWorker) {
		if tp != nil {
			w.tracer = tp.Tracer(tracerName)
		}
	}
}

// NewTaskWorker creates a stopped worker with the given identifier.
func NewTaskWorker(id string, logger *slog.Logger, opts ...WorkerOption) *TaskWorker {
	w := &TaskWorker{
		id:      id,
		handler: EchoHandler,
		timeout: DefaultTimeout,
		tracer:  noop.NewTracerProvider().Tracer(tracerName),
		logger:  logger.With("component", "task_worker", "worker_id", id),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker identifier.
func (w *TaskWorker) ID() string { return w.id }

// Processed returns the number of tasks handled successfully.
func (w *TaskWorker) Processed() int64 { return w.processed.Load() }

// Failed returns the number of tasks whose handler failed.
func (w *TaskWorker) Failed() int64 { return w.failed.Load() }

// Load is the figure used for load-aware dispatch. It equals Processed.
func (w *TaskWorker) Load() int64 { return w.processed.Load() }

// Start marks the worker as running.
func (w *TaskWorker) Start() {
	if w.running.CompareAndSwap(false, true) {
		w.logger.Debug("worker started")
	}
}

// Stop marks the worker as stopped. A driver loop stops pulling work for it.
func (w *TaskWorker) Stop() {
	if w.running.CompareAndSwap(true, false) {
		w.logger.Debug("worker stopped")
	}
}

// IsRunning reports whether the worker is running.
func (w *TaskWorker) IsRunning() bool { return w.running.Load() }

type outcome struct {
	value any
	err   error
}

// ProcessOne runs the handler for t and always returns a result. The handler
// runs in its own goroutine under a deadline; if it has not returned when the
// deadline passes, ProcessOne returns a timeout failure without waiting for it.
func (w *TaskWorker) ProcessOne(ctx context.Context, t *Task) TaskResult {
	start := time.Now()
	if t == nil {
		w.failed.Add(1)
		return w.result("", start, outcome{err: ErrNilTask})
	}

	ctx, span := w.tracer.Start(ctx, "task.process", trace.WithAttributes(
		attribute.String("task.id", t.ID),
		attribute.String("task.type", t.Type),
		attribute.String("task.priority", t.Priority.String()),
		attribute.Int("task.retry_count", t.RetryCount),
		attribute.String("worker.id", w.id),
	))
	defer span.End()

	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	// The handler may outlive this call; it gets its own copy so the queue can
	// keep updating t.
	own := *t
	own.Payload = maps.Clone(t.Payload)

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrTaskPanic, r)}
			}
		}()
		v, err := w.handler(runCtx, &own)
		done <- outcome{value: v, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			out.err = fmt.Errorf("%w after %s", ErrTaskTimeout, w.timeout)
		} else {
			out.err = runCtx.Err()
		}
	}

	res := w.result(t.ID, start, out)
	if out.err != nil {
		w.failed.Add(1)
		span.RecordError(out.err)
		span.SetStatus(codes.Error, out.err.Error())
		w.logger.Warn("task failed",
			"task_id", t.ID,
			"task_type", t.Type,
			"duration_ms", res.DurationMS,
			"error", out.err)
	} else {
		w.processed.Add(1)
		span.SetStatus(codes.Ok, "")
		w.logger.Debug("task processed",
			"task_id", t.ID,
			"task_type", t.Type,
			"duration_ms", res.DurationMS)
	}
	span.SetAttributes(attribute.Bool("task.success", res.Success))

	return res
}

func (w *TaskWorker) result(taskID string, start time.Time, out outcome) TaskResult {
	elapsed := time.Since(start)
	res := TaskResult{
		TaskID:      taskID,
		WorkerID:    w.id,
		Success:     out.err == nil,
		Value:       out.value,
		DurationMS:  float64(elapsed.Microseconds()) / 1000,
		CompletedAt: time.Now().UTC(),
	}
	if out.err != nil {
		res.Value = nil
		res.Error = out.err.Error()
	}
	return res
}
