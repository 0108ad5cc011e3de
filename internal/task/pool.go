package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// ErrPoolRunning is returned by Start when the pool is already running.
var ErrPoolRunning = errors.New("worker pool already running")

// WorkerPoolConfig holds configuration options for the worker pool
type WorkerPoolConfig struct {
	// WorkerCount determines how many workers pull from the queue.
	// If zero or negative, defaults to 1
	WorkerCount int

	// Timeout bounds each handler invocation.
	Timeout time.Duration

	// PollInterval is how long an idle worker waits before polling the queue again.
	PollInterval time.Duration
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with reasonable defaults
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{
		WorkerCount:  2,
		Timeout:      DefaultTimeout,
		PollInterval: 100 * time.Millisecond,
	}
}

// WorkerPool drives a set of TaskWorkers against one TaskQueue, reporting
// every result to a ResultAggregator and acking or nacking the task.
type WorkerPool struct {
	queue      *TaskQueue
	aggregator *ResultAggregator
	workers    []*TaskWorker
	config     WorkerPoolConfig
	logger     *slog.Logger

	mu           sync.Mutex
	cancel       context.CancelFunc
	done         chan error
	errorHandler func(t Task, result TaskResult)
}

// NewWorkerPool creates a pool of config.WorkerCount workers running handler.
func NewWorkerPool(
	queue *TaskQueue,
	aggregator *ResultAggregator,
	handler Handler,
	config WorkerPoolConfig,
	logger *slog.Logger,
	opts ...WorkerOption,
) *WorkerPool {
	if config.WorkerCount <= 0 {
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", 1)
		config.WorkerCount = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultWorkerPoolConfig().PollInterval
	}

	workerOpts := append([]WorkerOption{WithHandler(handler), WithTimeout(config.Timeout)}, opts...)
	workers := make([]*TaskWorker, config.WorkerCount)
	for i := range workers {
		workers[i] = NewTaskWorker(fmt.Sprintf("worker-%d", i), logger, workerOpts...)
	}

	return &WorkerPool{
		queue:      queue,
		aggregator: aggregator,
		workers:    workers,
		config:     config,
		logger:     logger.With("component", "worker_pool"),
	}
}

// SetErrorHandler registers a callback invoked for every failed task result.
func (p *WorkerPool) SetErrorHandler(handler func(t Task, result TaskResult)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorHandler = handler
}

// Workers returns the pool's workers.
func (p *WorkerPool) Workers() []*TaskWorker {
	return p.workers
}

// Start launches one driver goroutine per worker. The pool runs until ctx is
// cancelled or Stop is called.
func (p *WorkerPool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel != nil {
		return ErrPoolRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range p.workers {
		w := w
		w.Start()
		g.Go(func() error {
			return p.run(gctx, w)
		})
	}

	p.cancel = cancel
	p.done = make(chan error, 1)
	go func() {
		p.done <- g.Wait()
	}()

	p.logger.Info("worker pool started", "worker_count", len(p.workers))
	return nil
}

// Stop stops all workers and waits for in-progress tasks to finish or for ctx
// to expire, whichever comes first.
func (p *WorkerPool) Stop(ctx context.Context) error {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return nil
	}

	for _, w := range p.workers {
		w.Stop()
	}
	cancel()

	select {
	case err := <-done:
		p.logger.Info("worker pool stopped")
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for workers to stop: %w", ctx.Err())
	}
}

func (p *WorkerPool) run(ctx context.Context, w *TaskWorker) error {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if !w.IsRunning() || !p.ProcessNext(ctx, w) {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	}
}

// ProcessNext dequeues one task, runs it on w and settles it with the queue.
// It returns false when the queue had nothing to hand out.
func (p *WorkerPool) ProcessNext(ctx context.Context, w *TaskWorker) bool {
	t := p.queue.Dequeue()
	if t == nil {
		return false
	}

	// Shutdown should let the current task finish within its timeout.
	result := w.ProcessOne(context.WithoutCancel(ctx), t)
	p.aggregator.Add(result)

	if result.Success {
		p.queue.Ack(t.ID)
		return true
	}

	// Once nacked the task may be handed to another worker, so report a copy.
	failed := *t
	failed.RetryCount++
	failed.LastError = result.Error

	retried := p.queue.NackWithReason(t.ID, result.Error)
	p.logger.Debug("task attempt failed",
		"task_id", failed.ID,
		"worker_id", w.ID(),
		"retried", retried,
		"error", result.Error)

	p.mu.Lock()
	handler := p.errorHandler
	p.mu.Unlock()
	if handler != nil {
		handler(failed, result)
	}
	return true
}
