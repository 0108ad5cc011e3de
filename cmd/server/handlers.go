package main

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/taskcore/internal/task"
)

// Task types served by this binary.
const (
	TaskTypeEcho  = "echo"
	TaskTypeSleep = "sleep"
)

func registerTaskHandlers(r *task.Router) {
	r.Register(TaskTypeEcho, task.EchoHandler)
	r.Register(TaskTypeSleep, sleepHandler)
}

// sleepHandler waits payload["duration_ms"] milliseconds, or until the
// worker's timeout cancels it.
func sleepHandler(ctx context.Context, t *task.Task) (any, error) {
	raw, ok := t.Payload["duration_ms"]
	if !ok {
		return nil, fmt.Errorf("duration_ms is required")
	}
	ms, ok := raw.(float64)
	if !ok || ms < 0 {
		return nil, fmt.Errorf("duration_ms must be a non-negative number, got %v", raw)
	}

	timer := time.NewTimer(time.Duration(ms * float64(time.Millisecond)))
	defer timer.Stop()

	select {
	case <-timer.C:
		return map[string]any{"slept_ms": ms}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
