package task

import (
	"context"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/events"
)

// EmitDeadLetters returns a DeadLetterHandler that publishes a
// events.TypeTaskDeadLettered event for every dead-lettered task.
// Emission failures are logged; they never reach the queue.
func EmitDeadLetters(emitter events.EventEmitter, logger *slog.Logger) DeadLetterHandler {
	logger = logger.With("component", "dead_letter_emitter")

	return func(t Task, reason string) {
		event, err := events.NewTaskEvent(events.TypeTaskDeadLettered, t.ID, t.Type, t.Payload)
		if err != nil {
			logger.Error("failed to build dead letter event",
				"task_id", t.ID,
				"error", err)
			return
		}
		event.Priority = int(t.Priority)
		event.RetryCount = t.RetryCount
		event.Reason = reason
		event.Error = t.LastError
		if event.Error == "" {
			event.Error = reason
		}

		if err := emitter.EmitEvent(context.Background(), event); err != nil {
			logger.Error("failed to emit dead letter event",
				"task_id", t.ID,
				"event_id", event.ID,
				"error", err)
		}
	}
}

// EmitFailures returns a WorkerPool error handler that publishes a
// events.TypeTaskFailed event for every failed attempt.
func EmitFailures(emitter events.EventEmitter, logger *slog.Logger) func(t Task, result TaskResult) {
	logger = logger.With("component", "failure_emitter")

	return func(t Task, result TaskResult) {
		event, err := events.NewTaskEvent(events.TypeTaskFailed, t.ID, t.Type, t.Payload)
		if err != nil {
			logger.Error("failed to build failure event", "task_id", t.ID, "error", err)
			return
		}
		event.Priority = int(t.Priority)
		event.RetryCount = t.RetryCount
		event.Error = result.Error

		if err := emitter.EmitEvent(context.Background(), event); err != nil {
			logger.Error("failed to emit failure event",
				"task_id", t.ID,
				"event_id", event.ID,
				"error", err)
		}
	}
}
