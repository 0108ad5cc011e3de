package deadletter

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/events"
)

// ArchiveHandler records dead-lettered tasks in a Queue. It implements
// events.EventHandler and ignores every other event type.
type ArchiveHandler struct {
	queue  *Queue
	logger *slog.Logger
}

// NewArchiveHandler creates an ArchiveHandler writing to queue.
func NewArchiveHandler(queue *Queue, logger *slog.Logger) *ArchiveHandler {
	return &ArchiveHandler{
		queue:  queue,
		logger: logger.With("component", "dead_letter_archive_handler"),
	}
}

// HandleEvent archives events of type events.TypeTaskDeadLettered. The task
// type becomes the operation and the task payload becomes the arguments.
func (h *ArchiveHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	if event.Type != events.TypeTaskDeadLettered {
		return nil
	}

	args := map[string]any{}
	if len(event.Payload) > 0 {
		if err := event.UnmarshalPayload(&args); err != nil {
			h.logger.Error("failed to unmarshal payload", "error", err, "event_id", event.ID)
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	metadata := map[string]any{
		"task_id":     event.TaskID,
		"priority":    event.Priority,
		"retry_count": event.RetryCount,
		"reason":      event.Reason,
		"event_id":    event.ID.String(),
	}

	id, err := h.queue.Add(ctx, event.TaskType, args, event.Error, metadata)
	if err != nil {
		return fmt.Errorf("failed to archive dead-lettered task %s: %w", event.TaskID, err)
	}

	h.logger.Debug("archived dead-lettered task",
		"task_id", event.TaskID,
		"entry_id", id)
	return nil
}
