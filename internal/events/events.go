package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the task core.
const (
	TypeTaskDeadLettered = "task.dead_lettered"
	TypeTaskFailed       = "task.failed"
)

// TaskEvent describes something that happened to a task. It carries enough
// of the task to act on it without depending on the task package.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is the event type, e.g. TypeTaskDeadLettered
	Type string `json:"type"`

	TaskID     string `json:"task_id"`
	TaskType   string `json:"task_type"`
	Priority   int    `json:"priority"`
	RetryCount int    `json:"retry_count"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`

	// Payload contains the task payload serialized as JSON
	Payload json.RawMessage `json:"payload"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into the provided structure.
func (e *TaskEvent) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewTaskEvent creates a TaskEvent of the given type for a task.
func NewTaskEvent(eventType, taskID, taskType string, payload any) (*TaskEvent, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &TaskEvent{
		ID:        uuid.New(),
		Type:      eventType,
		TaskID:    taskID,
		TaskType:  taskType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// HandlerFunc adapts a function to the EventHandler interface.
type HandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent calls f(ctx, event).
func (f HandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}
