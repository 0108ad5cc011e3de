package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTaskEvent(t *testing.T) {
	payload := map[string]any{"path": "/tmp/report.pdf", "pages": float64(3)}

	event, err := NewTaskEvent(TypeTaskDeadLettered, "task-0123456789", "render", payload)

	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, TypeTaskDeadLettered, event.Type)
	assert.Equal(t, "task-0123456789", event.TaskID)
	assert.Equal(t, "render", event.TaskType)
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	var decoded map[string]any
	require.NoError(t, event.UnmarshalPayload(&decoded))
	assert.Equal(t, payload, decoded)
}

func TestNewTaskEventUnencodablePayload(t *testing.T) {
	_, err := NewTaskEvent(TypeTaskFailed, "task-1", "render", map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

// MockEventHandler implements the EventHandler interface for testing
type MockEventHandler struct {
	LastEvent    *TaskEvent
	HandlerError error
	HandledCount int
}

// HandleEvent implements the EventHandler interface
func (h *MockEventHandler) HandleEvent(ctx context.Context, event *TaskEvent) error {
	h.LastEvent = event
	h.HandledCount++
	return h.HandlerError
}

func TestHandlerFunc(t *testing.T) {
	var got *TaskEvent
	h := HandlerFunc(func(ctx context.Context, e *TaskEvent) error {
		got = e
		return errors.New("boom")
	})

	event, err := NewTaskEvent(TypeTaskFailed, "task-1", "render", nil)
	require.NoError(t, err)

	assert.EqualError(t, h.HandleEvent(context.Background(), event), "boom")
	assert.Same(t, event, got)
}
