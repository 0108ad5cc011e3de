package api

import (
	"time"

	"github.com/phrazzld/taskcore/internal/deadletter"
	"github.com/phrazzld/taskcore/internal/task"
)

// SubmitTaskRequest defines the payload for POST /api/tasks.
type SubmitTaskRequest struct {
	ID         string         `json:"id"          validate:"omitempty,max=128"`
	Type       string         `json:"type"        validate:"required,max=128"`
	Payload    map[string]any `json:"payload"`
	Priority   string         `json:"priority"    validate:"omitempty,oneof=critical high normal low background"`
	Deadline   *time.Time     `json:"deadline"`
	MaxRetries *int           `json:"max_retries" validate:"omitempty,gte=0,lte=100"`
}

// TaskResponse describes a queued task.
type TaskResponse struct {
	ID         string     `json:"id"`
	Type       string     `json:"type"`
	Priority   string     `json:"priority"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	MaxRetries int        `json:"max_retries"`
	RetryCount int        `json:"retry_count"`
	Status     string     `json:"status"`
	LastError  string     `json:"last_error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// TaskListResponse wraps a list of tasks.
type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Count int            `json:"count"`
}

// RequeueResponse reports how many dead-lettered tasks went back to pending.
type RequeueResponse struct {
	Requeued int `json:"requeued"`
}

// DeadLetterListResponse wraps archived entries.
type DeadLetterListResponse struct {
	Entries []deadletter.Entry `json:"entries"`
	Count   int                `json:"count"`
}

// PurgeResponse reports how many archived entries were removed.
type PurgeResponse struct {
	Removed int `json:"removed"`
}

func taskToResponse(t task.Task) TaskResponse {
	resp := TaskResponse{
		ID:         t.ID,
		Type:       t.Type,
		Priority:   t.Priority.String(),
		MaxRetries: t.MaxRetries,
		RetryCount: t.RetryCount,
		Status:     string(t.Status),
		LastError:  t.LastError,
		CreatedAt:  t.CreatedAt,
	}
	if t.HasDeadline() {
		d := t.Deadline
		resp.Deadline = &d
	}
	return resp
}
