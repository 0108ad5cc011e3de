package task

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a task
type TaskStatus string

// Possible task status values
const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInFlight   TaskStatus = "in_flight"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusDeadLetter TaskStatus = "dead_letter"
)

// Priority orders tasks in the queue. Lower values are dequeued first.
type Priority int

// Priority levels
const (
	PriorityCritical   Priority = 0
	PriorityHigh       Priority = 1
	PriorityNormal     Priority = 2
	PriorityLow        Priority = 3
	PriorityBackground Priority = 4
)

// DefaultMaxRetries is the retry budget applied when none is given.
const DefaultMaxRetries = 3

var priorityNames = map[Priority]string{
	PriorityCritical:   "critical",
	PriorityHigh:       "high",
	PriorityNormal:     "normal",
	PriorityLow:        "low",
	PriorityBackground: "background",
}

func (p Priority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Valid reports whether p is one of the defined priority levels.
func (p Priority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

// ParsePriority converts a case-insensitive priority name to a Priority.
func ParsePriority(name string) (Priority, error) {
	for p, n := range priorityNames {
		if strings.EqualFold(n, name) {
			return p, nil
		}
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", name)
}

// Task represents a unit of work owned by a TaskQueue while it is pending or
// in flight. Status, RetryCount and LastError are only mutated by the queue.
type Task struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Payload    map[string]any `json:"payload"`
	Priority   Priority       `json:"priority"`
	Deadline   time.Time      `json:"deadline,omitempty"`
	MaxRetries int            `json:"max_retries"`
	RetryCount int            `json:"retry_count"`
	Status     TaskStatus     `json:"status"`
	LastError  string         `json:"last_error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Option configures a Task built by NewTask.
type Option func(*Task)

// WithID overrides the generated identifier.
func WithID(id string) Option {
	return func(t *Task) {
		if id != "" {
			t.ID = id
		}
	}
}

// WithPriority sets the task priority.
func WithPriority(p Priority) Option {
	return func(t *Task) {
		t.Priority = p
	}
}

// WithDeadline sets the time after which the task is no longer handed out.
func WithDeadline(deadline time.Time) Option {
	return func(t *Task) {
		t.Deadline = deadline
	}
}

// WithMaxRetries sets the retry budget. Negative values are ignored.
func WithMaxRetries(n int) Option {
	return func(t *Task) {
		if n >= 0 {
			t.MaxRetries = n
		}
	}
}

// NewTask creates a pending task of the given type with a generated ID,
// normal priority, no deadline and the default retry budget.
func NewTask(taskType string, payload map[string]any, opts ...Option) *Task {
	if payload == nil {
		payload = map[string]any{}
	}

	t := &Task{
		ID:         NewID(),
		Type:       taskType,
		Payload:    payload,
		Priority:   PriorityNormal,
		MaxRetries: DefaultMaxRetries,
		Status:     TaskStatusPending,
		CreatedAt:  time.Now().UTC(),
	}
	for _, opt := range opts {
		opt(t)
	}

	return t
}

// NewID returns a task identifier of the form "task-" followed by ten hex characters.
func NewID() string {
	return "task-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
}

// HasDeadline reports whether the task carries a deadline.
func (t *Task) HasDeadline() bool {
	return !t.Deadline.IsZero()
}

// Expired reports whether the task's deadline has passed at now.
func (t *Task) Expired(now time.Time) bool {
	return t.HasDeadline() && now.After(t.Deadline)
}
