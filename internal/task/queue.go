package task

import (
	"container/heap"
	"log/slog"
	"sync"
	"time"
)

// Reasons passed to a DeadLetterHandler.
const (
	DeadLetterReasonExpired          = "expired"
	DeadLetterReasonRetriesExhausted = "retries_exhausted"
)

// DeadLetterHandler is notified, outside the queue lock, of every task the
// queue moves to its dead-letter list. It receives a copy of the task.
type DeadLetterHandler func(t Task, reason string)

// QueueStats is a point-in-time summary of a TaskQueue.
type QueueStats struct {
	Pending      int `json:"pending"`
	InFlight     int `json:"in_flight"`
	DeadLettered int `json:"dead_lettered"`
	Enqueued     int `json:"enqueued_total"`
	Completed    int `json:"completed_total"`
	Retried      int `json:"retried_total"`
}

type deadLetterNotice struct {
	task   Task
	reason string
}

// TaskQueue is an in-memory priority queue with deduplication, deadline
// ordering and bounded retries. All state is guarded by a single mutex.
type TaskQueue struct {
	mu          sync.Mutex
	pending     entryHeap
	seen        map[string]struct{}
	inFlight    map[string]*Task
	deadLetters []*Task
	seq         uint64

	enqueued  int
	completed int
	retried   int

	onDeadLetter DeadLetterHandler
	now          func() time.Time
	logger       *slog.Logger
}

// NewTaskQueue creates an empty task queue.
func NewTaskQueue(logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		seen:     make(map[string]struct{}),
		inFlight: make(map[string]*Task),
		now:      time.Now,
		logger:   logger.With("component", "task_queue"),
	}
}

// SetDeadLetterHandler registers fn to be called for every dead-lettered task.
func (q *TaskQueue) SetDeadLetterHandler(fn DeadLetterHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onDeadLetter = fn
}

// Enqueue adds a task to the queue. It returns false, leaving the queue
// unchanged, when a task with the same ID is already pending or in flight or
// when the task's priority is not a defined level.
func (q *TaskQueue) Enqueue(t *Task) bool {
	if t == nil {
		return false
	}
	if !t.Priority.Valid() {
		q.logger.Warn("task with unknown priority rejected",
			"task_id", t.ID,
			"priority", t.Priority.String())
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.pushLocked(t) {
		q.logger.Debug("duplicate task rejected", "task_id", t.ID)
		return false
	}

	q.logger.Debug("task enqueued",
		"task_id", t.ID,
		"task_type", t.Type,
		"priority", t.Priority.String(),
		"queue_len", len(q.pending))
	return true
}

func (q *TaskQueue) pushLocked(t *Task) bool {
	if _, ok := q.seen[t.ID]; ok {
		return false
	}

	t.Status = TaskStatusPending
	heap.Push(&q.pending, queueEntry{
		priority: t.Priority,
		deadline: t.Deadline,
		seq:      q.seq,
		task:     t,
	})
	q.seq++
	q.seen[t.ID] = struct{}{}
	q.enqueued++
	return true
}

// Dequeue returns the highest-priority task that has not expired and marks it
// in flight. Expired tasks encountered on the way are dead-lettered. It never
// blocks and returns nil when no eligible task is pending.
func (q *TaskQueue) Dequeue() *Task {
	var notices []deadLetterNotice

	q.mu.Lock()
	now := q.now()
	var next *Task
	for q.pending.Len() > 0 {
		e := heap.Pop(&q.pending).(queueEntry)
		t := e.task
		if t.Expired(now) {
			notices = append(notices, q.deadLetterLocked(t, DeadLetterReasonExpired))
			continue
		}
		t.Status = TaskStatusInFlight
		q.inFlight[t.ID] = t
		next = t
		break
	}
	handler := q.onDeadLetter
	q.mu.Unlock()

	q.notify(handler, notices)
	return next
}

// Ack marks an in-flight task completed. It returns false if the task is not
// in flight, which callers should treat as a harmless duplicate.
func (q *TaskQueue) Ack(id string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	t, ok := q.inFlight[id]
	if !ok {
		return false
	}
	delete(q.inFlight, id)
	delete(q.seen, id)
	t.Status = TaskStatusCompleted
	q.completed++

	q.logger.Debug("task acknowledged", "task_id", id)
	return true
}

// Nack reports a failed attempt for an in-flight task. Below the retry budget
// the task is re-enqueued at its original priority and Nack returns true.
// Once the budget is spent the task is dead-lettered and Nack returns false.
// Unknown IDs return false without changing any state.
func (q *TaskQueue) Nack(id string) bool {
	return q.NackWithReason(id, "")
}

// NackWithReason behaves like Nack and records reason as the task's last error.
func (q *TaskQueue) NackWithReason(id, reason string) bool {
	var notices []deadLetterNotice

	q.mu.Lock()
	t, ok := q.inFlight[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	delete(q.inFlight, id)
	t.RetryCount++
	if reason != "" {
		t.LastError = reason
	}

	requeued := false
	if t.RetryCount >= t.MaxRetries {
		notices = append(notices, q.deadLetterLocked(t, DeadLetterReasonRetriesExhausted))
	} else {
		delete(q.seen, id)
		requeued = q.pushLocked(t)
		q.retried++
		q.logger.Debug("task requeued for retry",
			"task_id", id,
			"retry_count", t.RetryCount,
			"max_retries", t.MaxRetries)
	}
	handler := q.onDeadLetter
	q.mu.Unlock()

	q.notify(handler, notices)
	return requeued
}

// RequeueDeadLetters moves every dead-lettered task back to pending with a
// fresh retry budget and returns how many were re-enqueued. The dead-letter
// list is always emptied. A task whose ID is already live in the queue again
// cannot be re-enqueued and is dropped.
func (q *TaskQueue) RequeueDeadLetters() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	count := 0
	for _, t := range q.deadLetters {
		if _, live := q.seen[t.ID]; live {
			q.logger.Warn("dropping dead-lettered task, id already queued",
				"task_id", t.ID,
				"task_type", t.Type)
			continue
		}
		t.RetryCount = 0
		if q.pushLocked(t) {
			count++
		}
	}
	q.deadLetters = nil

	q.logger.Info("requeued dead-lettered tasks", "count", count)
	return count
}

// Len returns the number of pending tasks.
func (q *TaskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}

// InFlight returns the number of tasks currently handed out to workers.
func (q *TaskQueue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.inFlight)
}

// DeadLetters returns a copy of the in-memory dead-letter list.
func (q *TaskQueue) DeadLetters() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]Task, len(q.deadLetters))
	for i, t := range q.deadLetters {
		out[i] = *t
	}
	return out
}

// Stats returns a snapshot of the queue counters.
func (q *TaskQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()

	return QueueStats{
		Pending:      q.pending.Len(),
		InFlight:     len(q.inFlight),
		DeadLettered: len(q.deadLetters),
		Enqueued:     q.enqueued,
		Completed:    q.completed,
		Retried:      q.retried,
	}
}

func (q *TaskQueue) deadLetterLocked(t *Task, reason string) deadLetterNotice {
	delete(q.seen, t.ID)
	t.Status = TaskStatusDeadLetter
	q.deadLetters = append(q.deadLetters, t)

	q.logger.Warn("task dead-lettered",
		"task_id", t.ID,
		"task_type", t.Type,
		"reason", reason,
		"retry_count", t.RetryCount)
	return deadLetterNotice{task: *t, reason: reason}
}

func (q *TaskQueue) notify(handler DeadLetterHandler, notices []deadLetterNotice) {
	if handler == nil {
		return
	}
	for _, n := range notices {
		handler(n.task, n.reason)
	}
}
