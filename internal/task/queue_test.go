package task

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestLogger creates a logger that discards output
func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func drainIDs(q *TaskQueue) []string {
	var ids []string
	for t := q.Dequeue(); t != nil; t = q.Dequeue() {
		ids = append(ids, t.ID)
	}
	return ids
}

func TestTaskQueue_Ordering(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	now := time.Now()

	tasks := []*Task{
		NewTask("t", nil, WithID("low"), WithPriority(PriorityLow)),
		NewTask("t", nil, WithID("crit-1"), WithPriority(PriorityCritical)),
		NewTask("t", nil, WithID("normal-late"), WithDeadline(now.Add(2*time.Hour))),
		NewTask("t", nil, WithID("normal-soon"), WithDeadline(now.Add(time.Hour))),
		NewTask("t", nil, WithID("normal-1")),
		NewTask("t", nil, WithID("normal-2")),
		NewTask("t", nil, WithID("background"), WithPriority(PriorityBackground)),
		NewTask("t", nil, WithID("crit-2"), WithPriority(PriorityCritical)),
		NewTask("t", nil, WithID("high"), WithPriority(PriorityHigh)),
		NewTask("t", nil, WithID("normal-3")),
	}
	for _, task := range tasks {
		require.True(t, q.Enqueue(task))
	}

	want := []string{
		"crit-1", "crit-2",
		"high",
		"normal-soon", "normal-late", "normal-1", "normal-2", "normal-3",
		"low",
		"background",
	}
	if diff := cmp.Diff(want, drainIDs(q)); diff != "" {
		t.Errorf("dequeue order mismatch (-want +got):\n%s", diff)
	}
}

func TestTaskQueue_FIFOWithinPriority(t *testing.T) {
	deadline := time.Now().Add(time.Hour)

	tests := []struct {
		name string
		opts []Option
	}{
		{name: "no deadline", opts: []Option{WithPriority(PriorityNormal)}},
		{name: "same deadline", opts: []Option{WithPriority(PriorityHigh), WithDeadline(deadline)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := NewTaskQueue(setupTestLogger())

			var want []string
			for i := 0; i < 50; i++ {
				task := NewTask("t", nil, tc.opts...)
				want = append(want, task.ID)
				require.True(t, q.Enqueue(task))
			}

			assert.Equal(t, want, drainIDs(q))
		})
	}
}

func TestTaskQueue_Dedup(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	task := NewTask("email", map[string]any{"to": "a@example.com"})

	assert.True(t, q.Enqueue(task))
	assert.False(t, q.Enqueue(task))
	assert.False(t, q.Enqueue(NewTask("email", nil, WithID(task.ID))))
	assert.Equal(t, 1, q.Len())

	// Still deduplicated while in flight
	got := q.Dequeue()
	require.NotNil(t, got)
	assert.False(t, q.Enqueue(NewTask("email", nil, WithID(task.ID))))
	assert.Equal(t, 0, q.Len())

	// A completed ID may be submitted again
	require.True(t, q.Ack(task.ID))
	assert.True(t, q.Enqueue(NewTask("email", nil, WithID(task.ID))))
}

func TestTaskQueue_EnqueueNil(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	assert.False(t, q.Enqueue(nil))
}

func TestTaskQueue_EnqueueUnknownPriority(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	task := NewTask("t", nil, WithPriority(Priority(9)))

	assert.False(t, q.Enqueue(task))
	assert.Equal(t, 0, q.Len())
	// The ID was never recorded, so a corrected task is accepted
	assert.True(t, q.Enqueue(NewTask("t", nil, WithID(task.ID))))
}

func TestTaskQueue_DequeueEmpty(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	assert.Nil(t, q.Dequeue())
}

func TestTaskQueue_ExpiredTasksAreDeadLettered(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())

	var notified []string
	var reasons []string
	q.SetDeadLetterHandler(func(task Task, reason string) {
		notified = append(notified, task.ID)
		reasons = append(reasons, reason)
	})

	expired := NewTask("t", nil, WithID("expired"), WithPriority(PriorityCritical),
		WithDeadline(time.Now().Add(-time.Minute)))
	live := NewTask("t", nil, WithID("live"), WithPriority(PriorityLow))
	require.True(t, q.Enqueue(expired))
	require.True(t, q.Enqueue(live))

	got := q.Dequeue()
	require.NotNil(t, got)
	assert.Equal(t, "live", got.ID)
	assert.Equal(t, TaskStatusInFlight, got.Status)

	dead := q.DeadLetters()
	require.Len(t, dead, 1)
	assert.Equal(t, "expired", dead[0].ID)
	assert.Equal(t, TaskStatusDeadLetter, dead[0].Status)
	assert.Equal(t, []string{"expired"}, notified)
	assert.Equal(t, []string{DeadLetterReasonExpired}, reasons)
}

func TestTaskQueue_ExpiryUsesQueueClock(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	q.now = func() time.Time { return base }

	require.True(t, q.Enqueue(NewTask("t", nil, WithID("at-deadline"), WithDeadline(base))))
	require.True(t, q.Enqueue(NewTask("t", nil, WithID("past"), WithDeadline(base.Add(-time.Nanosecond)))))

	got := q.Dequeue()
	require.NotNil(t, got)
	assert.Equal(t, "at-deadline", got.ID, "a deadline equal to now has not passed yet")
	assert.Nil(t, q.Dequeue())
	assert.Len(t, q.DeadLetters(), 1)
}

func TestTaskQueue_NackRetryBudget(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())

	var reasons []string
	q.SetDeadLetterHandler(func(task Task, reason string) {
		reasons = append(reasons, reason)
	})

	task := NewTask("t", nil, WithMaxRetries(3))
	require.True(t, q.Enqueue(task))

	for attempt := 1; attempt <= 2; attempt++ {
		got := q.Dequeue()
		require.NotNil(t, got, "attempt %d", attempt)
		assert.True(t, q.NackWithReason(got.ID, fmt.Sprintf("failure %d", attempt)))
		assert.Equal(t, attempt, got.RetryCount)
		assert.Equal(t, TaskStatusPending, got.Status)
		assert.Equal(t, 1, q.Len())
	}

	got := q.Dequeue()
	require.NotNil(t, got)
	assert.False(t, q.Nack(got.ID))
	assert.Equal(t, TaskStatusDeadLetter, got.Status)
	assert.Equal(t, "failure 2", got.LastError)

	assert.Nil(t, q.Dequeue())
	assert.Equal(t, 0, q.InFlight())
	assert.Len(t, q.DeadLetters(), 1)
	assert.Equal(t, []string{DeadLetterReasonRetriesExhausted}, reasons)
}

func TestTaskQueue_NackKeepsPriority(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())

	retried := NewTask("t", nil, WithID("retried"), WithPriority(PriorityHigh))
	require.True(t, q.Enqueue(retried))
	require.True(t, q.Enqueue(NewTask("t", nil, WithID("normal"))))

	got := q.Dequeue()
	require.Equal(t, "retried", got.ID)
	require.True(t, q.Nack(got.ID))

	assert.Equal(t, []string{"retried", "normal"}, drainIDs(q))
}

func TestTaskQueue_UnknownAckNack(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	task := NewTask("t", nil)
	require.True(t, q.Enqueue(task))
	before := q.Stats()

	assert.False(t, q.Ack("task-unknown"))
	assert.False(t, q.Nack("task-unknown"))
	// Pending but not in flight
	assert.False(t, q.Ack(task.ID))
	assert.False(t, q.Nack(task.ID))

	assert.Equal(t, before, q.Stats())
}

func TestTaskQueue_DuplicateAck(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	task := NewTask("t", nil)
	require.True(t, q.Enqueue(task))
	require.NotNil(t, q.Dequeue())

	assert.True(t, q.Ack(task.ID))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.False(t, q.Ack(task.ID))
	assert.False(t, q.Nack(task.ID))
}

func TestTaskQueue_RequeueDeadLetters(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())

	for i := 0; i < 3; i++ {
		require.True(t, q.Enqueue(NewTask("t", nil, WithID(fmt.Sprintf("task-%d", i)), WithMaxRetries(1))))
	}
	for got := q.Dequeue(); got != nil; got = q.Dequeue() {
		require.False(t, q.Nack(got.ID))
	}
	require.Len(t, q.DeadLetters(), 3)

	assert.Equal(t, 3, q.RequeueDeadLetters())
	assert.Empty(t, q.DeadLetters())
	assert.Equal(t, 3, q.Len())

	got := q.Dequeue()
	require.NotNil(t, got)
	assert.Equal(t, 0, got.RetryCount)
	assert.Equal(t, TaskStatusInFlight, got.Status)
}

func TestTaskQueue_RequeueDeadLettersDropsCollisions(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())

	require.True(t, q.Enqueue(NewTask("t", nil, WithID("dup"), WithMaxRetries(1))))
	require.True(t, q.Enqueue(NewTask("t", nil, WithID("other"), WithMaxRetries(1))))
	for got := q.Dequeue(); got != nil; got = q.Dequeue() {
		require.False(t, q.Nack(got.ID))
	}

	// The producer resubmits one of the IDs before the operator requeues.
	require.True(t, q.Enqueue(NewTask("t", nil, WithID("dup"))))

	assert.Equal(t, 1, q.RequeueDeadLetters())
	assert.Empty(t, q.DeadLetters())
	assert.Equal(t, 2, q.Len())
}

func TestTaskQueue_Stats(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())
	a := NewTask("t", nil)
	b := NewTask("t", nil, WithMaxRetries(1))
	require.True(t, q.Enqueue(a))
	require.True(t, q.Enqueue(b))
	require.True(t, q.Enqueue(NewTask("t", nil)))

	q.Dequeue()
	q.Dequeue()
	q.Ack(a.ID)
	q.Nack(b.ID)

	assert.Equal(t, QueueStats{
		Pending:      1,
		InFlight:     0,
		DeadLettered: 1,
		Enqueued:     3,
		Completed:    1,
		Retried:      0,
	}, q.Stats())
}

func TestTaskQueue_ConcurrentProducersAndConsumers(t *testing.T) {
	q := NewTaskQueue(setupTestLogger())

	const producers = 8
	const perProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Enqueue(NewTask("t", nil, WithID(fmt.Sprintf("p%d-%d", p, i)),
					WithPriority(Priority(i%5))))
			}
		}(p)
	}
	wg.Wait()

	var mu sync.Mutex
	seen := make(map[string]int)
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for got := q.Dequeue(); got != nil; got = q.Dequeue() {
				mu.Lock()
				seen[got.ID]++
				mu.Unlock()
				q.Ack(got.ID)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, producers*perProducer)
	for id, n := range seen {
		assert.Equal(t, 1, n, "task %s delivered more than once", id)
	}
	assert.Equal(t, producers*perProducer, q.Stats().Completed)
}
