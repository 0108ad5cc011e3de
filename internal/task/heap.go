package task

import "time"

// queueEntry is the ordering key for a pending task.
type queueEntry struct {
	priority Priority
	deadline time.Time // zero sorts after every real deadline
	seq      uint64
	task     *Task
}

func (e queueEntry) less(o queueEntry) bool {
	if e.priority != o.priority {
		return e.priority < o.priority
	}
	switch {
	case e.deadline.IsZero() && !o.deadline.IsZero():
		return false
	case !e.deadline.IsZero() && o.deadline.IsZero():
		return true
	case !e.deadline.Equal(o.deadline):
		return e.deadline.Before(o.deadline)
	}
	return e.seq < o.seq
}

// entryHeap implements heap.Interface as a min-heap of queue entries.
type entryHeap []queueEntry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].less(h[j]) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(queueEntry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = queueEntry{}
	*h = old[:n-1]
	return e
}
