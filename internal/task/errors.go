package task

import "errors"

// Errors reported in failed TaskResults.
var (
	ErrTaskTimeout = errors.New("task timed out")
	ErrTaskPanic   = errors.New("task handler panicked")
	ErrNoHandler   = errors.New("no handler registered for task type")
	ErrNilTask     = errors.New("nil task")
)
