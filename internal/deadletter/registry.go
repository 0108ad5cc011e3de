package deadletter

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry maps operation names to the functions that can replay them.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]ReplayFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{fns: make(map[string]ReplayFunc)}
}

// Register binds fn to operation, replacing any previous binding.
func (r *Registry) Register(operation string, fn ReplayFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns[operation] = fn
}

// Operations returns the registered operation names in sorted order.
func (r *Registry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ops := make([]string, 0, len(r.fns))
	for op := range r.fns {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Replay satisfies ReplayFunc by dispatching on the operation name.
func (r *Registry) Replay(ctx context.Context, operation string, args map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.fns[operation]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoReplayFunc, operation)
	}
	return fn(ctx, operation, args)
}
