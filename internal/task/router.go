package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Router dispatches tasks to handlers registered by task type.
type Router struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRouter creates a router with no registered handlers.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]Handler)}
}

// Register binds h to taskType, replacing any previous binding.
func (r *Router) Register(taskType string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = h
}

// Has reports whether a handler is registered for taskType.
func (r *Router) Has(taskType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[taskType]
	return ok
}

// Types returns the registered task types in sorted order.
func (r *Router) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}

// Handle satisfies Handler by delegating to the handler for t.Type.
func (r *Router) Handle(ctx context.Context, t *Task) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[t.Type]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoHandler, t.Type)
	}
	return h(ctx, t)
}
