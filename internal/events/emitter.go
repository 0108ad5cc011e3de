package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

type subscription struct {
	// eventType is empty for handlers that receive every event.
	eventType string
	handler   EventHandler
}

// InMemoryEventEmitter dispatches events synchronously to handlers registered
// in memory, in registration order. A handler that panics is reported as a
// failed handler and does not stop delivery to the others.
type InMemoryEventEmitter struct {
	mu            sync.RWMutex
	subscriptions []subscription
	logger        *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler subscribes handler to every event.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.subscribe(subscription{handler: handler})
}

// RegisterHandlerFor subscribes handler to events of one type only.
func (e *InMemoryEventEmitter) RegisterHandlerFor(eventType string, handler EventHandler) {
	e.subscribe(subscription{eventType: eventType, handler: handler})
}

func (e *InMemoryEventEmitter) subscribe(s subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.subscriptions = append(e.subscriptions, s)
	e.logger.Debug("registered event handler",
		"event_type", s.eventType,
		"handler_count", len(e.subscriptions))
}

// HandlerCount returns the number of registered handlers.
func (e *InMemoryEventEmitter) HandlerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscriptions)
}

// EmitEvent delivers event to every matching handler. Failures do not stop
// delivery; all handler errors are joined into the returned error.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	subs := make([]subscription, 0, len(e.subscriptions))
	for _, s := range e.subscriptions {
		if s.eventType == "" || s.eventType == event.Type {
			subs = append(subs, s)
		}
	}
	e.mu.RUnlock()

	log := e.logger.With(
		"event_id", event.ID,
		"event_type", event.Type,
		"task_id", event.TaskID)

	if len(subs) == 0 {
		log.Debug("no handlers registered for event")
		return nil
	}
	log.Debug("emitting event", "handler_count", len(subs))

	var errs []error
	for i, s := range subs {
		if err := deliver(ctx, s.handler, event); err != nil {
			log.Error("handler failed to process event", "error", err, "handler_index", i)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, h EventHandler, event *TaskEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("event handler panicked: %v", r)
		}
	}()
	return h.HandleEvent(ctx, event)
}
