// Package bus is the process-wide event dispatcher. All components publish
// and consume events through a single Bus; handlers run synchronously on the
// goroutine that emitted the event, in registration order.
package bus

import (
	"log/slog"
	"sync"
)

// Handler is a callback for events.
type Handler func(Event)

type subscriber struct {
	id        uint64
	eventType string // empty = all events
	fn        Handler
}

// Bus provides pub/sub for system events. Unlike a map-keyed registry,
// subscribers are kept in a slice so that delivery order is exactly
// registration order.
type Bus struct {
	mu     sync.Mutex
	subs   []subscriber
	nextID uint64
	logger *slog.Logger
}

// New creates a new event bus.
func New(logger *slog.Logger) *Bus {
	return &Bus{logger: logger}
}

// On registers a handler for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) On(eventType string, fn Handler) func() {
	return b.subscribe(eventType, fn)
}

// OnAll registers a handler that receives all events.
// Returns an unsubscribe function.
func (b *Bus) OnAll(fn Handler) func() {
	return b.subscribe("", fn)
}

func (b *Bus) subscribe(eventType string, fn Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber{id: id, eventType: eventType, fn: fn})
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers an event to all matching handlers in registration order.
// Handlers are called synchronously; a panicking handler is recovered.
func (b *Bus) Emit(event Event) {
	b.mu.Lock()
	matched := make([]Handler, 0, len(b.subs))
	for _, s := range b.subs {
		if s.eventType == "" || s.eventType == event.Type {
			matched = append(matched, s.fn)
		}
	}
	b.mu.Unlock()

	for _, fn := range matched {
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("event handler panic", "type", event.Type, "panic", r)
				}
			}()
			fn(event)
		}()
	}
}
