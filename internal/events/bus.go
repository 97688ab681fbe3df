package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for in-process event broadcasting.
// Delivery is asynchronous; publishers never wait on subscribers.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers.
// A nil bus drops the event, so components can run without one.
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	switch e := ev.(type) {
	case ActuationEvent:
		event.Publish(b.dispatcher, e)
	case RecipientChangedEvent:
		event.Publish(b.dispatcher, e)
	case SendFailedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e ActuationEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	if b == nil {
		return func() {}
	}
	switch h := handler.(type) {
	case func(ActuationEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RecipientChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(SendFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
