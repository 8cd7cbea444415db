// Package events broadcasts codec lifecycle events over kelindar/event.
package events

import (
	"github.com/kelindar/event"
)

// Bus wraps kelindar/event dispatcher for event broadcasting
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers. A nil bus drops the event.
// Usage: bus.Publish(EncoderCreatedEvent{...})
func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	// kelindar/event dispatches on the static type, so switch to it
	switch e := ev.(type) {
	case EncoderCreatedEvent:
		event.Publish(b.dispatcher, e)
	case EncoderReconfiguredEvent:
		event.Publish(b.dispatcher, e)
	case EncoderClosedEvent:
		event.Publish(b.dispatcher, e)
	case DecoderCreatedEvent:
		event.Publish(b.dispatcher, e)
	case DecoderClosedEvent:
		event.Publish(b.dispatcher, e)
	case TuningFailedEvent:
		event.Publish(b.dispatcher, e)
	case ProbeCompletedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe subscribes to events with a handler function.
// The handler type determines which events it receives.
// Returns an unsubscribe function.
// Usage: unsub := bus.Subscribe(func(e TuningFailedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(EncoderCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderReconfiguredEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(EncoderClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DecoderCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DecoderClosedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(TuningFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ProbeCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// SubscribeToChannel bridges kelindar/event callback-based subscriptions to channels.
// Events are dropped when the channel is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
