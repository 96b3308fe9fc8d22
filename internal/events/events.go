// Package events provides the in-process event bus that decouples the
// offline queues from their triggers.
//
// Three event types flow through the bus: connectivity transitions, audio
// segments completing normalization, and action-queue flush summaries. The
// bus fans every published event out to all current subscribers; a
// subscriber that is not draining its channel loses events rather than
// blocking the publisher.
package events

import (
	"log/slog"
	"sync"
	"time"
)

// ConnectionChanged is published when the connectivity probe observes a
// transition between online and offline.
type ConnectionChanged struct {
	Online bool
	At     time.Time
}

// AudioProcessed is published when a queued audio segment completed the
// normalization pipeline and produced a draft record.
type AudioProcessed struct {
	AudioID string
	DraftID string
}

// ActionsFlushed is published after an action-queue flush pass with the
// per-pass delivery totals.
type ActionsFlushed struct {
	Delivered int
	Dropped   int
}

// Event is the union of all bus event types.
type Event interface {
	isEvent()
}

func (ConnectionChanged) isEvent() {}
func (AudioProcessed) isEvent()    {}
func (ActionsFlushed) isEvent()    {}

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 16

// Bus is a fan-out event bus. The zero value is not usable; construct with
// [NewBus]. Safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan Event
	logger *slog.Logger
}

// NewBus returns an empty [Bus].
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: slog.Default(),
	}
}

// Subscribe registers a new subscriber and returns its receive channel plus
// an unsubscribe function. The channel is closed on unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, unsubscribe
}

// Publish delivers ev to every current subscriber. A subscriber whose
// buffer is full misses the event.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("event subscriber buffer full, dropping event",
				"subscriber", id, "event", ev)
		}
	}
}
