// Package hub fans engine events out to subscribers. Delivery is
// best-effort: a subscriber that cannot drain its queue is dropped
// rather than allowed to stall the engine's write path.
package hub

import (
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/luckywheel/internal/engine"
)

// DefaultQueueSize bounds each subscriber's event queue.
const DefaultQueueSize = 64

// Subscription is one consumer's view of the event stream.
type Subscription struct {
	hub    *Hub
	userID string
	topics map[engine.EventType]bool
	ch     chan engine.Event
	closed bool
}

// Events returns the subscriber's event channel. It is closed when the
// subscription ends, either by Close or by the hub dropping a slow
// consumer.
func (s *Subscription) Events() <-chan engine.Event { return s.ch }

// Close ends the subscription.
func (s *Subscription) Close() { s.hub.unsubscribe(s) }

func (s *Subscription) wants(ev engine.Event) bool {
	if len(s.topics) > 0 && !s.topics[ev.EventType()] {
		return false
	}
	// Balance updates are user-scoped, never broadcast to other users.
	if b, ok := ev.(engine.BalanceUpdateEvent); ok {
		return s.userID != "" && b.UserID == s.userID
	}
	return true
}

// Hub routes engine events to subscribers. Publish never blocks.
type Hub struct {
	logger    *log.Logger
	queueSize int

	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	snapshot func() []engine.Event
}

// New creates a hub. queueSize <= 0 uses DefaultQueueSize.
func New(logger *log.Logger, queueSize int) *Hub {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Hub{
		logger:    logger.WithPrefix("hub"),
		queueSize: queueSize,
		subs:      make(map[*Subscription]struct{}),
	}
}

// SetSnapshot installs the function that produces the catch-up events a
// new subscriber receives before any live traffic.
func (h *Hub) SetSnapshot(fn func() []engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.snapshot = fn
}

// Subscribe registers a consumer. userID scopes delivery of per-user
// events; topics restricts delivery to the named event types, with none
// meaning all. The snapshot events are queued first so the subscriber
// sees current state before incremental updates.
func (h *Hub) Subscribe(userID string, topics ...engine.EventType) *Subscription {
	sub := &Subscription{
		hub:    h,
		userID: userID,
		topics: make(map[engine.EventType]bool, len(topics)),
		ch:     make(chan engine.Event, h.queueSize),
	}
	for _, t := range topics {
		sub.topics[t] = true
	}

	h.mu.Lock()
	snapshot := h.snapshot
	h.mu.Unlock()

	// The snapshot producer takes its own locks and publishes to this hub
	// under them, so it must run without h.mu held: holding it here would
	// invert the producer's lock order and deadlock against Publish.
	if snapshot != nil {
		for _, ev := range snapshot() {
			if sub.wants(ev) {
				select {
				case sub.ch <- ev:
				default:
				}
			}
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.subs[sub] = struct{}{}
	return sub
}

func (h *Hub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropLocked(sub)
}

func (h *Hub) dropLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(h.subs, sub)
	close(sub.ch)
}

// Publish implements engine.Publisher. A subscriber whose queue is full
// is dropped; it can resubscribe and receive a fresh snapshot.
func (h *Hub) Publish(ev engine.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.wants(ev) {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			h.logger.Warn("dropping slow subscriber", "user", sub.userID, "event", ev.EventType())
			h.dropLocked(sub)
		}
	}
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
