package notify

import (
	"sync"
	"sync/atomic"
)

// Trigger identifies what prompted a reconciliation pass
type Trigger string

const (
	TriggerPeerJoined  Trigger = "peer-joined"
	TriggerPeerChanged Trigger = "peer-changed"
	TriggerHealthTick  Trigger = "health-tick"
)

// defaultSignalBufferSize is the buffer size for trigger channels.
// Reconciliation is level-triggered (every pass recomputes full state),
// so subscribers that can't keep up simply have signals dropped
// (non-blocking send) and catch up on the next one.
const defaultSignalBufferSize = 16

// subscription represents a single subscriber.
type subscription struct {
	id     uint64
	ch     chan Trigger
	closed atomic.Bool
}

// close closes the subscription channel if not already closed.
func (s *subscription) close() {
	if s.closed.CompareAndSwap(false, true) {
		close(s.ch)
	}
}

// Hub fans reconciliation triggers out to subscribers. Thread-safe.
// The event loop is normally the only subscriber; the hub exists so the
// NATS watcher and the periodic health ticker can both signal it
// without knowing about each other.
type Hub struct {
	mu            sync.RWMutex
	subscriptions map[uint64]*subscription
	nextID        atomic.Uint64
}

// NewHub creates a new trigger hub.
func NewHub() *Hub {
	return &Hub{
		subscriptions: make(map[uint64]*subscription),
	}
}

// Signal sends a trigger to all subscribers (non-blocking).
func (h *Hub) Signal(trigger Trigger) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscriptions {
		// Non-blocking send - drop if buffer full
		select {
		case sub.ch <- trigger:
		default:
			// Buffer full, skip this subscriber
		}
	}
}

// Subscribe creates a new subscription and returns the trigger channel and cancel function.
// The returned channel is buffered. If the subscriber cannot keep up with the signal rate,
// triggers will be dropped silently by Signal(). The cancel function is idempotent.
func (h *Hub) Subscribe() (<-chan Trigger, func()) {
	sub := &subscription{
		id: h.nextID.Add(1),
		ch: make(chan Trigger, defaultSignalBufferSize),
	}

	h.mu.Lock()
	h.subscriptions[sub.id] = sub
	h.mu.Unlock()

	cancel := func() {
		h.unsubscribe(sub.id)
	}

	return sub.ch, cancel
}

// unsubscribe removes a subscription and closes its channel.
func (h *Hub) unsubscribe(id uint64) {
	h.mu.Lock()
	sub, ok := h.subscriptions[id]
	if ok {
		delete(h.subscriptions, id)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
	}
}
