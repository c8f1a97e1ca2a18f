package orchestrator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/canonical/elasticsearch-k8s-operator/notify"
	"github.com/canonical/elasticsearch-k8s-operator/telemetry"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
)

// TopologyEvent is the JSON document the orchestration layer publishes
// whenever the peer group changes: the peer count (excluding the
// receiving unit), the currently elected leader unit, and the ingress
// address of the peer group.
type TopologyEvent struct {
	Peers      int    `json:"peers"`
	LeaderUnit string `json:"leader_unit"`
	Ingress    string `json:"ingress"`
}

// Watcher subscribes to the orchestration layer's topology subject and
// maintains the last received snapshot. It is the external membership
// source and leadership oracle for the reconciler: until the first
// event arrives it reports zero peers and non-leader, so a freshly
// started replica never mutates shared state.
type Watcher struct {
	selfIdentity string

	nc  *nats.Conn
	sub *nats.Subscription
	hub *notify.Hub

	mu   sync.RWMutex
	last TopologyEvent
	seen bool
}

// NewWatcher connects to NATS and creates a topology watcher for the
// unit with the given identity. The connection retries forever; a bus
// outage only delays events, it never fails the process.
func NewWatcher(natsURL, selfIdentity string, hub *notify.Hub) (*Watcher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Watcher{
		selfIdentity: selfIdentity,
		nc:           nc,
		hub:          hub,
	}, nil
}

// Subscribe starts consuming topology events from the given subject
func (w *Watcher) Subscribe(subject string) error {
	sub, err := w.nc.Subscribe(subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	w.sub = sub

	log.Info().Str("subject", subject).Msg("Watching orchestrator topology")
	return nil
}

func (w *Watcher) handleMessage(msg *nats.Msg) {
	var event TopologyEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		// A malformed event is dropped; the next snapshot supersedes it
		log.Warn().Err(err).Msg("Dropping malformed topology event")
		return
	}
	if event.Peers < 0 {
		log.Warn().Int("peers", event.Peers).Msg("Dropping topology event with negative peer count")
		return
	}

	telemetry.TopologyEventsTotal.Inc()

	w.mu.Lock()
	previous := w.last
	seenBefore := w.seen
	w.last = event
	w.seen = true
	w.mu.Unlock()

	log.Debug().
		Int("peers", event.Peers).
		Str("leader_unit", event.LeaderUnit).
		Str("ingress", event.Ingress).
		Msg("Topology event received")

	if w.hub == nil {
		return
	}
	if !seenBefore || event.Peers > previous.Peers {
		w.hub.Signal(notify.TriggerPeerJoined)
	} else {
		w.hub.Signal(notify.TriggerPeerChanged)
	}
}

// PeerCount implements reconciler.MemberSource
func (w *Watcher) PeerCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last.Peers
}

// SelfIdentity implements reconciler.MemberSource
func (w *Watcher) SelfIdentity() string {
	return w.selfIdentity
}

// IsLeader implements the leadership oracle. True only when the
// orchestration layer has named this unit as the elected leader.
func (w *Watcher) IsLeader() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.seen && w.last.LeaderUnit == w.selfIdentity
}

// IngressAddress returns the last announced peer-group ingress address
func (w *Watcher) IngressAddress() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.last.Ingress
}

// Close drains the subscription and closes the NATS connection
func (w *Watcher) Close() {
	if w.sub != nil {
		if err := w.sub.Unsubscribe(); err != nil {
			log.Warn().Err(err).Msg("Failed to unsubscribe from topology subject")
		}
	}
	if w.nc != nil {
		w.nc.Close()
	}
}
