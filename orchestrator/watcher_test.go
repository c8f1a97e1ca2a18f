package orchestrator

import (
	"testing"
	"time"

	"github.com/canonical/elasticsearch-k8s-operator/notify"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestWatcher builds a watcher without a live NATS connection;
// handleMessage is exercised directly.
func newTestWatcher(hub *notify.Hub) *Watcher {
	return &Watcher{
		selfIdentity: "elasticsearch-0",
		hub:          hub,
	}
}

func deliver(w *Watcher, payload string) {
	w.handleMessage(&nats.Msg{Data: []byte(payload)})
}

func expectTrigger(t *testing.T, triggers <-chan notify.Trigger, want notify.Trigger) {
	t.Helper()
	select {
	case got := <-triggers:
		assert.Equal(t, want, got)
	case <-time.After(100 * time.Millisecond):
		t.Fatalf("timeout waiting for %s trigger", want)
	}
}

func TestWatcher_DefaultsBeforeFirstEvent(t *testing.T) {
	w := newTestWatcher(nil)

	assert.Equal(t, 0, w.PeerCount())
	assert.False(t, w.IsLeader())
	assert.Empty(t, w.IngressAddress())
	assert.Equal(t, "elasticsearch-0", w.SelfIdentity())
}

func TestWatcher_AppliesTopologyEvent(t *testing.T) {
	w := newTestWatcher(nil)

	deliver(w, `{"peers":2,"leader_unit":"elasticsearch-0","ingress":"10.0.0.5"}`)

	assert.Equal(t, 2, w.PeerCount())
	assert.True(t, w.IsLeader())
	assert.Equal(t, "10.0.0.5", w.IngressAddress())
}

func TestWatcher_LeadershipFollowsAnnouncement(t *testing.T) {
	w := newTestWatcher(nil)

	deliver(w, `{"peers":2,"leader_unit":"elasticsearch-1"}`)
	assert.False(t, w.IsLeader())

	deliver(w, `{"peers":2,"leader_unit":"elasticsearch-0"}`)
	assert.True(t, w.IsLeader())
}

func TestWatcher_SignalsPeerJoinedOnGrowth(t *testing.T) {
	hub := notify.NewHub()
	triggers, cancel := hub.Subscribe()
	defer cancel()

	w := newTestWatcher(hub)

	deliver(w, `{"peers":1,"leader_unit":"elasticsearch-0"}`)
	expectTrigger(t, triggers, notify.TriggerPeerJoined)

	deliver(w, `{"peers":2,"leader_unit":"elasticsearch-0"}`)
	expectTrigger(t, triggers, notify.TriggerPeerJoined)
}

func TestWatcher_SignalsPeerChangedOtherwise(t *testing.T) {
	hub := notify.NewHub()
	triggers, cancel := hub.Subscribe()
	defer cancel()

	w := newTestWatcher(hub)

	deliver(w, `{"peers":2,"leader_unit":"elasticsearch-0"}`)
	expectTrigger(t, triggers, notify.TriggerPeerJoined)

	// Same peer count, new leader: attribute change
	deliver(w, `{"peers":2,"leader_unit":"elasticsearch-1"}`)
	expectTrigger(t, triggers, notify.TriggerPeerChanged)

	// Shrinking membership is a change, not a join
	deliver(w, `{"peers":1,"leader_unit":"elasticsearch-1"}`)
	expectTrigger(t, triggers, notify.TriggerPeerChanged)
}

func TestWatcher_DropsMalformedEvent(t *testing.T) {
	hub := notify.NewHub()
	triggers, cancel := hub.Subscribe()
	defer cancel()

	w := newTestWatcher(hub)
	deliver(w, `{"peers":2,"leader_unit":"elasticsearch-0"}`)
	expectTrigger(t, triggers, notify.TriggerPeerJoined)

	deliver(w, `{not json`)

	// State unchanged, no trigger emitted
	assert.Equal(t, 2, w.PeerCount())
	select {
	case trig := <-triggers:
		t.Fatalf("unexpected trigger %s for malformed event", trig)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_DropsNegativePeerCount(t *testing.T) {
	w := newTestWatcher(nil)

	deliver(w, `{"peers":3,"leader_unit":"elasticsearch-0"}`)
	require.Equal(t, 3, w.PeerCount())

	deliver(w, `{"peers":-1,"leader_unit":"elasticsearch-0"}`)
	assert.Equal(t, 3, w.PeerCount())
}
