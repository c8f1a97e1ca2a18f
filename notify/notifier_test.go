package notify

import (
	"sync"
	"testing"
	"time"
)

func TestHub_BasicSubscribeSignal(t *testing.T) {
	hub := NewHub()

	triggers, cancel := hub.Subscribe()
	defer cancel()

	hub.Signal(TriggerPeerJoined)

	select {
	case trig := <-triggers:
		if trig != TriggerPeerJoined {
			t.Errorf("expected %s, got %s", TriggerPeerJoined, trig)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for trigger")
	}
}

func TestHub_MultipleSubscribers(t *testing.T) {
	hub := NewHub()

	triggers1, cancel1 := hub.Subscribe()
	defer cancel1()
	triggers2, cancel2 := hub.Subscribe()
	defer cancel2()

	hub.Signal(TriggerHealthTick)

	for i, triggers := range []<-chan Trigger{triggers1, triggers2} {
		select {
		case trig := <-triggers:
			if trig != TriggerHealthTick {
				t.Errorf("subscriber %d: expected %s, got %s", i+1, TriggerHealthTick, trig)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("timeout on subscriber %d", i+1)
		}
	}
}

func TestHub_CancelUnsubscribes(t *testing.T) {
	hub := NewHub()

	triggers, cancel := hub.Subscribe()

	// Send trigger before cancel
	hub.Signal(TriggerPeerChanged)

	select {
	case <-triggers:
		// Expected
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for trigger")
	}

	// Cancel subscription
	cancel()

	// Channel should be closed
	select {
	case _, ok := <-triggers:
		if ok {
			t.Error("channel should be closed after cancel")
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timeout waiting for channel close")
	}

	// Subsequent triggers should not panic
	hub.Signal(TriggerPeerChanged)
}

func TestHub_ConcurrentSignalSubscribe(t *testing.T) {
	hub := NewHub()
	const numGoroutines = 10
	const numSignals = 100

	var wg sync.WaitGroup

	// Start goroutines that subscribe and receive triggers
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()

			triggers, cancel := hub.Subscribe()
			defer cancel()

			received := 0
			timeout := time.After(2 * time.Second)
			for received < numSignals {
				select {
				case <-triggers:
					received++
				case <-timeout:
					return
				}
			}
		}(i)
	}

	// Start goroutine that sends triggers
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < numSignals; i++ {
			hub.Signal(TriggerHealthTick)
		}
	}()

	wg.Wait()
}

func TestHub_BufferOverflowNonBlocking(t *testing.T) {
	hub := NewHub()

	triggers, cancel := hub.Subscribe()
	defer cancel()

	// Fill the buffer (16) and send more
	for i := 0; i < 20; i++ {
		hub.Signal(TriggerPeerJoined)
	}

	// Should receive at least 16 triggers without blocking; dropped
	// ones are safe because reconciliation is level-triggered
	received := 0
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case <-triggers:
			received++
		case <-timeout:
			if received < 16 {
				t.Errorf("expected at least 16 triggers, got %d", received)
			}
			return
		}
	}
}

func TestHub_SignalBeforeSubscribe(t *testing.T) {
	hub := NewHub()

	// Send trigger before any subscription
	hub.Signal(TriggerPeerJoined)

	// Should not panic
	triggers, cancel := hub.Subscribe()
	defer cancel()

	// Should not receive the old trigger
	select {
	case trig := <-triggers:
		t.Errorf("should not receive old trigger, got %s", trig)
	case <-time.After(50 * time.Millisecond):
		// Expected
	}
}

func TestHub_DoubleCancel(t *testing.T) {
	hub := NewHub()

	_, cancel := hub.Subscribe()

	// First cancel
	cancel()

	// Second cancel should not panic
	cancel()
}

func TestHub_UniqueSubscriptionIDs(t *testing.T) {
	hub := NewHub()

	// Create multiple subscriptions and verify unique IDs
	const numSubs = 100
	cancels := make([]func(), numSubs)

	for i := 0; i < numSubs; i++ {
		_, cancel := hub.Subscribe()
		cancels[i] = cancel
	}

	// All subscriptions should have unique IDs
	if len(hub.subscriptions) != numSubs {
		t.Errorf("expected %d subscriptions, got %d", numSubs, len(hub.subscriptions))
	}

	// Cleanup
	for _, cancel := range cancels {
		cancel()
	}

	// All subscriptions should be removed
	if len(hub.subscriptions) != 0 {
		t.Errorf("expected 0 subscriptions after cancel, got %d", len(hub.subscriptions))
	}
}
