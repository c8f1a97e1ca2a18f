package telemetry

import (
	"sync"
	"time"
)

// StatusProvider interface for components that report reconciliation state
type StatusProvider interface {
	// StatusName returns the current reconciliation status name
	StatusName() string

	// KnownStatusNames returns every status the provider can report
	KnownStatusNames() []string
}

// StatusCollector periodically mirrors the reconciler's status into the
// one-hot ReconciliationStatus gauge so the state stays visible between
// triggering events.
type StatusCollector struct {
	provider StatusProvider
	interval time.Duration
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewStatusCollector creates a new status collector
func NewStatusCollector(provider StatusProvider, interval time.Duration) *StatusCollector {
	return &StatusCollector{
		provider: provider,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic collection
func (sc *StatusCollector) Start() {
	sc.wg.Add(1)
	go sc.collectLoop()
}

// Stop stops the collector
func (sc *StatusCollector) Stop() {
	close(sc.stopCh)
	sc.wg.Wait()
}

func (sc *StatusCollector) collectLoop() {
	defer sc.wg.Done()

	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	sc.collect()

	for {
		select {
		case <-ticker.C:
			sc.collect()
		case <-sc.stopCh:
			return
		}
	}
}

func (sc *StatusCollector) collect() {
	if sc.provider == nil {
		return
	}

	current := sc.provider.StatusName()
	for _, name := range sc.provider.KnownStatusNames() {
		if name == current {
			ReconciliationStatus.With(name).Set(1)
		} else {
			ReconciliationStatus.With(name).Set(0)
		}
	}
}
