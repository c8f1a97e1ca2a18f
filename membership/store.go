package membership

import (
	"fmt"
	"sync"

	"github.com/canonical/elasticsearch-k8s-operator/telemetry"
	"github.com/rs/zerolog/log"
)

// Leadership is the external election oracle. Only the leader mutates
// shared membership state; the oracle's answer is trusted for the
// duration of one reconciliation pass.
type Leadership interface {
	IsLeader() bool
}

// SeedStore optionally persists the seed list across process restarts.
// Seeds are re-derivable from their ordinals, so persistence is a
// convenience, never a correctness requirement.
type SeedStore interface {
	SaveSeeds(seeds []string) error
	LoadSeeds() ([]string, error)
}

// IngressStore is optionally implemented by a SeedStore that can also
// persist the last observed peer-group ingress address.
type IngressStore interface {
	SaveIngressAddress(address string) error
	LoadIngressAddress() (string, error)
}

// Store holds the leader-owned membership state: the seed-host list
// built so far and the last observed ingress address of the peer group.
// It never fails; an incomplete seed list is a normal observable state.
//
// The reconciliation loop is the only writer; the mutex exists for the
// admin API's concurrent readers.
type Store struct {
	appName       string
	serviceDomain string
	seedSize      int

	leadership Leadership
	persistent SeedStore // may be nil

	mu             sync.RWMutex
	seeds          []string
	ingressAddress string
}

// NewStore creates a membership store that derives seed hosts for the
// given application within the given headless service domain, growing
// toward seedSize entries.
func NewStore(appName, serviceDomain string, seedSize int, leadership Leadership) *Store {
	return &Store{
		appName:       appName,
		serviceDomain: serviceDomain,
		seedSize:      seedSize,
		leadership:    leadership,
	}
}

// SeedHostAt derives the stable network identifier for the seed member
// at the given ordinal. Pure: same ordinal always yields the same name,
// with no backend calls, so every replica computes the identical list
// without coordination.
func (s *Store) SeedHostAt(ordinal int) string {
	return fmt.Sprintf("%s-%d.%s", s.appName, ordinal, s.serviceDomain)
}

// CurrentSeeds returns a copy of the seed-host list built so far,
// length 0..seedSize.
func (s *Store) CurrentSeeds() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, len(s.seeds))
	copy(out, s.seeds)
	return out
}

// SeedSize returns the configured seed list target length (K)
func (s *Store) SeedSize() int {
	return s.seedSize
}

// BootstrapComplete reports whether the seed list has reached its
// target length.
func (s *Store) BootstrapComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seeds) >= s.seedSize
}

// OnPeerJoined tops the seed list up to the configured size. Leader
// only; non-leader calls are no-ops. Returns true when the list
// changed, which is the signal that the structural configuration
// embedding the seed list must be republished.
//
// The list strictly grows toward seedSize and never shrinks; entries
// are derived solely from their ordinal, never from transient peer data.
func (s *Store) OnPeerJoined() bool {
	if !s.leadership.IsLeader() {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.seeds) >= s.seedSize {
		return false
	}

	for ordinal := len(s.seeds); ordinal < s.seedSize; ordinal++ {
		s.seeds = append(s.seeds, s.SeedHostAt(ordinal))
	}
	telemetry.SeedListSize.Set(float64(len(s.seeds)))

	log.Info().
		Strs("seeds", s.seeds).
		Msg("Seed host list grown")

	if s.persistent != nil {
		if err := s.persistent.SaveSeeds(s.seeds); err != nil {
			// Persistence is best-effort; seeds are re-derivable
			log.Warn().Err(err).Msg("Failed to persist seed list")
		}
	}

	return true
}

// SetIngressAddress records the last observed ingress address of the
// peer group. Leader only; non-leader calls are no-ops.
func (s *Store) SetIngressAddress(address string) {
	if !s.leadership.IsLeader() || address == "" {
		return
	}

	s.mu.Lock()
	changed := s.ingressAddress != address
	s.ingressAddress = address
	s.mu.Unlock()

	if !changed {
		return
	}
	if ingress, ok := s.persistent.(IngressStore); ok {
		if err := ingress.SaveIngressAddress(address); err != nil {
			log.Warn().Err(err).Msg("Failed to persist ingress address")
		}
	}
}

// IngressAddress returns the last observed peer-group ingress address
func (s *Store) IngressAddress() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ingressAddress
}

// AttachSeedStore wires an optional persistent store and re-hydrates
// any previously saved seeds. The in-memory list only ever grows, so a
// stale persisted list shorter than the current one is ignored.
func (s *Store) AttachSeedStore(store SeedStore) error {
	s.persistent = store

	saved, err := store.LoadSeeds()
	if err != nil {
		return fmt.Errorf("failed to load persisted seeds: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(saved) > len(s.seeds) {
		if len(saved) > s.seedSize {
			saved = saved[:s.seedSize]
		}
		s.seeds = saved
		telemetry.SeedListSize.Set(float64(len(s.seeds)))
		log.Info().Strs("seeds", s.seeds).Msg("Restored seed host list")
	}

	if ingress, ok := store.(IngressStore); ok && s.ingressAddress == "" {
		address, err := ingress.LoadIngressAddress()
		if err != nil {
			return fmt.Errorf("failed to load persisted ingress address: %w", err)
		}
		s.ingressAddress = address
	}

	return nil
}
