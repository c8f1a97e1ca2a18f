package statestore

import (
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// Key prefixes for Pebble storage
const (
	keySeeds   = "/state/seeds"   // -> msgpack(seedRecord)
	keyIngress = "/state/ingress" // -> msgpack(string)
)

// seedRecord is the persisted desired-state document
type seedRecord struct {
	Seeds []string `msgpack:"seeds"`
}

// Store is a Pebble-backed desired-state store for the membership
// layer. Losing it is harmless (seed hosts are re-derivable from their
// ordinals); its job is to let a restarted leader resume with the seed
// list it already published to peers.
type Store struct {
	db   *pebble.DB
	path string
}

// Open creates or opens the desired-state store under dataDir
func Open(dataDir string) (*Store, error) {
	statePath := filepath.Join(dataDir, "desired_state")

	db, err := pebble.Open(statePath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open desired-state store at %s: %w", statePath, err)
	}

	log.Debug().Str("path", statePath).Msg("Desired-state store opened")

	return &Store{db: db, path: statePath}, nil
}

// SaveSeeds persists the seed-host list with a synchronous write
func (s *Store) SaveSeeds(seeds []string) error {
	val, err := msgpack.Marshal(seedRecord{Seeds: seeds})
	if err != nil {
		return fmt.Errorf("failed to encode seed record: %w", err)
	}

	if err := s.db.Set([]byte(keySeeds), val, pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist seed record: %w", err)
	}
	return nil
}

// LoadSeeds returns the persisted seed-host list, or an empty list when
// nothing has been saved yet.
func (s *Store) LoadSeeds() ([]string, error) {
	val, closer, err := s.db.Get([]byte(keySeeds))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read seed record: %w", err)
	}
	defer closer.Close()

	var record seedRecord
	if err := msgpack.Unmarshal(val, &record); err != nil {
		return nil, fmt.Errorf("failed to decode seed record: %w", err)
	}
	return record.Seeds, nil
}

// SaveIngressAddress persists the last observed peer-group ingress address
func (s *Store) SaveIngressAddress(address string) error {
	val, err := msgpack.Marshal(address)
	if err != nil {
		return fmt.Errorf("failed to encode ingress address: %w", err)
	}

	if err := s.db.Set([]byte(keyIngress), val, pebble.Sync); err != nil {
		return fmt.Errorf("failed to persist ingress address: %w", err)
	}
	return nil
}

// LoadIngressAddress returns the persisted ingress address, or empty
// when nothing has been saved yet.
func (s *Store) LoadIngressAddress() (string, error) {
	val, closer, err := s.db.Get([]byte(keyIngress))
	if err == pebble.ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read ingress address: %w", err)
	}
	defer closer.Close()

	var address string
	if err := msgpack.Unmarshal(val, &address); err != nil {
		return "", fmt.Errorf("failed to decode ingress address: %w", err)
	}
	return address, nil
}

// Close closes the underlying Pebble database
func (s *Store) Close() error {
	return s.db.Close()
}
