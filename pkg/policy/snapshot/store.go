package snapshot

import (
	"sync/atomic"

	"mercator-hq/mixer/pkg/schema"
)

// Store holds the active snapshot. Reads are a single atomic load and never
// block; activation validates first and swaps only on success, so a rejected
// configuration leaves the previous snapshot in place.
type Store struct {
	current atomic.Pointer[Snapshot]
}

// NewStore returns a store with no active snapshot.
func NewStore() *Store {
	return &Store{}
}

// Load returns the active snapshot, or nil if none has been activated.
func (s *Store) Load() *Snapshot {
	return s.current.Load()
}

// Activate builds cfg and, if it is valid, makes it the active snapshot.
// It returns the new snapshot.
func (s *Store) Activate(cfg *schema.Config, opts Options) (*Snapshot, error) {
	snap, err := Build(cfg, opts)
	if err != nil {
		return nil, err
	}
	s.current.Store(snap)
	return snap, nil
}

// Swap installs snap as the active snapshot and returns the previous one.
func (s *Store) Swap(snap *Snapshot) *Snapshot {
	return s.current.Swap(snap)
}
