package persistence

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store, used when no Postgres DSN is
// configured (local/dev runs) and by tests that exercise the writer,
// snapshotter and recovery manager without a real database.
type MemoryStore struct {
	mu        sync.Mutex
	snapshots map[string][]Snapshot // per symbol, append-only
	events    map[string][]Event    // per symbol, append-only
}

// NewMemoryStore builds an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snapshots: make(map[string][]Snapshot),
		events:    make(map[string][]Event),
	}
}

// WriteBatch implements Store.
func (s *MemoryStore) WriteBatch(_ context.Context, b Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range b.Events {
		s.events[e.Symbol] = append(s.events[e.Symbol], e)
	}
	return nil
}

// SaveSnapshot implements Store.
func (s *MemoryStore) SaveSnapshot(_ context.Context, snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Symbol] = append(s.snapshots[snap.Symbol], snap)
	return nil
}

// LatestSnapshot implements Store.
func (s *MemoryStore) LatestSnapshot(_ context.Context, symbol string) (Snapshot, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := s.snapshots[symbol]
	if len(snaps) == 0 {
		return Snapshot{}, false, nil
	}
	best := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.Sequence > best.Sequence {
			best = snap
		}
	}
	return best, true, nil
}

// EventsSince implements Store.
func (s *MemoryStore) EventsSince(_ context.Context, symbol string, sequence uint64) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := append([]Event(nil), s.events[symbol]...)
	sort.Slice(all, func(i, j int) bool { return all[i].Sequence < all[j].Sequence })

	out := make([]Event, 0, len(all))
	for _, e := range all {
		if e.Sequence > sequence {
			out = append(out, e)
		}
	}
	return out, nil
}
