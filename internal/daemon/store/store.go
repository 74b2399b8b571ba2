package store

import (
	"sync"

	"github.com/metaoverlayfs/panel/pkg/panel"
)

// Store is the in-memory state store for the daemon.
// It is thread-safe and supports pub/sub for real-time updates.
type Store struct {
	mu          sync.RWMutex
	snapshot    *panel.Snapshot
	subscribers map[chan Update]struct{}
	applied     int
	dropped     int
}

// New creates a new Store instance seeded with snap, which may be nil.
func New(snap *panel.Snapshot) *Store {
	if snap == nil {
		snap = &panel.Snapshot{}
	}
	return &Store{
		snapshot:    snap,
		subscribers: make(map[chan Update]struct{}),
	}
}

// Get returns the latest snapshot. Callers must not modify it.
func (s *Store) Get() *panel.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

// Stats returns delivery counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Applied:     s.applied,
		Dropped:     s.dropped,
		Subscribers: len(s.subscribers),
		Generation:  s.snapshot.Generation,
	}
}

// ApplyUpdate records u and notifies subscribers. Snapshots older than
// the one held are not stored but are still broadcast.
func (s *Store) ApplyUpdate(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u.Event != nil && u.Event.Snapshot != nil && u.Event.Snapshot.Generation >= s.snapshot.Generation {
		s.snapshot = u.Event.Snapshot
	}
	s.applied++

	for ch := range s.subscribers {
		select {
		case ch <- u:
		default:
			// Slow clients miss updates rather than stall the daemon.
			s.dropped++
		}
	}
}

// Subscribe creates a new subscription channel for state updates.
func (s *Store) Subscribe() chan Update {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Update, 100)
	s.subscribers[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (s *Store) Unsubscribe(ch chan Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.subscribers[ch]; !ok {
		return
	}
	delete(s.subscribers, ch)
	close(ch)
}
