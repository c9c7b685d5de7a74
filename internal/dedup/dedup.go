// Package dedup merges events from many relays into one set keyed by id.
package dedup

import (
	"sync"

	"git.home.luguber.info/inful/nostrbackup/internal/event"
)

// Store maps event id to the first event delivered with that id. Later
// duplicates are dropped, never merged or overwritten. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	byID  map[string]struct{}
	order []event.Event
}

// New creates an empty store.
func New() *Store {
	return &Store{byID: make(map[string]struct{})}
}

// Add inserts ev if its id is not yet present and reports whether it did.
func (s *Store) Add(ev event.Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.byID[ev.ID]; seen {
		return false
	}
	s.byID[ev.ID] = struct{}{}
	s.order = append(s.order, ev)
	return true
}

// Len returns the number of distinct events.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// Values returns the stored events in first-arrival order.
func (s *Store) Values() []event.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Event, len(s.order))
	copy(out, s.order)
	return out
}
