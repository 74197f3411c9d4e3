// Package playerstate holds the process-wide player-state aggregate.
// Writes are serialized; listeners run synchronously after each write and
// only ever receive copies.
package playerstate

import (
	"sync"

	"github.com/nexus-quest/pulse/internal/domain"
)

// Listener observes one state transition.
type Listener func(prev, curr domain.State)

// Store is a single-writer state holder with change listeners.
type Store struct {
	writeMu sync.Mutex // serializes Apply so listeners see transitions in order

	mu        sync.RWMutex
	current   domain.State
	listeners []Listener
}

// New creates a store seeded with initial.
func New(initial domain.State) *Store {
	return &Store{current: initial.Clone()}
}

// Current returns a deep copy of the current state.
func (s *Store) Current() domain.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// Subscribe registers a listener for subsequent transitions.
func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()
}

// Apply validates and installs next, then notifies listeners in
// registration order before returning.
func (s *Store) Apply(next domain.State) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.applyLocked(next)
}

// Update applies fn to a copy of the current state and installs the result.
func (s *Store) Update(fn func(*domain.State)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	next := s.Current()
	fn(&next)
	return s.applyLocked(next)
}

func (s *Store) applyLocked(next domain.State) error {
	if err := next.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	prev := s.current
	s.current = next.Clone()
	curr := s.current.Clone()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.Unlock()

	for _, l := range listeners {
		l(prev.Clone(), curr.Clone())
	}
	return nil
}
