// Package kvcache fronts a KV store with a bounded in-memory LRU.
// Reads are read-through, writes are write-through. Values handed in or out
// are copied so callers never share a buffer with the cache.
package kvcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nexus-quest/pulse/internal/domain"
)

// DefaultEntries is the LRU size used when none is configured.
const DefaultEntries = 64

// Store is an LRU-cached domain.KVStore.
type Store struct {
	backing  domain.KVStore
	lru      *lru.Cache[string, []byte]
	uncached map[string]bool
}

// New wraps backing with an LRU of the given size. Keys listed in uncached
// always go to the backing store, so writes from other processes are seen.
func New(backing domain.KVStore, entries int, uncached ...string) (*Store, error) {
	if entries <= 0 {
		entries = DefaultEntries
	}
	c, err := lru.New[string, []byte](entries)
	if err != nil {
		return nil, fmt.Errorf("kvcache: %w", err)
	}
	skip := make(map[string]bool, len(uncached))
	for _, k := range uncached {
		skip[k] = true
	}
	return &Store{backing: backing, lru: c, uncached: skip}, nil
}

func (s *Store) add(key string, v []byte) {
	if !s.uncached[key] {
		s.lru.Add(key, clone(v))
	}
}

// Get serves from the LRU, falling back to the backing store. Absent keys
// are not cached.
func (s *Store) Get(key string) ([]byte, error) {
	if v, ok := s.lru.Get(key); ok {
		return clone(v), nil
	}
	v, err := s.backing.Get(key)
	if err != nil || v == nil {
		return v, err
	}
	s.add(key, v)
	return v, nil
}

// Set writes through. On a failed write the key is evicted so the next read
// goes back to the backing store.
func (s *Store) Set(key string, value []byte) error {
	if err := s.backing.Set(key, value); err != nil {
		s.lru.Remove(key)
		return err
	}
	s.add(key, value)
	return nil
}

// SetBatch delegates to the backing store's batch write when it has one,
// otherwise writes each pair in turn.
func (s *Store) SetBatch(pairs map[string][]byte) error {
	b, ok := s.backing.(domain.BatchKVStore)
	if !ok {
		for k, v := range pairs {
			if err := s.Set(k, v); err != nil {
				return err
			}
		}
		return nil
	}
	if err := b.SetBatch(pairs); err != nil {
		for k := range pairs {
			s.lru.Remove(k)
		}
		return err
	}
	for k, v := range pairs {
		s.add(k, v)
	}
	return nil
}

// Purge drops every cached entry.
func (s *Store) Purge() { s.lru.Purge() }

// Len returns the number of cached entries.
func (s *Store) Len() int { return s.lru.Len() }

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
