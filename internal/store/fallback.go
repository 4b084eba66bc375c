// Package store keeps the last good payload per request key so a transient
// upstream failure can be answered with stale data and a warning.
package store

import (
	"sync"
	"time"
)

// FallbackStore is a bounded, TTL-limited map of last-known-good payloads.
// It is safe for concurrent use.
type FallbackStore[T any] struct {
	mu         sync.Mutex
	entries    map[string]entry[T]
	order      []string // insertion order, oldest first
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

type entry[T any] struct {
	value    T
	storedAt time.Time
}

// NewFallbackStore keeps at most maxEntries payloads for ttl each.
func NewFallbackStore[T any](ttl time.Duration, maxEntries int) *FallbackStore[T] {
	return &FallbackStore[T]{
		entries:    make(map[string]entry[T]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Put records v as the latest good payload for key.
func (s *FallbackStore[T]) Put(key string, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; ok {
		s.removeLocked(key)
	}
	s.entries[key] = entry[T]{value: v, storedAt: s.now()}
	s.order = append(s.order, key)
	s.trimLocked()
}

// Get returns the payload for key and when it was stored, if still fresh.
func (s *FallbackStore[T]) Get(key string) (T, time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		var zero T
		return zero, time.Time{}, false
	}
	if s.ttl > 0 && s.now().Sub(e.storedAt) > s.ttl {
		s.removeLocked(key)
		var zero T
		return zero, time.Time{}, false
	}
	return e.value, e.storedAt, true
}

// Len reports how many payloads are held, fresh or not.
func (s *FallbackStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *FallbackStore[T]) removeLocked(key string) {
	delete(s.entries, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

func (s *FallbackStore[T]) trimLocked() {
	if s.maxEntries <= 0 {
		return
	}
	for len(s.order) > s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
}
