// Package kvstore is a small concurrency-safe map with optional entry expiry.
package kvstore

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	touched time.Time
}

type KVStore[K comparable, V any] struct {
	mu   sync.RWMutex
	data map[K]entry[V]
	now  func() time.Time
}

func New[K comparable, V any]() *KVStore[K, V] {
	return &KVStore[K, V]{data: make(map[K]entry[V]), now: time.Now}
}

// GetOrCreate returns the value under key, storing create() first if the
// key is absent. The entry's last-use time is refreshed either way.
func (s *KVStore[K, V]) GetOrCreate(key K, create func() V) V {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.data[key]
	if !ok {
		item.value = create()
	}
	item.touched = s.now()
	s.data[key] = item
	return item.value
}

func (s *KVStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Expire drops entries not used within maxAge and returns how many it
// removed.
func (s *KVStore[K, V]) Expire(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-maxAge)
	removed := 0
	for key, item := range s.data {
		if item.touched.Before(cutoff) {
			delete(s.data, key)
			removed++
		}
	}
	return removed
}
