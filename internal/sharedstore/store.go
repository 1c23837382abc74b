// Package sharedstore holds the coordinator's replica of the key/value state
// shared with every running execution context. Replication is best-effort
// and last-write-wins: concurrent writes to the same key from different
// contexts are resolved by arrival order at the coordinator, and different
// observers may see them in different orders. That weak model is the
// contract, not an accident.
package sharedstore

import "sync"

// CoordinatorOrigin is the origin label for writes made through the
// coordinator's own view rather than by a running context.
const CoordinatorOrigin = ""

// Listener observes every write applied to the store. origin is the handle
// ID that produced the write, or CoordinatorOrigin for coordinator writes.
type Listener func(origin, key string, value any)

// Store is a mapping from string keys to structurally-copyable values, with
// synchronous change notification. There is no delete operation; entries
// live as long as the store does.
//
// Listener registration must finish before concurrent use begins; writes may
// then come from any goroutine.
type Store struct {
	mu        sync.RWMutex
	data      map[string]any
	listeners []Listener
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[string]any)}
}

// Watch registers a listener invoked after every write, outside the store
// lock. Per-writer ordering is preserved; ordering across writers is not.
func (s *Store) Watch(l Listener) {
	s.listeners = append(s.listeners, l)
}

// Set writes a key as the coordinator and notifies listeners.
func (s *Store) Set(key string, value any) {
	s.SetFrom(CoordinatorOrigin, key, value)
}

// SetFrom writes a key on behalf of the given origin. Existing entries are
// overwritten unconditionally.
func (s *Store) SetFrom(origin, key string, value any) {
	s.mu.Lock()
	s.data[key] = value
	s.mu.Unlock()

	for _, l := range s.listeners {
		l(origin, key, value)
	}
}

// Get returns the current value for key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Snapshot returns a copy of the current mapping, suitable for seeding a
// newly launched context. The top-level map is fresh; values are the stored
// references and are deep-copied later by the boundary codec when they
// actually cross into a context.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := make(map[string]any, len(s.data))
	for k, v := range s.data {
		snap[k] = v
	}
	return snap
}
