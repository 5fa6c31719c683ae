// Package memstore provides an in-memory ordered store backend.
//
// It backs unit tests and ephemeral (non-durable) service runs. Keys are
// kept in a sorted slice so Ascend iterates in byte order like the
// Pebble backend does.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/c360/embargo/errors"
	"github.com/c360/embargo/storage"
)

// Store is an in-memory implementation of storage.OrderedStore.
type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	keys   []string // sorted
	closed bool
}

// compile-time interface check
var _ storage.OrderedStore = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		data: make(map[string][]byte),
	}
}

// Get retrieves the value for key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errors.ErrStoreClosed
	}

	value, ok := s.data[key]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}

	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores value at key.
func (s *Store) Put(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStoreClosed
	}

	if _, exists := s.data[key]; !exists {
		i := sort.SearchStrings(s.keys, key)
		s.keys = append(s.keys, "")
		copy(s.keys[i+1:], s.keys[i:])
		s.keys[i] = key
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return nil
}

// Delete removes the value at key. Absent keys are a no-op.
func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.ErrStoreClosed
	}

	if _, exists := s.data[key]; !exists {
		return nil
	}

	delete(s.data, key)
	i := sort.SearchStrings(s.keys, key)
	s.keys = append(s.keys[:i], s.keys[i+1:]...)
	return nil
}

// Ascend iterates keys in ascending order.
func (s *Store) Ascend(ctx context.Context, fn func(key string, value []byte) (bool, error)) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return errors.ErrStoreClosed
	}
	// Snapshot so fn may schedule writes without deadlocking
	keys := make([]string, len(s.keys))
	copy(keys, s.keys)
	values := make([][]byte, len(keys))
	for i, k := range keys {
		values[i] = s.data[k]
	}
	s.mu.RUnlock()

	for i, k := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		cont, err := fn(k, values[i])
		if err != nil {
			return err
		}
		if !cont {
			return nil
		}
	}
	return nil
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

// Close marks the store closed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = nil
	s.keys = nil
	return nil
}
