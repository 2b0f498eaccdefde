// Package store provides a keyed in-memory entity store with unique inserts.
package store

import (
	"errors"
	"sync"
)

var ErrExists = errors.New("entity already exists")

// Store maps string ids to entities. Inserting a duplicate id fails; there is
// no update or delete because entities here live for the process lifetime.
type Store[T any] struct {
	items map[string]T
	mu    sync.RWMutex
}

func New[T any]() *Store[T] {
	return &Store[T]{
		items: make(map[string]T),
	}
}

func (s *Store[T]) Insert(id string, v T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[id]; exists {
		return ErrExists
	}
	s.items[id] = v
	return nil
}

func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.items[id]
	return v, ok
}

func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.items))
	for _, v := range s.items {
		out = append(out, v)
	}
	return out
}

func (s *Store[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.items)
}
