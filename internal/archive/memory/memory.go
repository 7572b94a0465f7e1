// Package memory holds archived snapshots in process memory, for tests.
package memory

import (
	"context"
	"sync"
)

type object struct {
	ContentType string
	Data        []byte
}

// Store is an in-memory blob archive.
type Store struct {
	mu      sync.RWMutex
	objects map[string]object
}

func New() *Store {
	return &Store{objects: make(map[string]object)}
}

func (s *Store) Put(_ context.Context, key string, contentType string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	s.objects[key] = object{ContentType: contentType, Data: buf}
	return "mem://" + key, nil
}

// Get returns a stored object, for assertions.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.Data, ok
}

// Len reports the number of stored objects.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
