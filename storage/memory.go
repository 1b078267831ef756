package storage

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-memory ObjectStore with thread-safe operations.
type MemoryStore struct {
	objects map[string][]byte
	mu      sync.RWMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		objects: make(map[string][]byte),
	}
}

// Get returns the contents of the object at path.
func (s *MemoryStore) Get(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.objects[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// PutIfAbsent creates the object at path, failing if it exists.
func (s *MemoryStore) PutIfAbsent(path string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.objects[path]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, path)
	}

	stored := make([]byte, len(data))
	copy(stored, data)
	s.objects[path] = stored
	return nil
}

// List returns the paths of all objects under prefix, sorted.
func (s *MemoryStore) List(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p := cleanPrefix(prefix)
	var out []string
	for path := range s.objects {
		if p == "" || path == p || strings.HasPrefix(path, p+"/") {
			out = append(out, path)
		}
	}

	sort.Strings(out)
	return out, nil
}

// Size returns the number of stored objects.
func (s *MemoryStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
