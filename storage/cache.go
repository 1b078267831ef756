package storage

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the default number of log entries held by a
// CachingStore.
const DefaultCacheSize = 256

// CachingStore wraps an ObjectStore with an LRU read cache. Commit log
// entries are immutable once written, so cached reads never go stale.
type CachingStore struct {
	inner ObjectStore
	cache *lru.Cache[string, []byte]
}

// NewCachingStore wraps inner with an LRU cache of the given size.
func NewCachingStore(inner ObjectStore, size int) (*CachingStore, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &CachingStore{inner: inner, cache: cache}, nil
}

// Get returns the object at path, serving repeated reads from the cache.
func (s *CachingStore) Get(path string) ([]byte, error) {
	if data, ok := s.cache.Get(path); ok {
		return data, nil
	}

	data, err := s.inner.Get(path)
	if err != nil {
		return nil, err
	}
	s.cache.Add(path, data)
	return data, nil
}

// PutIfAbsent writes through to the inner store and caches on success.
func (s *CachingStore) PutIfAbsent(path string, data []byte) error {
	if err := s.inner.PutIfAbsent(path, data); err != nil {
		return err
	}
	s.cache.Add(path, data)
	return nil
}

// List delegates to the inner store. Listings are not cached since new
// commits change them.
func (s *CachingStore) List(prefix string) ([]string, error) {
	return s.inner.List(prefix)
}

// CacheLen returns the number of cached entries.
func (s *CachingStore) CacheLen() int {
	return s.cache.Len()
}
