// Package storage provides the object store backing a table's commit log
// and data files. This package implements:
// - ObjectStore: a minimal Get/PutIfAbsent/List contract
// - LocalStore: filesystem store with atomic create-new semantics
// - MemoryStore: in-memory store for tests and ephemeral tables
// - CachingStore: LRU read cache over immutable log entries
package storage

import "errors"

// Common errors for store operations
var (
	ErrNotFound      = errors.New("object not found")
	ErrAlreadyExists = errors.New("object already exists")
)

// ObjectStore is the storage contract the engine drives. Paths are
// slash-separated and relative to the table root. All operations are
// synchronous and run to completion.
type ObjectStore interface {
	// Get returns the full contents of the object at path.
	Get(path string) ([]byte, error)

	// PutIfAbsent atomically creates the object at path. Returns
	// ErrAlreadyExists if any object is already present there.
	PutIfAbsent(path string, data []byte) error

	// List returns the paths of all objects under prefix, in
	// lexicographic order.
	List(prefix string) ([]string, error)
}
