// Package exchange implements the zero-copy columnar interchange contract
// between an engine runtime and the transaction kernel.
//
// One batch of rows crosses the boundary as a paired ArrayData and
// SchemaData. The buffers inside ArrayData are the producer's own buffers,
// retained rather than copied; ownership of both structures transfers to
// the consumer at export time. Each structure carries its own release
// callback and must be released exactly once: a missed release leaks the
// underlying buffers, while a second release is rejected with
// ErrAlreadyReleased instead of corrupting memory.
package exchange

import (
	"errors"
	"fmt"
	"sync"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
)

// Common errors for exchange operations
var (
	ErrAlreadyReleased = errors.New("exchange structure already released")
	ErrNilRecord       = errors.New("cannot export nil record")
	ErrNoColumns       = errors.New("cannot export record with no columns")
	ErrShapeMismatch   = errors.New("array and schema column counts differ")
)

// ArrayData carries one exported batch: row count, null counts and the
// per-column buffer references. The buffers are shared with the producer's
// batch, not copied.
type ArrayData struct {
	length  int64
	columns []arrow.ArrayData

	release func()

	released bool
	mu       sync.Mutex
}

// Len returns the number of rows in the batch.
func (a *ArrayData) Len() int64 {
	return a.length
}

// NumCols returns the number of columns in the batch.
func (a *ArrayData) NumCols() int {
	return len(a.columns)
}

// Column returns the zero-copy data of column i. The reference is only
// valid until the structure is released.
func (a *ArrayData) Column(i int) arrow.ArrayData {
	return a.columns[i]
}

// Release runs the embedded release callback, freeing the buffer
// references. The first call succeeds; every later call returns
// ErrAlreadyReleased.
func (a *ArrayData) Release() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.released {
		return ErrAlreadyReleased
	}
	a.released = true
	if a.release != nil {
		a.release()
	}
	return nil
}

// Released reports whether the structure has been released.
func (a *ArrayData) Released() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.released
}

// SchemaData carries the field descriptors paired with an ArrayData.
type SchemaData struct {
	fields   []arrow.Field
	metadata arrow.Metadata

	release func()

	released bool
	mu       sync.Mutex
}

// NumFields returns the number of fields.
func (s *SchemaData) NumFields() int {
	return len(s.fields)
}

// Field returns field descriptor i.
func (s *SchemaData) Field(i int) arrow.Field {
	return s.fields[i]
}

// Schema rebuilds an arrow schema from the field descriptors.
func (s *SchemaData) Schema() *arrow.Schema {
	return arrow.NewSchema(s.fields, &s.metadata)
}

// Release runs the embedded release callback. The first call succeeds;
// every later call returns ErrAlreadyReleased.
func (s *SchemaData) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return ErrAlreadyReleased
	}
	s.released = true
	if s.release != nil {
		s.release()
	}
	return nil
}

// Released reports whether the structure has been released.
func (s *SchemaData) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// ExportRecord exports one record batch into the paired exchange
// structures. The column buffers are retained, not copied, and ownership
// of both structures passes to the caller. On error nothing is produced
// and nothing needs releasing.
func ExportRecord(rec arrow.Record) (*ArrayData, *SchemaData, error) {
	if rec == nil {
		return nil, nil, ErrNilRecord
	}
	if rec.NumCols() == 0 {
		return nil, nil, ErrNoColumns
	}

	cols := make([]arrow.ArrayData, rec.NumCols())
	for i := 0; i < int(rec.NumCols()); i++ {
		d := rec.Column(i).Data()
		d.Retain()
		cols[i] = d
	}

	arr := &ArrayData{
		length:  rec.NumRows(),
		columns: cols,
		release: func() {
			for _, d := range cols {
				d.Release()
			}
		},
	}

	schema := rec.Schema()
	fields := make([]arrow.Field, schema.NumFields())
	for i := range fields {
		fields[i] = schema.Field(i)
	}
	sch := &SchemaData{
		fields:   fields,
		metadata: schema.Metadata(),
		// Field descriptors hold no buffers; the callback only marks
		// the transfer complete.
		release: func() {},
	}

	return arr, sch, nil
}

// ImportRecord rebuilds a record batch from exchange structures on the
// consumer side, sharing the exported buffers. The returned record holds
// its own references, so the caller may release the exchange structures
// afterwards per the once-only contract.
func ImportRecord(arr *ArrayData, sch *SchemaData) (arrow.Record, error) {
	if arr == nil || sch == nil {
		return nil, ErrNilRecord
	}
	if arr.Released() || sch.Released() {
		return nil, ErrAlreadyReleased
	}
	if arr.NumCols() != sch.NumFields() {
		return nil, fmt.Errorf("%w: %d columns, %d fields", ErrShapeMismatch, arr.NumCols(), sch.NumFields())
	}

	cols := make([]arrow.Array, arr.NumCols())
	for i := range cols {
		// MakeFromData retains the underlying buffers.
		cols[i] = array.MakeFromData(arr.Column(i))
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	schema := sch.Schema()
	for i, c := range cols {
		if !arrow.TypeEqual(c.DataType(), schema.Field(i).Type) {
			return nil, fmt.Errorf("%w: column %d is %s, schema says %s",
				ErrShapeMismatch, i, c.DataType(), schema.Field(i).Type)
		}
	}

	return array.NewRecord(schema, cols, arr.Len()), nil
}
