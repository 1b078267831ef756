// Package arrow provides Arrow IPC framing for record batches crossing a
// process boundary, such as batches submitted to the ingest server.
package arrow

import (
	"bytes"
	"fmt"

	arrowlib "github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// Codec encodes and decodes record batches as Arrow IPC streams.
type Codec struct {
	allocator memory.Allocator
}

// NewCodec creates a Codec with the default memory allocator.
func NewCodec() *Codec {
	return &Codec{allocator: memory.DefaultAllocator}
}

// NewCodecWithAllocator creates a Codec with a custom allocator.
func NewCodecWithAllocator(mem memory.Allocator) *Codec {
	return &Codec{allocator: mem}
}

// EncodeBatch serializes one record batch to IPC stream bytes.
func (c *Codec) EncodeBatch(record arrowlib.Record) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("nil record")
	}

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf,
		ipc.WithSchema(record.Schema()),
		ipc.WithAllocator(c.allocator),
	)

	if err := writer.Write(record); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to write record: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close writer: %w", err)
	}

	return buf.Bytes(), nil
}

// DecodeBatch deserializes IPC stream bytes into a record batch. The
// caller owns the returned record and must release it.
func (c *Codec) DecodeBatch(payload []byte) (arrowlib.Record, error) {
	reader, err := ipc.NewReader(bytes.NewReader(payload), ipc.WithAllocator(c.allocator))
	if err != nil {
		return nil, fmt.Errorf("failed to create reader: %w", err)
	}
	defer reader.Release()

	if !reader.Next() {
		if reader.Err() != nil {
			return nil, reader.Err()
		}
		return nil, fmt.Errorf("no records in IPC payload")
	}

	record := reader.Record()
	record.Retain()
	return record, nil
}
