// Package writer encodes data batches as parquet files inside a
// transaction's target directory. The kernel never reads these files;
// it only records the metadata the writer reports back.
package writer

import (
	"fmt"
	"os"
	"path/filepath"

	arrowlib "github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/google/uuid"

	"github.com/VanDung-dev/DeltaKernel-Engine/data"
)

// ParquetWriter writes record batches as uniquely named parquet files.
type ParquetWriter struct {
	props      *parquet.WriterProperties
	arrowProps pqarrow.ArrowWriterProperties
}

// NewParquetWriter creates a writer with default parquet properties.
func NewParquetWriter() *ParquetWriter {
	return &ParquetWriter{
		props:      parquet.NewWriterProperties(),
		arrowProps: pqarrow.DefaultWriterProps(),
	}
}

// WriteBatch writes one record batch to a new file under dir and returns
// its metadata. The file name is a fresh uuid with a .parquet suffix; the
// reported path is relative to dir, matching the add-file action shape.
func (w *ParquetWriter) WriteBatch(dir string, record arrowlib.Record) (data.FileMeta, error) {
	if record == nil || record.NumRows() == 0 {
		return data.FileMeta{}, fmt.Errorf("nothing to write")
	}

	name := uuid.New().String() + ".parquet"
	full := filepath.Join(dir, name)

	f, err := os.Create(full)
	if err != nil {
		return data.FileMeta{}, fmt.Errorf("failed to create %s: %w", full, err)
	}

	fw, err := pqarrow.NewFileWriter(record.Schema(), f, w.props, w.arrowProps)
	if err != nil {
		f.Close()
		os.Remove(full)
		return data.FileMeta{}, fmt.Errorf("failed to create parquet writer: %w", err)
	}

	if err := fw.Write(record); err != nil {
		fw.Close()
		os.Remove(full)
		return data.FileMeta{}, fmt.Errorf("failed to write batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		os.Remove(full)
		return data.FileMeta{}, fmt.Errorf("failed to close parquet writer: %w", err)
	}

	info, err := os.Stat(full)
	if err != nil {
		return data.FileMeta{}, fmt.Errorf("failed to stat %s: %w", full, err)
	}

	return data.FileMeta{
		Path:             name,
		PartitionValues:  map[string]string{},
		Size:             info.Size(),
		ModificationTime: info.ModTime().UnixMilli(),
		DataChange:       true,
	}, nil
}
