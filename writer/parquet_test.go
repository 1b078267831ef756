package writer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestWriteBatch(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "value", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).AppendValues([]int64{10, 11, 12}, nil)
	record := builder.NewRecord()
	defer record.Release()

	dir := t.TempDir()
	w := NewParquetWriter()

	meta, err := w.WriteBatch(dir, record)
	if err != nil {
		t.Fatalf("WriteBatch failed: %v", err)
	}

	if !strings.HasSuffix(meta.Path, ".parquet") {
		t.Errorf("Expected .parquet name, got %s", meta.Path)
	}
	if filepath.IsAbs(meta.Path) {
		t.Errorf("Path should be relative to dir, got %s", meta.Path)
	}
	if meta.Size <= 0 {
		t.Errorf("Expected positive size, got %d", meta.Size)
	}
	if !meta.DataChange {
		t.Error("Expected dataChange=true")
	}

	info, err := os.Stat(filepath.Join(dir, meta.Path))
	if err != nil {
		t.Fatalf("Written file missing: %v", err)
	}
	if info.Size() != meta.Size {
		t.Errorf("Reported size %d, on disk %d", meta.Size, info.Size())
	}
}

func TestWriteBatchEmpty(t *testing.T) {
	w := NewParquetWriter()
	if _, err := w.WriteBatch(t.TempDir(), nil); err == nil {
		t.Error("Expected error for nil record")
	}
}

func TestWriteBatchUniqueNames(t *testing.T) {
	mem := memory.NewGoAllocator()
	schema := arrow.NewSchema([]arrow.Field{
		{Name: "value", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()
	builder.Field(0).(*array.Int64Builder).Append(1)
	record := builder.NewRecord()
	defer record.Release()

	dir := t.TempDir()
	w := NewParquetWriter()

	a, err := w.WriteBatch(dir, record)
	if err != nil {
		t.Fatalf("First WriteBatch failed: %v", err)
	}
	b, err := w.WriteBatch(dir, record)
	if err != nil {
		t.Fatalf("Second WriteBatch failed: %v", err)
	}
	if a.Path == b.Path {
		t.Errorf("Expected unique file names, both were %s", a.Path)
	}
}
