package exchange

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func buildInt64Batch(t *testing.T, mem memory.Allocator, values []int64) arrow.Record {
	t.Helper()

	schema := arrow.NewSchema([]arrow.Field{
		{Name: "value", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
	}, nil)

	builder := array.NewRecordBuilder(mem, schema)
	defer builder.Release()

	vb := builder.Field(0).(*array.Int64Builder)
	for _, v := range values {
		vb.Append(v)
	}

	return builder.NewRecord()
}

func TestExportImportRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := buildInt64Batch(t, mem, []int64{10, 11, 12})

	arr, sch, err := ExportRecord(rec)
	if err != nil {
		t.Fatalf("ExportRecord failed: %v", err)
	}

	// The producer's own reference is dropped after export; the exchange
	// structures keep the buffers alive.
	rec.Release()

	imported, err := ImportRecord(arr, sch)
	if err != nil {
		t.Fatalf("ImportRecord failed: %v", err)
	}

	if imported.NumRows() != 3 {
		t.Fatalf("Expected 3 rows, got %d", imported.NumRows())
	}
	col, ok := imported.Column(0).(*array.Int64)
	if !ok {
		t.Fatalf("Expected int64 column, got %T", imported.Column(0))
	}
	want := []int64{10, 11, 12}
	for i, w := range want {
		if col.Value(i) != w {
			t.Errorf("Row %d: expected %d, got %d", i, w, col.Value(i))
		}
	}

	imported.Release()

	if err := arr.Release(); err != nil {
		t.Errorf("ArrayData release failed: %v", err)
	}
	if err := sch.Release(); err != nil {
		t.Errorf("SchemaData release failed: %v", err)
	}
}

func TestReleaseExactlyOnce(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := buildInt64Batch(t, mem, []int64{1})
	arr, sch, err := ExportRecord(rec)
	if err != nil {
		t.Fatalf("ExportRecord failed: %v", err)
	}
	rec.Release()

	if err := arr.Release(); err != nil {
		t.Fatalf("First release failed: %v", err)
	}
	if err := arr.Release(); err != ErrAlreadyReleased {
		t.Errorf("Second release: expected ErrAlreadyReleased, got %v", err)
	}

	if err := sch.Release(); err != nil {
		t.Fatalf("First schema release failed: %v", err)
	}
	if err := sch.Release(); err != ErrAlreadyReleased {
		t.Errorf("Second schema release: expected ErrAlreadyReleased, got %v", err)
	}
}

func TestExportNilRecord(t *testing.T) {
	arr, sch, err := ExportRecord(nil)
	if err != ErrNilRecord {
		t.Errorf("Expected ErrNilRecord, got %v", err)
	}
	if arr != nil || sch != nil {
		t.Error("Failed export must not produce structures")
	}
}

func TestImportAfterRelease(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := buildInt64Batch(t, mem, []int64{1, 2})
	arr, sch, err := ExportRecord(rec)
	if err != nil {
		t.Fatalf("ExportRecord failed: %v", err)
	}
	rec.Release()

	if err := arr.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	if _, err := ImportRecord(arr, sch); err != ErrAlreadyReleased {
		t.Errorf("Expected ErrAlreadyReleased on import after release, got %v", err)
	}

	if err := sch.Release(); err != nil {
		t.Fatalf("Schema release failed: %v", err)
	}
}

func TestImportShapeMismatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	rec := buildInt64Batch(t, mem, []int64{1})
	arr, _, err := ExportRecord(rec)
	if err != nil {
		t.Fatalf("ExportRecord failed: %v", err)
	}

	other := &SchemaData{fields: []arrow.Field{
		{Name: "a", Type: arrow.PrimitiveTypes.Int64},
		{Name: "b", Type: arrow.BinaryTypes.String},
	}}
	if _, err := ImportRecord(arr, other); err == nil {
		t.Error("Expected shape mismatch error")
	}

	rec.Release()
	if err := arr.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
}
