package data

import (
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

func TestCommitInfoRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	c := NewConverterWithAllocator(mem)

	record, err := c.CommitInfoBatch(map[string]string{"engineInfo": "default engine"})
	if err != nil {
		t.Fatalf("CommitInfoBatch failed: %v", err)
	}
	defer record.Release()

	if record.NumRows() != 1 {
		t.Fatalf("Expected 1 row, got %d", record.NumRows())
	}

	info, err := c.CommitInfoFromRecord(record)
	if err != nil {
		t.Fatalf("CommitInfoFromRecord failed: %v", err)
	}
	if info["engineInfo"] != "default engine" {
		t.Errorf("Expected engineInfo=default engine, got %v", info)
	}
}

func TestCommitInfoBatchEmpty(t *testing.T) {
	c := NewConverter()
	if _, err := c.CommitInfoBatch(nil); err == nil {
		t.Error("Expected error for empty engine info")
	}
}

func TestWriteMetadataRoundTrip(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	c := NewConverterWithAllocator(mem)

	in := []FileMeta{
		{Path: "a.parquet", Size: 1234, ModificationTime: 5678, DataChange: true},
		{Path: "b.parquet", PartitionValues: map[string]string{"date": "2024-01-01"}, Size: 99, ModificationTime: 100, DataChange: true},
	}

	record, err := c.WriteMetadataBatch(in...)
	if err != nil {
		t.Fatalf("WriteMetadataBatch failed: %v", err)
	}
	defer record.Release()

	out, err := c.WriteMetadataFromRecord(record)
	if err != nil {
		t.Fatalf("WriteMetadataFromRecord failed: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("Expected 2 files, got %d", len(out))
	}
	if out[0].Path != "a.parquet" || out[0].Size != 1234 || out[0].ModificationTime != 5678 || !out[0].DataChange {
		t.Errorf("First file mismatch: %+v", out[0])
	}
	if out[1].PartitionValues["date"] != "2024-01-01" {
		t.Errorf("Expected partition value, got %+v", out[1].PartitionValues)
	}
}

func TestValidateSchemaMismatch(t *testing.T) {
	mem := memory.NewCheckedAllocator(memory.NewGoAllocator())
	defer mem.AssertSize(t, 0)

	c := NewConverterWithAllocator(mem)

	record, err := c.CommitInfoBatch(map[string]string{"engineInfo": "x"})
	if err != nil {
		t.Fatalf("CommitInfoBatch failed: %v", err)
	}
	defer record.Release()

	// A commit-info batch does not satisfy the write-metadata shape.
	if err := ValidateSchema(record, WriteMetadataSchema()); err == nil {
		t.Error("Expected schema mismatch error")
	}

	if err := ValidateSchema(nil, CommitInfoSchema()); err == nil {
		t.Error("Expected error for nil record")
	}
}

func TestSchemaFieldTypes(t *testing.T) {
	s := WriteMetadataSchema()
	if s.NumFields() != 5 {
		t.Fatalf("Expected 5 fields, got %d", s.NumFields())
	}
	if s.Field(0).Name != "path" || !arrow.TypeEqual(s.Field(0).Type, arrow.BinaryTypes.String) {
		t.Errorf("Unexpected path field: %v", s.Field(0))
	}
	if s.Field(4).Name != "dataChange" || !arrow.TypeEqual(s.Field(4).Type, arrow.FixedWidthTypes.Boolean) {
		t.Errorf("Unexpected dataChange field: %v", s.Field(4))
	}
}
