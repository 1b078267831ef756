package data

import (
	"errors"
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// FileMeta describes one written data file, the row shape of
// WriteMetadataSchema.
type FileMeta struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partition_values,omitempty"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modification_time"`
	DataChange       bool              `json:"data_change"`
}

// Converter builds and reads the boundary record batches.
type Converter struct {
	allocator memory.Allocator
}

// NewConverter creates a Converter with the default memory allocator.
func NewConverter() *Converter {
	return &Converter{allocator: memory.DefaultAllocator}
}

// NewConverterWithAllocator creates a Converter with a custom allocator.
func NewConverterWithAllocator(mem memory.Allocator) *Converter {
	return &Converter{allocator: mem}
}

// CommitInfoBatch builds a one-row commit-info batch from the given
// engine metadata.
func (c *Converter) CommitInfoBatch(engineInfo map[string]string) (arrow.Record, error) {
	if len(engineInfo) == 0 {
		return nil, errors.New("empty engine commit info")
	}

	builder := array.NewRecordBuilder(c.allocator, CommitInfoSchema())
	defer builder.Release()

	mapBuilder := builder.Field(0).(*array.MapBuilder)
	keyBuilder := mapBuilder.KeyBuilder().(*array.StringBuilder)
	valueBuilder := mapBuilder.ItemBuilder().(*array.StringBuilder)

	mapBuilder.Append(true)
	for k, v := range engineInfo {
		keyBuilder.Append(k)
		valueBuilder.Append(v)
	}

	return builder.NewRecord(), nil
}

// CommitInfoFromRecord extracts the engine metadata map from a
// commit-info batch.
func (c *Converter) CommitInfoFromRecord(record arrow.Record) (map[string]string, error) {
	if err := ValidateSchema(record, CommitInfoSchema()); err != nil {
		return nil, err
	}
	if record.NumRows() != 1 {
		return nil, fmt.Errorf("commit info must have exactly 1 row, got %d", record.NumRows())
	}

	mapCol, ok := record.Column(0).(*array.Map)
	if !ok {
		return nil, errors.New("column 0 (engineCommitInfo) is not a Map array")
	}
	if mapCol.IsNull(0) {
		return nil, errors.New("engineCommitInfo row is null")
	}

	return extractMapValues(mapCol, 0), nil
}

// WriteMetadataBatch builds a write-metadata batch, one row per file.
func (c *Converter) WriteMetadataBatch(files ...FileMeta) (arrow.Record, error) {
	if len(files) == 0 {
		return nil, errors.New("empty file metadata slice")
	}

	builder := array.NewRecordBuilder(c.allocator, WriteMetadataSchema())
	defer builder.Release()

	pathBuilder := builder.Field(0).(*array.StringBuilder)
	partBuilder := builder.Field(1).(*array.MapBuilder)
	sizeBuilder := builder.Field(2).(*array.Int64Builder)
	modBuilder := builder.Field(3).(*array.Int64Builder)
	changeBuilder := builder.Field(4).(*array.BooleanBuilder)

	keyBuilder := partBuilder.KeyBuilder().(*array.StringBuilder)
	valueBuilder := partBuilder.ItemBuilder().(*array.StringBuilder)

	for _, f := range files {
		pathBuilder.Append(f.Path)

		partBuilder.Append(true)
		for k, v := range f.PartitionValues {
			keyBuilder.Append(k)
			valueBuilder.Append(v)
		}

		sizeBuilder.Append(f.Size)
		modBuilder.Append(f.ModificationTime)
		changeBuilder.Append(f.DataChange)
	}

	return builder.NewRecord(), nil
}

// WriteMetadataFromRecord extracts the file descriptions from a
// write-metadata batch.
func (c *Converter) WriteMetadataFromRecord(record arrow.Record) ([]FileMeta, error) {
	if err := ValidateSchema(record, WriteMetadataSchema()); err != nil {
		return nil, err
	}

	pathCol, ok := record.Column(0).(*array.String)
	if !ok {
		return nil, errors.New("column 0 (path) is not a String array")
	}
	partCol, ok := record.Column(1).(*array.Map)
	if !ok {
		return nil, errors.New("column 1 (partitionValues) is not a Map array")
	}
	sizeCol, ok := record.Column(2).(*array.Int64)
	if !ok {
		return nil, errors.New("column 2 (size) is not an Int64 array")
	}
	modCol, ok := record.Column(3).(*array.Int64)
	if !ok {
		return nil, errors.New("column 3 (modificationTime) is not an Int64 array")
	}
	changeCol, ok := record.Column(4).(*array.Boolean)
	if !ok {
		return nil, errors.New("column 4 (dataChange) is not a Boolean array")
	}

	files := make([]FileMeta, record.NumRows())
	for i := int64(0); i < record.NumRows(); i++ {
		idx := int(i)
		files[idx] = FileMeta{
			Path:             pathCol.Value(idx),
			Size:             sizeCol.Value(idx),
			ModificationTime: modCol.Value(idx),
			DataChange:       changeCol.Value(idx),
		}
		if !partCol.IsNull(idx) {
			files[idx].PartitionValues = extractMapValues(partCol, idx)
		}
	}

	return files, nil
}

// extractMapValues extracts key-value pairs from a Map column at the given index.
func extractMapValues(mapCol *array.Map, idx int) map[string]string {
	result := make(map[string]string)

	offsets := mapCol.Offsets()
	start := offsets[idx]
	end := offsets[idx+1]

	keys := mapCol.Keys().(*array.String)
	values := mapCol.Items().(*array.String)

	for j := start; j < end; j++ {
		result[keys.Value(int(j))] = values.Value(int(j))
	}

	return result
}

// ValidateSchema checks if a record matches the expected schema.
func ValidateSchema(record arrow.Record, expected *arrow.Schema) error {
	if record == nil {
		return errors.New("record is nil")
	}

	actual := record.Schema()
	if actual.NumFields() != expected.NumFields() {
		return fmt.Errorf("field count mismatch: got %d, expected %d",
			actual.NumFields(), expected.NumFields())
	}

	for i := 0; i < actual.NumFields(); i++ {
		actualField := actual.Field(i)
		expectedField := expected.Field(i)

		if actualField.Name != expectedField.Name {
			return fmt.Errorf("field %d name mismatch: got %s, expected %s",
				i, actualField.Name, expectedField.Name)
		}

		if !arrow.TypeEqual(actualField.Type, expectedField.Type) {
			return fmt.Errorf("field %s type mismatch: got %s, expected %s",
				actualField.Name, actualField.Type, expectedField.Type)
		}
	}

	return nil
}
