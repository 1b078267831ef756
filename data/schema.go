// Package data provides the Apache Arrow schemas crossing the engine/kernel
// boundary. Schemas defined here MUST match the action shapes the kernel
// folds into the commit log, or attachment fails with a schema mismatch.
package data

import (
	"github.com/apache/arrow-go/v18/arrow"
)

// CommitInfoSchema returns the Arrow schema for engine commit info.
//
// Fields:
//   - engineCommitInfo: map<string, string> - free-form engine-identifying metadata
func CommitInfoSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{
				Name: "engineCommitInfo",
				Type: arrow.MapOf(
					arrow.BinaryTypes.String, // key type
					arrow.BinaryTypes.String, // value type
				),
				Nullable: true,
			},
		},
		nil,
	)
}

// WriteMetadataSchema returns the Arrow schema describing one written
// data file, one file per row.
//
// Fields:
//   - path: string - file name relative to the write context's target directory
//   - partitionValues: map<string, string> - partition column values
//   - size: int64 - file size in bytes
//   - modificationTime: int64 - mtime in ms since epoch
//   - dataChange: bool - whether the file changes table contents
func WriteMetadataSchema() *arrow.Schema {
	return arrow.NewSchema(
		[]arrow.Field{
			{Name: "path", Type: arrow.BinaryTypes.String, Nullable: true},
			{
				Name: "partitionValues",
				Type: arrow.MapOf(
					arrow.BinaryTypes.String,
					arrow.BinaryTypes.String,
				),
				Nullable: true,
			},
			{Name: "size", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: "modificationTime", Type: arrow.PrimitiveTypes.Int64, Nullable: true},
			{Name: "dataChange", Type: arrow.FixedWidthTypes.Boolean, Nullable: true},
		},
		nil,
	)
}
