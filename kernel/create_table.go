package kernel

import (
	"errors"
	"fmt"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/VanDung-dev/DeltaKernel-Engine/actions"
	"github.com/VanDung-dev/DeltaKernel-Engine/storage"
)

// CreateTable writes the version-0 log entry (protocol and metadata
// actions) for a new table at the engine's root. The transaction protocol
// itself only appends, so a table must be created before the first
// BeginTransaction against it. Fails if the table already exists.
func CreateTable(engine *Engine, schema *arrow.Schema, tableID string) Result[int64] {
	if err := engine.live(); err != nil {
		return Err[int64](err)
	}
	if schema == nil {
		return Err[int64](NewError(CodeInvalidArgument, "table schema is nil"))
	}
	if tableID == "" {
		tableID = uuid.New().String()
	}

	schemaString, serr := SchemaString(schema)
	if serr != nil {
		return Err[int64](serr)
	}

	entry := &actions.LogEntry{}
	entry.Append(actions.Action{Protocol: actions.DefaultProtocol()})
	entry.Append(actions.Action{MetaData: actions.NewMetadata(tableID, schemaString, nil)})

	payload, err := entry.Encode()
	if err != nil {
		return Err[int64](NewError(CodeInternal, "failed to encode log entry: %v", err))
	}

	if err := engine.store.PutIfAbsent(actions.CommitPath(0), payload); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return Err[int64](NewError(CodeStorage, "table already exists at %s", engine.root))
		}
		return Err[int64](wrapStorageErr("write initial commit", err))
	}

	engine.log.WithField("table", engine.root).Info("created table")
	return Ok(int64(0))
}

// schemaField is the per-column shape inside a table schema string.
type schemaField struct {
	Name     string            `json:"name"`
	Type     string            `json:"type"`
	Nullable bool              `json:"nullable"`
	Metadata map[string]string `json:"metadata"`
}

type schemaStruct struct {
	Type   string        `json:"type"`
	Fields []schemaField `json:"fields"`
}

// SchemaString renders an arrow schema as the JSON schema string recorded
// in the table's metadata action.
func SchemaString(schema *arrow.Schema) (string, *Error) {
	out := schemaStruct{Type: "struct", Fields: make([]schemaField, 0, schema.NumFields())}

	for i := 0; i < schema.NumFields(); i++ {
		f := schema.Field(i)
		name, err := logicalTypeName(f.Type)
		if err != nil {
			return "", NewError(CodeSchemaMismatch, "field %s: %v", f.Name, err)
		}
		out.Fields = append(out.Fields, schemaField{
			Name:     f.Name,
			Type:     name,
			Nullable: f.Nullable,
			Metadata: map[string]string{},
		})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return "", NewError(CodeInternal, "failed to encode schema: %v", err)
	}
	return string(b), nil
}

// logicalTypeName maps an arrow type to its table-format type name.
func logicalTypeName(t arrow.DataType) (string, error) {
	switch t.ID() {
	case arrow.INT8:
		return "byte", nil
	case arrow.INT16:
		return "short", nil
	case arrow.INT32:
		return "integer", nil
	case arrow.INT64:
		return "long", nil
	case arrow.FLOAT32:
		return "float", nil
	case arrow.FLOAT64:
		return "double", nil
	case arrow.BOOL:
		return "boolean", nil
	case arrow.STRING:
		return "string", nil
	case arrow.BINARY:
		return "binary", nil
	case arrow.DATE32:
		return "date", nil
	case arrow.TIMESTAMP:
		return "timestamp", nil
	default:
		return "", fmt.Errorf("unsupported column type %s", strings.ToLower(t.String()))
	}
}
