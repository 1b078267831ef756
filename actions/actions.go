// Package actions defines the logical records appended to a table's commit log.
// This package implements:
// - CommitInfo, Add, Protocol and Metadata action types
// - JSON-lines encoding of one log entry (one action per line)
// - Commit file path helpers under _delta_log
package actions

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// LogDir is the directory under the table root holding commit files.
const LogDir = "_delta_log"

// Default protocol versions written for new tables.
const (
	DefaultMinReaderVersion = 3
	DefaultMinWriterVersion = 7
)

// ErrEmptyEntry is returned when encoding a log entry with no actions.
var ErrEmptyEntry = errors.New("log entry has no actions")

// CommitInfo records engine-identifying metadata for one commit.
type CommitInfo struct {
	Timestamp        int64             `json:"timestamp"`
	Operation        string            `json:"operation,omitempty"`
	EngineCommitInfo map[string]string `json:"engineCommitInfo,omitempty"`
}

// NewCommitInfo creates a CommitInfo stamped with the current time.
func NewCommitInfo(operation string, engineInfo map[string]string) *CommitInfo {
	return &CommitInfo{
		Timestamp:        time.Now().UnixMilli(),
		Operation:        operation,
		EngineCommitInfo: engineInfo,
	}
}

// Add records one newly written data file.
type Add struct {
	Path             string            `json:"path"`
	PartitionValues  map[string]string `json:"partitionValues"`
	Size             int64             `json:"size"`
	ModificationTime int64             `json:"modificationTime"`
	DataChange       bool              `json:"dataChange"`
}

// Validate checks the required fields of an Add action.
func (a *Add) Validate() error {
	if a.Path == "" {
		return errors.New("add action requires a path")
	}
	if a.Size < 0 {
		return fmt.Errorf("add action has negative size %d", a.Size)
	}
	return nil
}

// Protocol records the reader/writer versions required to use the table.
type Protocol struct {
	MinReaderVersion int32    `json:"minReaderVersion"`
	MinWriterVersion int32    `json:"minWriterVersion"`
	ReaderFeatures   []string `json:"readerFeatures"`
	WriterFeatures   []string `json:"writerFeatures"`
}

// DefaultProtocol returns the protocol action written for new tables.
func DefaultProtocol() *Protocol {
	return &Protocol{
		MinReaderVersion: DefaultMinReaderVersion,
		MinWriterVersion: DefaultMinWriterVersion,
		ReaderFeatures:   []string{},
		WriterFeatures:   []string{},
	}
}

// Format describes how data files of the table are encoded.
type Format struct {
	Provider string            `json:"provider"`
	Options  map[string]string `json:"options"`
}

// Metadata records the table identity and schema.
type Metadata struct {
	ID               string            `json:"id"`
	Format           Format            `json:"format"`
	SchemaString     string            `json:"schemaString"`
	PartitionColumns []string          `json:"partitionColumns"`
	Configuration    map[string]string `json:"configuration"`
	CreatedTime      int64             `json:"createdTime"`
}

// NewMetadata creates a parquet-format Metadata action for a new table.
func NewMetadata(tableID, schemaString string, partitionColumns []string) *Metadata {
	if partitionColumns == nil {
		partitionColumns = []string{}
	}
	return &Metadata{
		ID:               tableID,
		Format:           Format{Provider: "parquet", Options: map[string]string{}},
		SchemaString:     schemaString,
		PartitionColumns: partitionColumns,
		Configuration:    map[string]string{},
		CreatedTime:      time.Now().UnixMilli(),
	}
}

// Action is the single-field wrapper written per log line. Exactly one
// field is set per action.
type Action struct {
	CommitInfo *CommitInfo `json:"commitInfo,omitempty"`
	Add        *Add        `json:"add,omitempty"`
	Protocol   *Protocol   `json:"protocol,omitempty"`
	MetaData   *Metadata   `json:"metaData,omitempty"`
}

// LogEntry accumulates the ordered actions of one commit. Order is
// preserved in the persisted record and is externally observable.
type LogEntry struct {
	actions []Action
}

// Append adds an action to the entry.
func (e *LogEntry) Append(a Action) {
	e.actions = append(e.actions, a)
}

// Actions returns the actions in append order.
func (e *LogEntry) Actions() []Action {
	return e.actions
}

// Len returns the number of actions in the entry.
func (e *LogEntry) Len() int {
	return len(e.actions)
}

// Encode renders the entry as JSON lines, one action per line, in
// append order.
func (e *LogEntry) Encode() ([]byte, error) {
	if len(e.actions) == 0 {
		return nil, ErrEmptyEntry
	}

	var sb strings.Builder
	for i, a := range e.actions {
		line, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action %d: %w", i, err)
		}
		sb.Write(line)
		sb.WriteByte('\n')
	}
	return []byte(sb.String()), nil
}

// DecodeEntry parses JSON lines back into actions. Used by tests and
// log inspection tooling.
func DecodeEntry(data []byte) ([]Action, error) {
	var out []Action
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if line == "" {
			continue
		}
		var a Action
		if err := json.Unmarshal([]byte(line), &a); err != nil {
			return nil, fmt.Errorf("failed to decode log line: %w", err)
		}
		out = append(out, a)
	}
	return out, nil
}

// CommitPath returns the log-relative path of the commit file for a version,
// e.g. _delta_log/00000000000000000000.json for version 0.
func CommitPath(version int64) string {
	return path.Join(LogDir, fmt.Sprintf("%020d.json", version))
}

// ParseCommitVersion extracts the version from a commit file name.
// Returns false for names that are not commit files.
func ParseCommitVersion(name string) (int64, bool) {
	base := path.Base(name)
	if !strings.HasSuffix(base, ".json") {
		return 0, false
	}
	num := strings.TrimSuffix(base, ".json")
	if len(num) != 20 {
		return 0, false
	}
	v, err := strconv.ParseInt(num, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}
