package kernel

import (
	"errors"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/VanDung-dev/DeltaKernel-Engine/actions"
	"github.com/VanDung-dev/DeltaKernel-Engine/data"
	"github.com/VanDung-dev/DeltaKernel-Engine/storage"
)

// WriteOperation is the operation name recorded in the commit info
// action of an append.
const WriteOperation = "WRITE"

// Transaction is the exclusive, single-use object accumulating actions
// toward one atomic commit. Commit always consumes it; on an error path
// that never reaches commit the owner must call Release.
type Transaction struct {
	root        string
	store       storage.ObjectStore
	conv        *data.Converter
	readVersion int64

	commitInfo map[string]string
	adds       []actions.Add

	log    logrus.FieldLogger
	handle exclusiveHandle
}

// BeginTransaction opens a transaction against the table at tablePath
// using the given engine. The table must already have a commit log; this
// protocol only appends.
func BeginTransaction(tablePath string, engine *Engine) Result[*Transaction] {
	if err := engine.live(); err != nil {
		return Err[*Transaction](err)
	}

	root, perr := normalizeTablePath(tablePath)
	if perr != nil {
		return Err[*Transaction](perr)
	}
	if root != engine.root {
		return Err[*Transaction](NewError(CodeInvalidArgument,
			"table path %s does not match engine root %s", root, engine.root))
	}

	version, verr := latestVersion(engine.store)
	if verr != nil {
		return Err[*Transaction](verr)
	}

	return Ok(&Transaction{
		root:        root,
		store:       engine.store,
		conv:        engine.conv,
		readVersion: version,
		log:         engine.log.WithField("table", root),
	})
}

// ReadVersion returns the table version the transaction was opened at.
func (t *Transaction) ReadVersion() int64 {
	return t.readVersion
}

// AttachCommitInfo folds the engine-identifying metadata into the pending
// commit. The data handle is consumed on success and only on success; a
// shape mismatch leaves ownership with the caller. Commit info can be
// attached once.
func (t *Transaction) AttachCommitInfo(info *EngineData) Result[*Transaction] {
	if err := t.handle.use("transaction"); err != nil {
		return Err[*Transaction](err)
	}
	if t.commitInfo != nil {
		return Err[*Transaction](NewError(CodeInvalidArgument, "commit info already attached"))
	}
	if info == nil {
		return Err[*Transaction](NewError(CodeInvalidArgument, "nil commit info data"))
	}

	record := info.Record()
	if record == nil {
		return Err[*Transaction](NewError(CodeInvalidHandle, "commit info data is no longer valid"))
	}

	parsed, err := t.conv.CommitInfoFromRecord(record)
	if err != nil {
		return Err[*Transaction](NewError(CodeSchemaMismatch, "commit info: %v", err))
	}

	record, cerr := info.take("commit info data")
	if cerr != nil {
		return Err[*Transaction](cerr)
	}
	record.Release()

	t.commitInfo = parsed
	return Ok(t)
}

// WriteContext derives the read-only descriptor of where this
// transaction's data files belong. The context is borrowed: it does not
// outlive the transaction and carries no lifecycle of its own.
func (t *Transaction) WriteContext() Result[*WriteContext] {
	if err := t.handle.use("transaction"); err != nil {
		return Err[*WriteContext](err)
	}
	return Ok(&WriteContext{targetDir: t.root})
}

// AttachAddFile folds one write-metadata batch into the pending commit,
// one add action per row. The data handle is consumed on success and only
// on success. Zero attach calls is a valid, metadata-only commit.
func (t *Transaction) AttachAddFile(meta *EngineData) Result[*Transaction] {
	if err := t.handle.use("transaction"); err != nil {
		return Err[*Transaction](err)
	}
	if meta == nil {
		return Err[*Transaction](NewError(CodeInvalidArgument, "nil write metadata"))
	}

	record := meta.Record()
	if record == nil {
		return Err[*Transaction](NewError(CodeInvalidHandle, "write metadata is no longer valid"))
	}

	files, err := t.conv.WriteMetadataFromRecord(record)
	if err != nil {
		return Err[*Transaction](NewError(CodeSchemaMismatch, "write metadata: %v", err))
	}

	adds := make([]actions.Add, 0, len(files))
	for _, f := range files {
		add := actions.Add{
			Path:             f.Path,
			PartitionValues:  partitionValuesOrEmpty(f.PartitionValues),
			Size:             f.Size,
			ModificationTime: f.ModificationTime,
			DataChange:       f.DataChange,
		}
		if verr := add.Validate(); verr != nil {
			return Err[*Transaction](NewError(CodeInvalidArgument, "write metadata: %v", verr))
		}
		adds = append(adds, add)
	}

	record, cerr := meta.take("write metadata")
	if cerr != nil {
		return Err[*Transaction](cerr)
	}
	record.Release()

	t.adds = append(t.adds, adds...)
	return Ok(t)
}

// Commit writes the pending log entry as the next table version. The
// transaction is consumed whether the commit succeeds or fails; the
// outcome is reported through the result, never by leaving the handle
// usable.
func (t *Transaction) Commit(engine *Engine) Result[int64] {
	if err := t.handle.consume("transaction"); err != nil {
		return Err[int64](err)
	}
	if err := engine.live(); err != nil {
		return Err[int64](err)
	}
	if t.commitInfo == nil {
		return Err[int64](NewError(CodeMissingCommitInfo,
			"commit info must be attached before commit"))
	}

	entry := &actions.LogEntry{}
	entry.Append(actions.Action{CommitInfo: actions.NewCommitInfo(WriteOperation, t.commitInfo)})
	for i := range t.adds {
		entry.Append(actions.Action{Add: &t.adds[i]})
	}

	payload, err := entry.Encode()
	if err != nil {
		return Err[int64](NewError(CodeInternal, "failed to encode log entry: %v", err))
	}

	version := t.readVersion + 1
	if err := t.store.PutIfAbsent(actions.CommitPath(version), payload); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return Err[int64](NewError(CodeStorage,
				"version %d was committed concurrently", version))
		}
		return Err[int64](wrapStorageErr("write commit", err))
	}

	t.log.WithFields(logrus.Fields{
		"version": version,
		"adds":    len(t.adds),
	}).Info("committed")

	return Ok(version)
}

// Release drops a transaction that will never be committed. A second
// release, or a release after commit, is a detectable error.
func (t *Transaction) Release() error {
	return t.handle.release()
}

// WriteContext is the read-only, transaction-scoped descriptor of where
// new data files belong.
type WriteContext struct {
	targetDir string
}

// TargetDir returns the directory new data files should be written to.
func (w *WriteContext) TargetDir() string {
	return w.targetDir
}

// TargetFilePath resolves a file name against the target directory.
func (w *WriteContext) TargetFilePath(name string) string {
	return filepath.Join(w.targetDir, name)
}

// latestVersion finds the newest commit version in the log, or a storage
// error if the path holds no table.
func latestVersion(store storage.ObjectStore) (int64, *Error) {
	entries, err := store.List(actions.LogDir)
	if err != nil {
		return 0, wrapStorageErr("list commit log", err)
	}

	version := int64(-1)
	for _, name := range entries {
		if v, ok := actions.ParseCommitVersion(name); ok && v > version {
			version = v
		}
	}
	if version < 0 {
		return 0, NewError(CodeStorage, "no commit log found: not a table")
	}
	return version, nil
}

func partitionValuesOrEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
