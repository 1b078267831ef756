package kernel

import (
	"strings"
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/sirupsen/logrus"

	"github.com/VanDung-dev/DeltaKernel-Engine/data"
	"github.com/VanDung-dev/DeltaKernel-Engine/exchange"
	"github.com/VanDung-dev/DeltaKernel-Engine/storage"
)

// Builder option keys understood by the default engine.
const (
	// OptionStorageBackend selects the object store: "local" (default)
	// or "memory".
	OptionStorageBackend = "storage.backend"

	// OptionLogCacheSize sets the LRU size of the commit log read cache.
	OptionLogCacheSize = "storage.log_cache_size"
)

// EngineBuilder allows setting options on the Engine before building it.
type EngineBuilder struct {
	root    string
	options map[string]string
	store   storage.ObjectStore
	logger  logrus.FieldLogger
	handle  exclusiveHandle
}

// NewEngineBuilder validates the table path and returns a builder for an
// engine rooted there. An empty or blank path is rejected up front so the
// workflow never proceeds to acquire an engine against nothing.
func NewEngineBuilder(tablePath string) Result[*EngineBuilder] {
	root, err := normalizeTablePath(tablePath)
	if err != nil {
		return Err[*EngineBuilder](err)
	}
	return Ok(&EngineBuilder{
		root:    root,
		options: make(map[string]string),
		logger:  logrus.StandardLogger().WithField("component", "kernel"),
	})
}

// SetOption sets a named option on the builder.
func (b *EngineBuilder) SetOption(key, value string) {
	b.options[key] = value
}

// WithStore overrides the object store the engine will use. Intended for
// embedding callers and tests that provide their own storage.
func (b *EngineBuilder) WithStore(store storage.ObjectStore) *EngineBuilder {
	b.store = store
	return b
}

// WithLogger overrides the engine logger.
func (b *EngineBuilder) WithLogger(l logrus.FieldLogger) *EngineBuilder {
	b.logger = l
	return b
}

// Build consumes the builder and returns the shared engine. The builder
// must not be used again afterwards.
func (b *EngineBuilder) Build() Result[*Engine] {
	if err := b.handle.consume("engine builder"); err != nil {
		return Err[*Engine](err)
	}

	store := b.store
	if store == nil {
		backend := b.options[OptionStorageBackend]
		if backend == "" && strings.HasPrefix(b.root, "memory://") {
			backend = "memory"
		}
		switch backend {
		case "memory":
			store = storage.NewMemoryStore()
		case "", "local":
			local, err := storage.NewLocalStore(b.root)
			if err != nil {
				return Err[*Engine](wrapStorageErr("open table root", err))
			}
			store = local
		default:
			return Err[*Engine](NewError(CodeInvalidArgument,
				"unknown storage backend %q", backend))
		}
	}

	cached, err := storage.NewCachingStore(store, cacheSize(b.options))
	if err != nil {
		return Err[*Engine](NewError(CodeAllocation, "failed to create log cache: %v", err))
	}

	engine := &Engine{
		root:    b.root,
		store:   cached,
		mem:     memory.DefaultAllocator,
		conv:    data.NewConverter(),
		options: b.options,
		log:     b.logger,
		refs:    1,
	}
	return Ok(engine)
}

// GetDefaultEngine builds an engine with default options, the one-step
// acquisition path.
func GetDefaultEngine(tablePath string) Result[*Engine] {
	res := NewEngineBuilder(tablePath)
	if res.IsErr() {
		return Err[*Engine](res.UnwrapErr())
	}
	return res.Unwrap().Build()
}

// Engine is the shared capability provider: storage access, allocation
// and data conversion. It is ref-counted; every owner releases its
// reference when done.
type Engine struct {
	root    string
	store   storage.ObjectStore
	mem     memory.Allocator
	conv    *data.Converter
	options map[string]string
	log     logrus.FieldLogger

	refs int64
}

// Retain acquires an additional reference and returns the engine.
func (e *Engine) Retain() *Engine {
	atomic.AddInt64(&e.refs, 1)
	return e
}

// Release drops one reference. Releasing more times than retained is a
// detectable error.
func (e *Engine) Release() error {
	for {
		n := atomic.LoadInt64(&e.refs)
		if n <= 0 {
			return ErrAlreadyReleased
		}
		if atomic.CompareAndSwapInt64(&e.refs, n, n-1) {
			return nil
		}
	}
}

// live returns an invalid-handle error if every reference has been
// released.
func (e *Engine) live() *Error {
	if atomic.LoadInt64(&e.refs) <= 0 {
		return NewError(CodeInvalidHandle, "engine has been released")
	}
	return nil
}

// Root returns the normalized table root path.
func (e *Engine) Root() string {
	return e.root
}

// Store returns the engine's object store.
func (e *Engine) Store() storage.ObjectStore {
	return e.store
}

// Allocator returns the engine's memory allocator.
func (e *Engine) Allocator() memory.Allocator {
	return e.mem
}

// Option returns the value of a builder option.
func (e *Engine) Option(key string) (string, bool) {
	v, ok := e.options[key]
	return v, ok
}

// GetEngineData imports one exported batch into a kernel-understood
// exclusive handle. The call consumes both exchange structures, success
// or failure: the kernel is the consumer and finishes with them here.
func (e *Engine) GetEngineData(arr *exchange.ArrayData, sch *exchange.SchemaData) Result[*EngineData] {
	if err := e.live(); err != nil {
		return Err[*EngineData](err)
	}
	if arr == nil || sch == nil {
		return Err[*EngineData](NewError(CodeInvalidArgument, "nil exchange structure"))
	}

	record, impErr := exchange.ImportRecord(arr, sch)

	// Once-only release obligation now rests with the kernel.
	if relErr := arr.Release(); relErr != nil && impErr == nil {
		record.Release()
		return Err[*EngineData](NewError(CodeInvalidHandle, "array structure: %v", relErr))
	}
	if relErr := sch.Release(); relErr != nil && impErr == nil {
		record.Release()
		return Err[*EngineData](NewError(CodeInvalidHandle, "schema structure: %v", relErr))
	}

	if impErr != nil {
		return Err[*EngineData](NewError(CodeSchemaMismatch, "failed to import batch: %v", impErr))
	}
	return Ok(&EngineData{rec: record})
}

// EngineData is an exclusive handle to one imported row batch. Attaching
// it to a transaction consumes it.
type EngineData struct {
	rec    arrow.Record
	handle exclusiveHandle
}

// Len returns the number of rows, or 0 once the handle is no longer
// valid.
func (d *EngineData) Len() int64 {
	if err := d.handle.use("engine data"); err != nil {
		return 0
	}
	return d.rec.NumRows()
}

// Record borrows the underlying batch without transferring ownership.
// Returns nil once the handle is no longer valid.
func (d *EngineData) Record() arrow.Record {
	if err := d.handle.use("engine data"); err != nil {
		return nil
	}
	return d.rec
}

// Release drops a handle that was never attached. A second release is a
// detectable error.
func (d *EngineData) Release() error {
	if err := d.handle.release(); err != nil {
		return err
	}
	d.rec.Release()
	return nil
}

// take consumes the handle, transferring the batch to the callee.
func (d *EngineData) take(what string) (arrow.Record, *Error) {
	if err := d.handle.consume(what); err != nil {
		return nil, err
	}
	return d.rec, nil
}

// normalizeTablePath validates and cleans a caller-supplied table path.
func normalizeTablePath(tablePath string) (string, *Error) {
	p := strings.TrimSpace(tablePath)
	if p == "" {
		return "", NewError(CodeInvalidArgument, "table path is empty")
	}
	p = strings.TrimPrefix(p, "file://")
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "", NewError(CodeInvalidArgument, "table path %q has no directory component", tablePath)
	}
	return p, nil
}

func cacheSize(options map[string]string) int {
	if v, ok := options[OptionLogCacheSize]; ok {
		var n int
		for _, ch := range v {
			if ch < '0' || ch > '9' {
				return storage.DefaultCacheSize
			}
			n = n*10 + int(ch-'0')
		}
		if n > 0 {
			return n
		}
	}
	return storage.DefaultCacheSize
}
