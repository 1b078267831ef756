package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/go-zeromq/zmq4"
	"github.com/sirupsen/logrus"

	arrowipc "github.com/VanDung-dev/DeltaKernel-Engine/arrow"
	"github.com/VanDung-dev/DeltaKernel-Engine/data"
	"github.com/VanDung-dev/DeltaKernel-Engine/exchange"
	"github.com/VanDung-dev/DeltaKernel-Engine/kernel"
	"github.com/VanDung-dev/DeltaKernel-Engine/writer"
)

// MaxMessageSize is the maximum allowed ingest payload (50MB). Oversized
// requests are rejected before decoding.
const MaxMessageSize = 50 * 1024 * 1024

// ErrMessageTooLarge is returned when a payload exceeds MaxMessageSize.
var ErrMessageTooLarge = errors.New("message size exceeds maximum allowed size")

// EngineInfo identifies this server in commit info actions.
const EngineInfo = "deltakernel ingest server"

// IngestConfig configures the ingest server.
type IngestConfig struct {
	// Endpoint is the ZeroMQ endpoint to bind, e.g. "tcp://*:5601".
	Endpoint string

	// TablePath is the table appended to by every request.
	TablePath string

	// MaxMessageSize bounds accepted payloads; 0 means MaxMessageSize.
	MaxMessageSize int
}

// IngestServer appends one record batch per request to a table. Each
// request carries an Arrow IPC stream; the reply is "OK <version>" or
// "ERR <message>". Requests are handled strictly one at a time: the
// protocol supports one in-flight transaction per table.
type IngestServer struct {
	cfg     IngestConfig
	engine  *kernel.Engine
	codec   *arrowipc.Codec
	conv    *data.Converter
	parquet *writer.ParquetWriter
	metrics *Metrics
	log     logrus.FieldLogger

	sock    zmq4.Socket
	cancel  context.CancelFunc
	running bool
	mu      sync.Mutex
	done    chan struct{}
}

// NewIngestServer creates a server appending to the configured table.
// The server takes its own reference on the engine and releases it on
// Stop.
func NewIngestServer(cfg IngestConfig, engine *kernel.Engine, metrics *Metrics) *IngestServer {
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = MaxMessageSize
	}
	return &IngestServer{
		cfg:     cfg,
		engine:  engine.Retain(),
		codec:   arrowipc.NewCodec(),
		conv:    data.NewConverter(),
		parquet: writer.NewParquetWriter(),
		metrics: metrics,
		log:     logrus.StandardLogger().WithField("component", "ingest"),
	}
}

// Start binds the socket and serves requests until Stop is called.
func (s *IngestServer) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.sock = zmq4.NewRep(ctx)

	if err := s.sock.Listen(s.cfg.Endpoint); err != nil {
		cancel()
		s.mu.Unlock()
		return fmt.Errorf("failed to bind %s: %w", s.cfg.Endpoint, err)
	}

	s.running = true
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.log.WithField("endpoint", s.cfg.Endpoint).Info("ingest server listening")

	defer close(s.done)
	for {
		msg, err := s.sock.Recv()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				s.log.WithError(err).Warn("receive failed")
				continue
			}
		}

		reply := s.handleRequest(msg.Bytes())
		if err := s.sock.Send(zmq4.NewMsg(reply)); err != nil {
			s.log.WithError(err).Warn("reply failed")
		}
	}
}

// Stop shuts the server down and releases its engine reference.
func (s *IngestServer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	s.cancel()
	s.sock.Close()
	<-s.done

	if err := s.engine.Release(); err != nil {
		s.log.WithError(err).Warn("engine release failed")
	}
}

// handleRequest appends one batch in a full transaction and renders the
// reply. Every failure path reports the error message; a file already
// written when a later step fails is counted as orphaned.
func (s *IngestServer) handleRequest(payload []byte) []byte {
	start := time.Now()

	version, err := s.appendBatch(payload)
	if err != nil {
		s.metrics.RecordIngest("error", time.Since(start))
		s.log.WithError(err).Error("ingest failed")
		return []byte("ERR " + err.Error())
	}

	s.metrics.RecordIngest("ok", time.Since(start))
	return []byte(fmt.Sprintf("OK %d", version))
}

func (s *IngestServer) appendBatch(payload []byte) (int64, error) {
	if len(payload) == 0 {
		return 0, errors.New("empty payload")
	}
	if len(payload) > s.cfg.MaxMessageSize {
		return 0, fmt.Errorf("%w: %d bytes (max: %d)", ErrMessageTooLarge, len(payload), s.cfg.MaxMessageSize)
	}

	record, err := s.codec.DecodeBatch(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to decode batch: %w", err)
	}
	defer record.Release()

	commitStart := time.Now()

	txnRes := kernel.BeginTransaction(s.cfg.TablePath, s.engine)
	if txnRes.IsErr() {
		return 0, s.takeError(txnRes.UnwrapErr())
	}
	txn := txnRes.Unwrap()

	infoData, err := s.engineData(s.conv.CommitInfoBatch(map[string]string{"engineInfo": EngineInfo}))
	if err != nil {
		txn.Release()
		return 0, err
	}
	if res := txn.AttachCommitInfo(infoData); res.IsErr() {
		infoData.Release()
		txn.Release()
		return 0, s.takeError(res.UnwrapErr())
	}

	ctxRes := txn.WriteContext()
	if ctxRes.IsErr() {
		txn.Release()
		return 0, s.takeError(ctxRes.UnwrapErr())
	}

	meta, err := s.parquet.WriteBatch(ctxRes.Unwrap().TargetDir(), record)
	if err != nil {
		txn.Release()
		return 0, fmt.Errorf("failed to write data file: %w", err)
	}
	s.metrics.RecordFile(meta.Size)

	metaData, err := s.engineData(s.conv.WriteMetadataBatch(meta))
	if err != nil {
		s.metrics.OrphanedFiles.Inc()
		txn.Release()
		return 0, err
	}
	if res := txn.AttachAddFile(metaData); res.IsErr() {
		s.metrics.OrphanedFiles.Inc()
		metaData.Release()
		txn.Release()
		return 0, s.takeError(res.UnwrapErr())
	}

	res := txn.Commit(s.engine)
	if res.IsErr() {
		s.metrics.OrphanedFiles.Inc()
		s.metrics.RecordCommit(false, 0, time.Since(commitStart))
		return 0, s.takeError(res.UnwrapErr())
	}

	s.metrics.RecordCommit(true, 2, time.Since(commitStart))
	return res.Unwrap(), nil
}

// engineData moves a freshly built batch through the exchange contract
// into an EngineData handle.
func (s *IngestServer) engineData(record arrow.Record, err error) (*kernel.EngineData, error) {
	if err != nil {
		return nil, err
	}
	arr, sch, err := exchange.ExportRecord(record)
	if err != nil {
		record.Release()
		return nil, err
	}
	record.Release()

	res := s.engine.GetEngineData(arr, sch)
	if res.IsErr() {
		return nil, s.takeError(res.UnwrapErr())
	}
	return res.Unwrap(), nil
}

// takeError converts an owned kernel Error into a plain error, honoring
// the free-exactly-once obligation.
func (s *IngestServer) takeError(e *kernel.Error) error {
	msg := e.Error()
	_ = e.Free()
	return errors.New(msg)
}
