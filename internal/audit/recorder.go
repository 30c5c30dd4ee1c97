package audit

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/blake2b"

	"quoin/internal/audit/metrics"
	"quoin/internal/platform/config"
	id "quoin/pkg/domain"
)

// sinkTimeout bounds one sink append so a hung sink cannot stall the
// dispatch worker indefinitely.
const sinkTimeout = 5 * time.Second

// Sink receives sealed entry batches from the dispatch worker. Appends
// must be safe to retry: the worker never retries, but process restarts
// can replay recent entries into idempotent sinks.
type Sink interface {
	Append(ctx context.Context, entries []Entry) error
}

type namedSink struct {
	name string
	sink Sink
}

// Recorder accepts entries from request goroutines and dispatches them to
// the configured sinks from a single worker. The worker assigns sequence
// numbers and the blake2b hash chain, so sealing needs no locking.
//
// Record never blocks and never fails: when the ring buffer is full the
// oldest unsealed entry is dropped and counted.
type Recorder struct {
	cfg     config.AuditConfig
	buffer  *RingBuffer
	notify  chan struct{}
	sinks   []namedSink
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Chain state, owned by the worker goroutine.
	sequence    uint64
	prevHash    []byte
	lastDropped int64

	done   chan struct{}
	wg     sync.WaitGroup
	closed atomic.Bool
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger for dispatch failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// WithMetrics enables pipeline metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// WithSink registers a dispatch target. The name labels sink error
// metrics and logs. Sinks are appended in registration order.
func WithSink(name string, sink Sink) Option {
	return func(r *Recorder) {
		r.sinks = append(r.sinks, namedSink{name: name, sink: sink})
	}
}

// NewRecorder builds a recorder and starts its dispatch worker.
func NewRecorder(cfg config.AuditConfig, opts ...Option) *Recorder {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}

	r := &Recorder{
		cfg:    cfg,
		buffer: NewRingBuffer(cfg.BufferSize),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.New(slog.DiscardHandler)
	}

	r.wg.Add(1)
	go r.run()
	return r
}

// Record enqueues one entry for dispatch, filling in the event ID and
// timestamp when the caller left them zero. Entries recorded after Close
// are silently discarded.
func (r *Recorder) Record(entry Entry) {
	if r.closed.Load() {
		return
	}

	if entry.EventID.IsNil() {
		entry.EventID = id.NewEventID()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	r.buffer.Enqueue(entry)
	r.metrics.IncrementRecorded()
	r.metrics.SetBufferDepth(r.buffer.Len())

	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// Depth reports how many entries are waiting for dispatch. Exposed on the
// health endpoint.
func (r *Recorder) Depth() int {
	return r.buffer.Len()
}

// Dropped reports how many entries were lost to buffer overflow.
func (r *Recorder) Dropped() int64 {
	return r.buffer.Dropped()
}

// Close stops accepting entries, drains the buffer to the sinks and waits
// for the worker to finish. Safe to call more than once.
func (r *Recorder) Close() {
	if !r.closed.CompareAndSwap(false, true) {
		return
	}
	close(r.done)
	r.wg.Wait()
}

func (r *Recorder) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			for r.flush() > 0 {
			}
			return
		case <-r.notify:
			r.flush()
		case <-ticker.C:
			r.flush()
		}
	}
}

// flush seals one batch and appends it to every sink. Sink failures are
// logged and counted; the batch is not retried and later sinks still run.
func (r *Recorder) flush() int {
	batch := r.buffer.DequeueBatch(r.cfg.BatchSize)
	if len(batch) == 0 {
		return 0
	}

	for i := range batch {
		r.seal(&batch[i])
	}

	ctx, cancel := context.WithTimeout(context.Background(), sinkTimeout)
	defer cancel()

	for _, s := range r.sinks {
		if err := s.sink.Append(ctx, batch); err != nil {
			r.logger.Error("audit sink append failed",
				"sink", s.name,
				"entries", len(batch),
				"error", err,
			)
			r.metrics.IncrementSinkError(s.name)
		}
	}

	r.metrics.ObserveFlush(len(batch))
	r.metrics.SetBufferDepth(r.buffer.Len())
	if d := r.buffer.Dropped(); d > r.lastDropped {
		r.metrics.AddDropped(d - r.lastDropped)
		r.lastDropped = d
	}
	return len(batch)
}

// seal assigns the next sequence number and links the entry into the hash
// chain: each entry hashes the previous entry's digest together with its
// own sealed payload, so rewriting history invalidates every later hash.
func (r *Recorder) seal(e *Entry) {
	r.sequence++
	e.Sequence = r.sequence
	e.PrevHash = hex.EncodeToString(r.prevHash)

	digest := chainDigest(r.prevHash, *e)
	e.EntryHash = hex.EncodeToString(digest)
	r.prevHash = digest
}

func chainDigest(prev []byte, e Entry) []byte {
	e.EntryHash = ""
	payload, err := json.Marshal(e)
	if err != nil {
		// Entry only marshals captured JSON; keep the chain moving on the
		// identifying fields alone.
		payload = []byte(e.EventID.String())
	}

	h, _ := blake2b.New256(nil)
	h.Write(prev)
	h.Write(payload)
	return h.Sum(nil)
}

// VerifyChain recomputes the hash chain over sealed entries in sequence
// order and reports the first entry whose hashes do not match. An empty
// slice verifies trivially.
func VerifyChain(entries []Entry) error {
	var prev []byte
	for i, e := range entries {
		if e.PrevHash != hex.EncodeToString(prev) {
			return fmt.Errorf("entry %d (sequence %d): prev hash mismatch", i, e.Sequence)
		}
		digest := chainDigest(prev, e)
		if e.EntryHash != hex.EncodeToString(digest) {
			return fmt.Errorf("entry %d (sequence %d): entry hash mismatch", i, e.Sequence)
		}
		prev = digest
	}
	return nil
}
