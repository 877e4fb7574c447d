// Package stream decouples similarity computation from persistence. A
// bounded queue of pair batches feeds a pool of writer workers that
// accumulate pairs and flush them to the store in bulk. A full queue blocks
// the producer, so computation can never outrun the database unboundedly.
package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lexibase/phonosim/internal/observe"
	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// ErrClosed reports an Enqueue after Close.
var ErrClosed = errors.New("stream: manager closed")

// Defaults for the manager's tunables.
const (
	DefaultWorkers       = 4
	DefaultQueueDepth    = 64
	DefaultBatchSize     = 20000
	DefaultFlushInterval = time.Second
	DefaultMaxRetries    = 3
	DefaultRetryBackoff  = 250 * time.Millisecond
)

// Inserter is the write half of the pair store the manager needs.
type Inserter interface {
	InsertBatch(ctx context.Context, pairs []vocabstore.Pair) (int64, error)
}

// Stats is a snapshot of the manager's counters.
type Stats struct {
	// Offered is the total number of pairs enqueued.
	Offered int64

	// Inserted is the number of pairs durably written.
	Inserted int64

	// Skipped is the number of offered pairs the store skipped as already
	// present.
	Skipped int64

	// Flushes is the number of bulk inserts issued.
	Flushes int64

	// Retries is the number of bulk inserts retried after transient
	// failures.
	Retries int64

	// Unflushed is the number of pairs abandoned by a fatal failure. Always
	// zero on a clean close.
	Unflushed int64
}

// Option is a functional option for configuring a [Manager].
type Option func(*Manager)

// WithWorkers sets the writer worker count.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithQueueDepth sets the bounded queue capacity in batches.
func WithQueueDepth(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.queueDepth = n
		}
	}
}

// WithBatchSize sets the pair count a worker accumulates before flushing.
func WithBatchSize(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithFlushInterval sets the partial-flush timeout: a worker holding pairs
// flushes them after this long even if its batch is not full.
func WithFlushInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.flushInterval = d
		}
	}
}

// WithMaxRetries sets how many times a failed bulk insert is retried before
// the failure is treated as fatal.
func WithMaxRetries(n int) Option {
	return func(m *Manager) {
		if n >= 0 {
			m.maxRetries = n
		}
	}
}

// WithRetryBackoff sets the initial retry backoff. Doubles per attempt.
func WithRetryBackoff(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retryBackoff = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		if log != nil {
			m.log = log
		}
	}
}

// WithMetrics sets the metrics instruments. Nil disables recording.
func WithMetrics(met *observe.Metrics) Option {
	return func(m *Manager) { m.met = met }
}

// job is one enqueued batch of pairs awaiting durable persistence.
type job struct {
	pairs []vocabstore.Pair
}

// Manager is the streaming persistence pipeline. Construct with [New], start
// with [Manager.Start], feed with [Manager.Enqueue], and shut down with
// [Manager.Close]. Enqueue is safe for a single producer; Barrier, Stats,
// and Close are safe for concurrent use.
type Manager struct {
	ins Inserter
	log *slog.Logger
	met *observe.Metrics

	workers       int
	queueDepth    int
	batchSize     int
	flushInterval time.Duration
	maxRetries    int
	retryBackoff  time.Duration

	queue chan job
	wg    sync.WaitGroup
	group *errgroup.Group
	gctx  context.Context

	closeOnce sync.Once
	closed    atomic.Bool

	offered   atomic.Int64
	inserted  atomic.Int64
	skipped   atomic.Int64
	flushes   atomic.Int64
	retries   atomic.Int64
	unflushed atomic.Int64
}

// New builds a manager writing through ins.
func New(ins Inserter, opts ...Option) *Manager {
	m := &Manager{
		ins:           ins,
		log:           slog.Default(),
		workers:       DefaultWorkers,
		queueDepth:    DefaultQueueDepth,
		batchSize:     DefaultBatchSize,
		flushInterval: DefaultFlushInterval,
		maxRetries:    DefaultMaxRetries,
		retryBackoff:  DefaultRetryBackoff,
	}
	for _, o := range opts {
		o(m)
	}
	m.queue = make(chan job, m.queueDepth)
	return m
}

// Start launches the writer workers. Must be called exactly once, before the
// first Enqueue.
func (m *Manager) Start(ctx context.Context) {
	m.group, m.gctx = errgroup.WithContext(ctx)
	for i := 0; i < m.workers; i++ {
		m.group.Go(func() error { return m.worker(m.gctx) })
	}
}

// Enqueue offers one batch of pairs to the writer pool. Blocks while the
// queue is full; that backpressure is the intended flow control. Returns an
// error once the pipeline has failed fatally or was closed.
func (m *Manager) Enqueue(ctx context.Context, pairs []vocabstore.Pair) error {
	if len(pairs) == 0 {
		return nil
	}
	if m.closed.Load() {
		return ErrClosed
	}

	m.wg.Add(1)
	select {
	case m.queue <- job{pairs: pairs}:
		m.offered.Add(int64(len(pairs)))
		if m.met != nil {
			m.met.QueueDepth.Add(ctx, 1)
		}
		return nil
	case <-m.gctx.Done():
		m.wg.Done()
		return fmt.Errorf("stream: enqueue: %w", context.Cause(m.gctx))
	case <-ctx.Done():
		m.wg.Done()
		return fmt.Errorf("stream: enqueue: %w", ctx.Err())
	}
}

// Barrier blocks until every batch enqueued so far has been durably flushed
// or abandoned by a fatal failure. After a fatal failure it returns the
// pipeline error; callers must not treat a non-nil return as durability.
func (m *Manager) Barrier(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("stream: barrier: %w", ctx.Err())
	}

	if err := context.Cause(m.gctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stream: barrier: %w", err)
	}
	if n := m.unflushed.Load(); n > 0 {
		return fmt.Errorf("stream: barrier: %d pairs unflushed", n)
	}
	return nil
}

// Close drains and flushes everything still queued, stops the workers, and
// returns the first fatal error. A non-nil error means Stats().Unflushed
// pairs were lost and the run must not advance its checkpoint past them.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.closed.Store(true)
		close(m.queue)
		err = m.group.Wait()

		// Workers that exited on a fatal error leave jobs behind; account
		// for them so Stats reports honestly.
		for j := range m.queue {
			m.unflushed.Add(int64(len(j.pairs)))
			m.wg.Done()
		}
		if n := m.unflushed.Load(); n > 0 && err == nil {
			err = fmt.Errorf("stream: close: %d pairs unflushed", n)
		}
	})
	return err
}

// Stats returns a snapshot of the manager's counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Offered:   m.offered.Load(),
		Inserted:  m.inserted.Load(),
		Skipped:   m.skipped.Load(),
		Flushes:   m.flushes.Load(),
		Retries:   m.retries.Load(),
		Unflushed: m.unflushed.Load(),
	}
}

// worker accumulates queued batches and flushes them when the accumulated
// batch is full, the flush interval elapses, or the queue closes.
func (m *Manager) worker(ctx context.Context) error {
	var (
		pending     []vocabstore.Pair
		pendingJobs int
	)
	ticker := time.NewTicker(m.flushInterval)
	defer ticker.Stop()

	flush := func() error {
		if pendingJobs == 0 {
			return nil
		}
		err := m.flushWithRetry(ctx, pending)
		if err != nil {
			m.unflushed.Add(int64(len(pending)))
		}
		// Jobs are settled either way so Barrier never deadlocks on a
		// fatal failure; Barrier surfaces the error separately.
		for i := 0; i < pendingJobs; i++ {
			m.wg.Done()
		}
		pending = nil
		pendingJobs = 0
		return err
	}

	absorb := func(j job) {
		if m.met != nil {
			m.met.QueueDepth.Add(ctx, -1)
		}
		pending = append(pending, j.pairs...)
		pendingJobs++
	}

	for {
		select {
		case j, ok := <-m.queue:
			if !ok {
				return flush()
			}
			absorb(j)
			// Absorb whatever is immediately available up to the batch cap,
			// then flush. Flushing on idle keeps Barrier latency at one
			// insert rather than one flush interval.
		drain:
			for len(pending) < m.batchSize {
				select {
				case j2, ok2 := <-m.queue:
					if !ok2 {
						return flush()
					}
					absorb(j2)
				default:
					break drain
				}
			}
			if err := flush(); err != nil {
				return err
			}
		case <-ticker.C:
			if err := flush(); err != nil {
				return err
			}
		case <-ctx.Done():
			if pendingJobs > 0 {
				m.unflushed.Add(int64(len(pending)))
				for i := 0; i < pendingJobs; i++ {
					m.wg.Done()
				}
			}
			return ctx.Err()
		}
	}
}

// flushWithRetry issues one bulk insert, retrying transient failures with
// doubling backoff up to the retry budget.
func (m *Manager) flushWithRetry(ctx context.Context, pairs []vocabstore.Pair) error {
	backoff := m.retryBackoff
	var lastErr error

	for attempt := 0; attempt <= m.maxRetries; attempt++ {
		if attempt > 0 {
			m.retries.Add(1)
			if m.met != nil {
				m.met.FlushRetries.Add(ctx, 1)
			}
			m.log.Warn("retrying pair flush",
				"attempt", attempt,
				"pairs", len(pairs),
				"error", lastErr,
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			backoff *= 2
		}

		inserted, err := m.ins.InsertBatch(ctx, pairs)
		if err == nil {
			m.flushes.Add(1)
			m.inserted.Add(inserted)
			m.skipped.Add(int64(len(pairs)) - inserted)
			if m.met != nil {
				m.met.InsertBatchSize.Record(ctx, int64(len(pairs)))
				m.met.PairsStored.Add(ctx, inserted)
				m.met.PairsSkipped.Add(ctx, int64(len(pairs))-inserted)
			}
			return nil
		}
		lastErr = err
	}

	return fmt.Errorf("stream: flush of %d pairs failed after %d retries: %w",
		len(pairs), m.maxRetries, lastErr)
}
