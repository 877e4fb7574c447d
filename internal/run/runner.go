// Package run orchestrates the similarity pipeline: profile backfill,
// checkpointed block sweeps over the pair space, and run status reporting.
//
// A similarity run walks the triangular block schedule, scores each block,
// hands the surviving pairs to the streaming writer, waits for durability,
// and only then advances its checkpoint. A resumed run therefore reprocesses
// at most one block; the store's duplicate skipping absorbs the overlap.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/lexibase/phonosim/internal/batch"
	"github.com/lexibase/phonosim/internal/observe"
	"github.com/lexibase/phonosim/internal/simengine"
	"github.com/lexibase/phonosim/internal/stream"
	"github.com/lexibase/phonosim/internal/vectorize"
	"github.com/lexibase/phonosim/pkg/phonetics"
	"github.com/lexibase/phonosim/pkg/vocabstore"
)

// ErrCheckpointMismatch reports that the latest checkpoint was recorded
// against a different vocabulary or threshold and cannot be resumed.
var ErrCheckpointMismatch = errors.New("run: checkpoint does not match current run parameters")

// Sink is the streaming persistence pipeline the runner drives. Satisfied by
// [stream.Manager].
type Sink interface {
	Start(ctx context.Context)
	Enqueue(ctx context.Context, pairs []vocabstore.Pair) error
	Barrier(ctx context.Context) error
	Close() error
	Stats() stream.Stats
}

// WordTranscriber produces phonetic profiles for vocabulary words. Satisfied
// by [github.com/lexibase/phonosim/internal/transcribe.Transcriber].
type WordTranscriber interface {
	Transcribe(ctx context.Context, word phonetics.Word) (*phonetics.Profile, error)
}

// Stores bundles the persistence interfaces a runner needs.
type Stores struct {
	Words       vocabstore.WordStore
	Profiles    vocabstore.ProfileStore
	Pairs       vocabstore.PairStore
	Checkpoints vocabstore.CheckpointStore
}

// Option is a functional option for configuring a [Runner].
type Option func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// WithMetrics sets the metrics instruments. Nil disables recording.
func WithMetrics(met *observe.Metrics) Option {
	return func(r *Runner) { r.met = met }
}

// WithBlockSize sets the initial block dimensions of a fresh run. Resumed
// runs keep their checkpointed dimensions.
func WithBlockSize(rows, cols int) Option {
	return func(r *Runner) {
		if rows > 0 {
			r.blockRows = rows
		}
		if cols > 0 {
			r.blockCols = cols
		}
	}
}

// WithResume makes Similarity continue from the latest unfinished checkpoint
// instead of starting a fresh run.
func WithResume(on bool) Option {
	return func(r *Runner) { r.resume = on }
}

// Runner executes similarity runs against a fixed engine and encoder.
type Runner struct {
	stores Stores
	enc    *vectorize.Encoder
	eng    *simengine.Engine
	sink   Sink
	trans  WordTranscriber

	log *slog.Logger
	met *observe.Metrics

	blockRows int
	blockCols int
	resume    bool
}

// New builds a runner. The transcriber may be nil when only Similarity and
// Status are used.
func New(stores Stores, enc *vectorize.Encoder, eng *simengine.Engine, sink Sink, trans WordTranscriber, opts ...Option) *Runner {
	r := &Runner{
		stores:    stores,
		enc:       enc,
		eng:       eng,
		sink:      sink,
		trans:     trans,
		log:       slog.Default(),
		blockRows: batch.DefaultBlockSize,
		blockCols: batch.DefaultBlockSize,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// BackfillReport summarises one backfill pass.
type BackfillReport struct {
	// Transcribed is the number of profiles produced and stored.
	Transcribed int

	// Failed is the number of words no source could transcribe.
	Failed int

	// BySource counts produced profiles per transcription source.
	BySource map[phonetics.Source]int
}

// Backfill transcribes and stores profiles for every word that has none yet.
// limit <= 0 processes all missing words. Words that cannot be transcribed
// are logged and skipped; only store and context failures abort the pass.
func (r *Runner) Backfill(ctx context.Context, limit int) (*BackfillReport, error) {
	if r.trans == nil {
		return nil, errors.New("run: backfill needs a transcriber")
	}

	words, err := r.stores.Words.ListMissingProfiles(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("run: list missing profiles: %w", err)
	}

	rep := &BackfillReport{BySource: make(map[phonetics.Source]int)}
	for _, w := range words {
		if err := ctx.Err(); err != nil {
			return rep, fmt.Errorf("run: backfill interrupted: %w", err)
		}

		p, err := r.trans.Transcribe(ctx, w)
		if err != nil {
			if ctx.Err() != nil {
				return rep, fmt.Errorf("run: backfill interrupted: %w", ctx.Err())
			}
			r.log.Warn("word not transcribable, skipping",
				"word_id", w.ID,
				"term", w.Term,
				"error", err,
			)
			rep.Failed++
			continue
		}

		if err := r.stores.Profiles.Upsert(ctx, p); err != nil {
			return rep, fmt.Errorf("run: store profile for word %d: %w", w.ID, err)
		}
		rep.Transcribed++
		rep.BySource[p.Source]++
	}

	r.log.Info("backfill finished",
		"transcribed", rep.Transcribed,
		"failed", rep.Failed,
	)
	return rep, nil
}

// Report summarises one similarity run.
type Report struct {
	RunID string
	State vocabstore.RunState

	// VocabSize is the number of profiled words swept.
	VocabSize int

	// Blocks is the number of blocks computed and flushed.
	Blocks int

	// PairsComputed is the number of threshold survivors handed to the sink.
	PairsComputed int64

	// Stream is the sink's counter snapshot at the end of the run.
	Stream stream.Stats

	Elapsed time.Duration
}

// Similarity executes one checkpointed sweep over the pair space of all
// profiled words. A cancelled context pauses the run with its checkpoint
// saved; any other failure marks it failed, also resumable once the cause
// is fixed.
func (r *Runner) Similarity(ctx context.Context) (*Report, error) {
	start := time.Now()

	feats, err := r.loadFeatures(ctx)
	if err != nil {
		return nil, err
	}
	n := len(feats)

	sched, cp, err := r.openRun(ctx, n)
	if err != nil {
		return nil, err
	}

	rep := &Report{RunID: cp.RunID, VocabSize: n}

	r.sink.Start(ctx)
	runErr := r.sweep(ctx, sched, cp, feats, rep)
	if cerr := r.sink.Close(); cerr != nil && runErr == nil {
		runErr = cerr
	}
	rep.Stream = r.sink.Stats()
	rep.Elapsed = time.Since(start)

	// The final checkpoint write uses a fresh context: the run context may
	// be the very thing that was cancelled.
	final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	switch {
	case runErr == nil:
		cp.State = vocabstore.RunCompleted
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		cp.State = vocabstore.RunPaused
	default:
		cp.State = vocabstore.RunFailed
	}
	rep.State = cp.State

	if err := r.stores.Checkpoints.Put(final, cp); err != nil {
		r.log.Error("final checkpoint write failed", "run_id", cp.RunID, "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("run: final checkpoint: %w", err)
		}
	}

	r.log.Info("similarity run finished",
		"run_id", cp.RunID,
		"state", string(cp.State),
		"blocks", rep.Blocks,
		"pairs_computed", rep.PairsComputed,
		"pairs_stored", rep.Stream.Inserted,
		"elapsed", rep.Elapsed,
	)
	return rep, runErr
}

// loadFeatures reads every stored profile, ordered by word ID, and encodes
// it. The ascending order is what lets the engine canonicalize pairs by
// index comparison alone.
func (r *Runner) loadFeatures(ctx context.Context) ([]vectorize.Features, error) {
	profiles, err := r.stores.Profiles.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("run: load profiles: %w", err)
	}
	feats := make([]vectorize.Features, len(profiles))
	for i := range profiles {
		feats[i] = r.enc.Encode(&profiles[i])
	}
	return feats, nil
}

// openRun builds the block scheduler and its checkpoint, resuming the latest
// unfinished run when requested.
func (r *Runner) openRun(ctx context.Context, n int) (*batch.Scheduler, *vocabstore.Checkpoint, error) {
	if r.resume {
		prev, err := r.stores.Checkpoints.Latest(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("run: load checkpoint: %w", err)
		}
		if prev != nil && prev.State != vocabstore.RunCompleted {
			if prev.VocabSize != n || prev.Threshold != r.eng.Threshold() {
				return nil, nil, fmt.Errorf("%w: checkpoint %s has vocab %d threshold %g, run has vocab %d threshold %g",
					ErrCheckpointMismatch, prev.RunID,
					prev.VocabSize, prev.Threshold, n, r.eng.Threshold())
			}
			sched, err := batch.New(n,
				batch.WithBlockSize(prev.BlockRows, prev.BlockCols),
				batch.WithCursor(prev.RowStart, prev.ColStart),
			)
			if err != nil {
				return nil, nil, fmt.Errorf("run: resume scheduler: %w", err)
			}
			r.log.Info("resuming similarity run",
				"run_id", prev.RunID,
				"row", prev.RowStart,
				"col", prev.ColStart,
			)
			prev.State = vocabstore.RunRunning
			return sched, prev, nil
		}
	}

	sched, err := batch.New(n, batch.WithBlockSize(r.blockRows, r.blockCols))
	if err != nil {
		return nil, nil, fmt.Errorf("run: scheduler: %w", err)
	}
	rows, cols := sched.BlockSize()
	cp := &vocabstore.Checkpoint{
		RunID:     uuid.NewString(),
		VocabSize: n,
		Threshold: r.eng.Threshold(),
		BlockRows: rows,
		BlockCols: cols,
		State:     vocabstore.RunRunning,
	}
	return sched, cp, nil
}

// sweep runs the block loop. On return cp holds the cursor of the next
// unprocessed block, never one whose pairs might not be durable.
func (r *Runner) sweep(ctx context.Context, sched *batch.Scheduler, cp *vocabstore.Checkpoint, feats []vectorize.Features, rep *Report) error {
	if err := r.stores.Checkpoints.Put(ctx, cp); err != nil {
		return fmt.Errorf("run: initial checkpoint: %w", err)
	}

	for {
		b, ok := sched.Current()
		if !ok {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		blockStart := time.Now()
		pairs, err := r.eng.ComputeBlock(ctx,
			feats[b.RowStart:b.RowStart+b.Rows],
			feats[b.ColStart:b.ColStart+b.Cols],
			b.RowStart, b.ColStart,
		)
		if errors.Is(err, simengine.ErrBlockTooLarge) {
			if r.met != nil {
				r.met.BlockRetries.Add(ctx, 1)
			}
			if herr := sched.Halve(); herr != nil {
				return fmt.Errorf("run: block at (%d,%d) cannot fit the cell budget: %w", b.RowStart, b.ColStart, herr)
			}
			rows, cols := sched.BlockSize()
			cp.BlockRows, cp.BlockCols = rows, cols
			r.log.Warn("block over budget, halving",
				"row", b.RowStart, "col", b.ColStart,
				"rows", rows, "cols", cols,
			)
			continue
		}
		if err != nil {
			return err
		}
		if r.met != nil {
			r.met.BlockDuration.Record(ctx, time.Since(blockStart).Seconds())
			r.met.PairsComputed.Add(ctx, int64(b.Rows)*int64(b.Cols))
		}
		rep.PairsComputed += int64(len(pairs))

		if err := r.sink.Enqueue(ctx, pairs); err != nil {
			return err
		}
		if err := r.sink.Barrier(ctx); err != nil {
			return err
		}

		// The block is durable; only now may the cursor move past it.
		sched.Advance()
		if next, ok := sched.Current(); ok {
			cp.RowStart, cp.ColStart = next.RowStart, next.ColStart
		} else {
			cp.RowStart, cp.ColStart = cp.VocabSize, cp.VocabSize
		}
		if err := r.stores.Checkpoints.Put(ctx, cp); err != nil {
			return fmt.Errorf("run: checkpoint after block (%d,%d): %w", b.RowStart, b.ColStart, err)
		}
		rep.Blocks++
	}
}

// Status is a point-in-time view of the pipeline's persisted state.
type Status struct {
	Words    int64
	Profiles int64
	Pairs    int64

	// SourceCounts breaks profiles down by transcription source.
	SourceCounts map[phonetics.Source]int64

	// LatestRun is nil when no run has ever been recorded.
	LatestRun *vocabstore.Checkpoint

	// Progress is the latest run's estimated sweep fraction in [0, 1].
	// Zero when no run exists.
	Progress float64
}

// Status reports store counts and the latest run's checkpoint.
func (r *Runner) Status(ctx context.Context) (*Status, error) {
	st := &Status{}
	var err error

	if st.Words, err = r.stores.Words.WordCount(ctx); err != nil {
		return nil, fmt.Errorf("run: count words: %w", err)
	}
	if st.Profiles, err = r.stores.Profiles.ProfileCount(ctx); err != nil {
		return nil, fmt.Errorf("run: count profiles: %w", err)
	}
	if st.Pairs, err = r.stores.Pairs.PairCount(ctx); err != nil {
		return nil, fmt.Errorf("run: count pairs: %w", err)
	}
	if st.SourceCounts, err = r.stores.Profiles.SourceCounts(ctx); err != nil {
		return nil, fmt.Errorf("run: count sources: %w", err)
	}

	cp, err := r.stores.Checkpoints.Latest(ctx)
	if err != nil {
		return nil, fmt.Errorf("run: load checkpoint: %w", err)
	}
	if cp == nil {
		return st, nil
	}
	st.LatestRun = cp

	if cp.State == vocabstore.RunCompleted {
		st.Progress = 1
		return st, nil
	}
	sched, err := batch.New(cp.VocabSize,
		batch.WithBlockSize(cp.BlockRows, cp.BlockCols),
		batch.WithCursor(cp.RowStart, cp.ColStart),
	)
	if err == nil {
		st.Progress = sched.Progress()
	}
	return st, nil
}
