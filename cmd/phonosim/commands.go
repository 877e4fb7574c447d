package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/lexibase/phonosim/internal/config"
	"github.com/lexibase/phonosim/internal/observe"
	runpkg "github.com/lexibase/phonosim/internal/run"
	"github.com/lexibase/phonosim/internal/simengine"
	"github.com/lexibase/phonosim/internal/stream"
	"github.com/lexibase/phonosim/internal/transcribe"
	"github.com/lexibase/phonosim/internal/vectorize"
	"github.com/lexibase/phonosim/pkg/vocabstore/postgres"
)

// defaultThreshold is used when neither the config nor a flag sets one.
const defaultThreshold = 0.4

func newMigrateCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the profile, pair, and checkpoint tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := st.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			// Connecting already runs the migration; reaching here means it
			// succeeded.
			fmt.Println("schema is up to date")
			return nil
		},
	}
}

func newBackfillCmd(st *cliState) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Transcribe words that have no phonetic profile yet",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := st.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			trans, err := st.buildTranscriber()
			if err != nil {
				return err
			}
			enc, eng, err := buildEngine(st.cfg, defaultThreshold, false)
			if err != nil {
				return err
			}

			r := runpkg.New(stores(store), enc, eng, stream.New(store), trans)
			rep, err := r.Backfill(ctx, limit)
			if err != nil {
				return err
			}

			fmt.Printf("transcribed %d words (%d failed)\n", rep.Transcribed, rep.Failed)
			for src, n := range rep.BySource {
				fmt.Printf("  %-12s %d\n", src, n)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum words to transcribe (0 = all)")
	return cmd
}

func newSimilarityCmd(st *cliState) *cobra.Command {
	var (
		threshold     float64
		blockSize     int
		forceFallback bool
		resume        bool
	)

	cmd := &cobra.Command{
		Use:   "similarity",
		Short: "Run the pairwise similarity sweep",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := st.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			thr := defaultThreshold
			if st.cfg.Similarity.Threshold > 0 {
				thr = st.cfg.Similarity.Threshold
			}
			if cmd.Flags().Changed("threshold") {
				thr = threshold
			}
			scalar := st.cfg.Similarity.ScalarOnly || forceFallback

			enc, eng, err := buildEngine(st.cfg, thr, scalar)
			if err != nil {
				return err
			}

			bs := st.cfg.Similarity.BlockSize
			if cmd.Flags().Changed("block-size") {
				bs = blockSize
			}

			r := runpkg.New(stores(store), enc, eng, buildStream(st.cfg, store), nil,
				runpkg.WithMetrics(observe.DefaultMetrics()),
				runpkg.WithBlockSize(bs, bs),
				runpkg.WithResume(resume),
			)
			rep, err := r.Similarity(ctx)
			if rep != nil {
				printReport(rep)
			}
			return err
		},
	}
	cmd.Flags().Float64Var(&threshold, "threshold", defaultThreshold, "minimum overall similarity to store")
	cmd.Flags().IntVar(&blockSize, "block-size", 0, "initial block edge length (0 = default)")
	cmd.Flags().BoolVar(&forceFallback, "force-fallback", false, "disable SIMD and use the scalar path")
	cmd.Flags().BoolVar(&resume, "resume", false, "continue the latest unfinished run")
	return cmd
}

func newStatusCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show store counts and the latest run's progress",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := st.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			enc, eng, err := buildEngine(st.cfg, defaultThreshold, false)
			if err != nil {
				return err
			}
			r := runpkg.New(stores(store), enc, eng, stream.New(store), nil)
			status, err := r.Status(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("words:    %d\n", status.Words)
			fmt.Printf("profiles: %d\n", status.Profiles)
			for src, n := range status.SourceCounts {
				fmt.Printf("  %-12s %d\n", src, n)
			}
			fmt.Printf("pairs:    %d\n", status.Pairs)
			if status.LatestRun == nil {
				fmt.Println("no similarity runs recorded")
				return nil
			}
			cp := status.LatestRun
			fmt.Printf("latest run %s: %s, %.1f%% swept (updated %s)\n",
				cp.RunID, cp.State, status.Progress*100,
				cp.UpdatedAt.Format(time.RFC3339))
			return nil
		},
	}
}

func newSimilarCmd(st *cliState) *cobra.Command {
	var (
		limit int
		min   float64
	)

	cmd := &cobra.Command{
		Use:   "similar <word-id>",
		Short: "List stored neighbors of a word by descending similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			wordID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid word id %q", args[0])
			}

			ctx := cmd.Context()
			store, err := st.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			neighbors, err := store.Similar(ctx, wordID, limit, min)
			if err != nil {
				return err
			}
			if len(neighbors) == 0 {
				fmt.Println("no neighbors stored")
				return nil
			}
			for _, n := range neighbors {
				term := ""
				if p, err := store.Get(ctx, n.WordID); err == nil && p != nil {
					term = p.Term
				}
				fmt.Printf("%8d  %.4f  %s\n", n.WordID, n.Overall, term)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum neighbors to list")
	cmd.Flags().Float64Var(&min, "min", 0, "minimum overall similarity")
	return cmd
}

// --- wiring helpers ---

func stores(s *postgres.Store) runpkg.Stores {
	return runpkg.Stores{Words: s, Profiles: s, Pairs: s, Checkpoints: s}
}

func (st *cliState) buildTranscriber() (*transcribe.Transcriber, error) {
	tc := st.cfg.Transcription

	var sources []transcribe.Source
	if tc.DictionaryPath != "" {
		dict, err := transcribe.OpenDict(tc.DictionaryPath)
		if err != nil {
			return nil, err
		}
		sources = append(sources, dict)
	}
	if !tc.DisableAPI {
		var opts []transcribe.APIOption
		if tc.APIBaseURL != "" {
			opts = append(opts, transcribe.WithBaseURL(tc.APIBaseURL))
		}
		if tc.APIRateLimit > 0 {
			opts = append(opts, transcribe.WithRateLimit(rate.Limit(tc.APIRateLimit)))
		}
		sources = append(sources, transcribe.NewAPIClient(opts...))
	}
	sources = append(sources, transcribe.NewRules())

	opts := []transcribe.Option{transcribe.WithMetrics(observe.DefaultMetrics())}
	if tc.CacheSize > 0 {
		opts = append(opts, transcribe.WithCacheSize(tc.CacheSize))
	}
	return transcribe.New(sources, opts...)
}

func buildEngine(cfg *config.Config, threshold float64, scalarOnly bool) (*vectorize.Encoder, *simengine.Engine, error) {
	enc := vectorize.NewEncoder()

	opts := []simengine.Option{simengine.WithThreshold(threshold)}
	if w := cfg.Similarity.Weights; w != (simengine.Weights{}) {
		opts = append(opts, simengine.WithWeights(w))
	}
	if cfg.Similarity.MaxBlockCells > 0 {
		opts = append(opts, simengine.WithMaxBlockCells(cfg.Similarity.MaxBlockCells))
	}
	if scalarOnly {
		opts = append(opts, simengine.WithScalarOnly(true))
	}

	eng, err := simengine.New(enc, opts...)
	if err != nil {
		return nil, nil, err
	}
	return enc, eng, nil
}

func buildStream(cfg *config.Config, ins stream.Inserter) *stream.Manager {
	sc := cfg.Stream

	opts := []stream.Option{stream.WithMetrics(observe.DefaultMetrics())}
	if sc.Workers > 0 {
		opts = append(opts, stream.WithWorkers(sc.Workers))
	}
	if sc.BatchSize > 0 {
		opts = append(opts, stream.WithBatchSize(sc.BatchSize))
	}
	if sc.QueueDepth > 0 {
		opts = append(opts, stream.WithQueueDepth(sc.QueueDepth))
	}
	if sc.FlushIntervalMS > 0 {
		opts = append(opts, stream.WithFlushInterval(time.Duration(sc.FlushIntervalMS)*time.Millisecond))
	}
	if sc.MaxRetries > 0 {
		opts = append(opts, stream.WithMaxRetries(sc.MaxRetries))
	}
	return stream.New(ins, opts...)
}

func printReport(rep *runpkg.Report) {
	fmt.Printf("run %s: %s\n", rep.RunID, rep.State)
	fmt.Printf("  vocabulary: %d words\n", rep.VocabSize)
	fmt.Printf("  blocks:     %d\n", rep.Blocks)
	fmt.Printf("  pairs:      %d computed, %d stored, %d already present\n",
		rep.PairsComputed, rep.Stream.Inserted, rep.Stream.Skipped)
	if rep.Stream.Retries > 0 {
		fmt.Printf("  retries:    %d\n", rep.Stream.Retries)
	}
	fmt.Printf("  elapsed:    %s\n", rep.Elapsed.Round(time.Millisecond))
}
