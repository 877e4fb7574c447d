// Command phonosim computes phonetic similarity over a vocabulary: it
// backfills phonetic profiles, sweeps the pairwise similarity space in
// checkpointed blocks, and serves lookups over the stored results.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lexibase/phonosim/internal/config"
	"github.com/lexibase/phonosim/internal/observe"
	"github.com/lexibase/phonosim/pkg/vocabstore/postgres"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "phonosim: %v\n", err)
		}
		return 1
	}
	return 0
}

// cliState carries everything the subcommands share: the loaded config and
// the telemetry shutdown hook.
type cliState struct {
	configPath string
	cfg        *config.Config

	shutdownMetrics func(context.Context) error
	metricsSrv      *http.Server
}

func newRootCmd() *cobra.Command {
	st := &cliState{}

	root := &cobra.Command{
		Use:           "phonosim",
		Short:         "Phonetic similarity engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("config file %q not found", st.configPath)
				}
				return err
			}
			st.cfg = cfg

			slog.SetDefault(newLogger(cfg.Log.Level))

			shutdown, err := observe.InitProvider(cmd.Context(), observe.ProviderConfig{})
			if err != nil {
				return fmt.Errorf("init telemetry: %w", err)
			}
			st.shutdownMetrics = shutdown

			if addr := cfg.Metrics.ListenAddr; addr != "" {
				st.metricsSrv = serveMetrics(addr)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 5*time.Second)
			defer cancel()

			if st.metricsSrv != nil {
				if err := st.metricsSrv.Shutdown(shutdownCtx); err != nil {
					slog.Warn("metrics server shutdown", "error", err)
				}
			}
			if st.shutdownMetrics != nil {
				if err := st.shutdownMetrics(shutdownCtx); err != nil {
					slog.Warn("telemetry shutdown", "error", err)
				}
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", "phonosim.yaml", "path to the YAML configuration file")

	root.AddCommand(
		newMigrateCmd(st),
		newBackfillCmd(st),
		newSimilarityCmd(st),
		newStatusCmd(st),
		newSimilarCmd(st),
	)
	return root
}

// openStore connects to the configured database and runs migrations.
func (st *cliState) openStore(ctx context.Context) (*postgres.Store, error) {
	if st.cfg.Database.DSN == "" {
		return nil, errors.New("database.dsn is not configured")
	}
	store, err := postgres.New(ctx, st.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	return store, nil
}

// serveMetrics exposes the Prometheus bridge on its own listener. Failures
// are logged, not fatal: a run is more valuable than its metrics.
func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Warn("metrics endpoint failed", "addr", addr, "error", err)
		}
	}()
	slog.Info("metrics endpoint up", "addr", addr)
	return srv
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
