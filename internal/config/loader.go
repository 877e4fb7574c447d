package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lexibase/phonosim/internal/simengine"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Log.Level != "" && !cfg.Log.Level.IsValid() {
		errs = append(errs, fmt.Errorf("log.level %q is invalid; valid values: debug, info, warn, error", cfg.Log.Level))
	}

	if cfg.Database.DSN == "" {
		slog.Warn("database.dsn is empty; commands that touch the vocabulary store will fail to connect")
	}

	if cfg.Transcription.APIRateLimit < 0 {
		errs = append(errs, fmt.Errorf("transcription.api_rate_limit %.2f must not be negative", cfg.Transcription.APIRateLimit))
	}
	if cfg.Transcription.CacheSize < 0 {
		errs = append(errs, fmt.Errorf("transcription.cache_size %d must not be negative", cfg.Transcription.CacheSize))
	}
	if cfg.Transcription.DictionaryPath == "" && cfg.Transcription.DisableAPI {
		slog.Warn("no dictionary and no API configured; every word will be transcribed by letter rules")
	}

	if w := cfg.Similarity.Weights; w != (simengine.Weights{}) {
		if err := w.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("similarity.weights: %w", err))
		}
	}
	if t := cfg.Similarity.Threshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("similarity.threshold %.2f is out of range [0, 1]", t))
	}
	if cfg.Similarity.BlockSize < 0 {
		errs = append(errs, fmt.Errorf("similarity.block_size %d must not be negative", cfg.Similarity.BlockSize))
	}
	if cfg.Similarity.MaxBlockCells < 0 {
		errs = append(errs, fmt.Errorf("similarity.max_block_cells %d must not be negative", cfg.Similarity.MaxBlockCells))
	}

	if cfg.Stream.Workers < 0 {
		errs = append(errs, fmt.Errorf("stream.workers %d must not be negative", cfg.Stream.Workers))
	}
	if cfg.Stream.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("stream.batch_size %d must not be negative", cfg.Stream.BatchSize))
	}
	if cfg.Stream.QueueDepth < 0 {
		errs = append(errs, fmt.Errorf("stream.queue_depth %d must not be negative", cfg.Stream.QueueDepth))
	}
	if cfg.Stream.FlushIntervalMS < 0 {
		errs = append(errs, fmt.Errorf("stream.flush_interval_ms %d must not be negative", cfg.Stream.FlushIntervalMS))
	}
	if cfg.Stream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("stream.max_retries %d must not be negative", cfg.Stream.MaxRetries))
	}

	return errors.Join(errs...)
}
