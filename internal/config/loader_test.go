package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/lexibase/phonosim/internal/config"
)

func TestLoadFromReader_FullConfig(t *testing.T) {
	t.Parallel()
	yaml := `
database:
  dsn: "postgres://localhost/phonosim?sslmode=disable"
log:
  level: debug
transcription:
  dictionary_path: /data/cmudict.txt.gz
  api_rate_limit: 2
  cache_size: 50000
similarity:
  weights:
    phonetic: 0.4
    stress: 0.2
    rhyme: 0.3
    syllable: 0.1
  threshold: 0.4
  block_size: 2048
stream:
  workers: 4
  batch_size: 500
  queue_depth: 16
  flush_interval_ms: 250
metrics:
  listen_addr: ":9090"
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.DSN != "postgres://localhost/phonosim?sslmode=disable" {
		t.Errorf("DSN = %q", cfg.Database.DSN)
	}
	if cfg.Log.Level != config.LogDebug {
		t.Errorf("Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Similarity.Weights.Rhyme != 0.3 {
		t.Errorf("Weights.Rhyme = %v, want 0.3", cfg.Similarity.Weights.Rhyme)
	}
	if cfg.Stream.FlushIntervalMS != 250 {
		t.Errorf("FlushIntervalMS = %d, want 250", cfg.Stream.FlushIntervalMS)
	}
	if cfg.Metrics.ListenAddr != ":9090" {
		t.Errorf("ListenAddr = %q", cfg.Metrics.ListenAddr)
	}
}

func TestLoadFromReader_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	yaml := `
databse:
  dsn: "postgres://localhost/phonosim"
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err == nil {
		t.Fatal("expected error for misspelled section, got nil")
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: loud
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for invalid log level, got nil")
	}
	if !strings.Contains(err.Error(), "log.level") {
		t.Errorf("error should mention log.level, got: %v", err)
	}
}

func TestValidate_BadWeights(t *testing.T) {
	t.Parallel()
	yaml := `
similarity:
  weights:
    phonetic: 0.9
    stress: 0.9
    rhyme: 0.1
    syllable: 0.1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for weights not summing to 1, got nil")
	}
	if !strings.Contains(err.Error(), "similarity.weights") {
		t.Errorf("error should mention similarity.weights, got: %v", err)
	}
}

func TestValidate_ZeroWeightsAreDefaults(t *testing.T) {
	t.Parallel()
	yaml := `
similarity:
  threshold: 0.5
`
	if _, err := config.LoadFromReader(strings.NewReader(yaml)); err != nil {
		t.Fatalf("unexpected error for omitted weights: %v", err)
	}
}

func TestValidate_ThresholdOutOfRange(t *testing.T) {
	t.Parallel()
	yaml := `
similarity:
  threshold: 1.5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error for threshold > 1, got nil")
	}
	if !strings.Contains(err.Error(), "threshold") {
		t.Errorf("error should mention threshold, got: %v", err)
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()
	yaml := `
log:
  level: loud
similarity:
  threshold: -1
stream:
  workers: -2
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected joined validation errors, got nil")
	}
	for _, want := range []string{"log.level", "threshold", "stream.workers"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error should mention %s, got: %v", want, err)
		}
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
	if !strings.Contains(err.Error(), "config: open") {
		t.Errorf("error should mention open, got: %v", err)
	}
}

func TestLoad_FromFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "phonosim.yaml")
	data := "database:\n  dsn: \"postgres://localhost/phonosim\"\n"
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.DSN == "" {
		t.Error("DSN not populated from file")
	}
}

func TestLogLevel_IsValid(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("IsValid(%q) = false, want true", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error(`IsValid("verbose") = true, want false`)
	}
}
