// Package observe provides the application's observability primitives:
// OpenTelemetry metrics with a Prometheus exporter bridge.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A package-level
// default [Metrics] instance ([DefaultMetrics]) is provided for convenience;
// tests should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/lexibase/phonosim"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// BlockDuration tracks wall-clock time per computed similarity block.
	BlockDuration metric.Float64Histogram

	// InsertBatchSize tracks the number of pairs offered per bulk insert.
	InsertBatchSize metric.Int64Histogram

	// --- Counters ---

	// PairsComputed counts candidate pairs scored by the engine.
	PairsComputed metric.Int64Counter

	// PairsStored counts pairs actually inserted (threshold survivors minus
	// duplicates skipped by the store).
	PairsStored metric.Int64Counter

	// PairsSkipped counts pairs re-offered at block boundaries and skipped
	// as already present.
	PairsSkipped metric.Int64Counter

	// BlockRetries counts blocks retried after a size halving.
	BlockRetries metric.Int64Counter

	// FlushRetries counts bulk inserts retried after a transient failure.
	FlushRetries metric.Int64Counter

	// Transcriptions counts produced phonetic profiles. Use with attribute:
	//   attribute.String("source", ...)
	Transcriptions metric.Int64Counter

	// --- Gauges ---

	// QueueDepth tracks the number of pair batches waiting for a writer
	// worker.
	QueueDepth metric.Int64UpDownCounter
}

// durationBuckets defines histogram bucket boundaries (in seconds) sized for
// block computation times.
var durationBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.BlockDuration, err = m.Float64Histogram("phonosim.block.duration",
		metric.WithDescription("Wall-clock time per computed similarity block."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.InsertBatchSize, err = m.Int64Histogram("phonosim.insert.batch_size",
		metric.WithDescription("Pairs offered per bulk insert."),
	); err != nil {
		return nil, err
	}

	if met.PairsComputed, err = m.Int64Counter("phonosim.pairs.computed",
		metric.WithDescription("Candidate pairs scored by the engine."),
	); err != nil {
		return nil, err
	}
	if met.PairsStored, err = m.Int64Counter("phonosim.pairs.stored",
		metric.WithDescription("Pairs durably inserted."),
	); err != nil {
		return nil, err
	}
	if met.PairsSkipped, err = m.Int64Counter("phonosim.pairs.skipped",
		metric.WithDescription("Pairs skipped as already present."),
	); err != nil {
		return nil, err
	}
	if met.BlockRetries, err = m.Int64Counter("phonosim.block.retries",
		metric.WithDescription("Blocks retried after a size halving."),
	); err != nil {
		return nil, err
	}
	if met.FlushRetries, err = m.Int64Counter("phonosim.flush.retries",
		metric.WithDescription("Bulk inserts retried after a transient failure."),
	); err != nil {
		return nil, err
	}
	if met.Transcriptions, err = m.Int64Counter("phonosim.transcriptions",
		metric.WithDescription("Produced phonetic profiles by source."),
	); err != nil {
		return nil, err
	}

	if met.QueueDepth, err = m.Int64UpDownCounter("phonosim.queue.depth",
		metric.WithDescription("Pair batches waiting for a writer worker."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordTranscription records one produced profile with its source attribute.
func (m *Metrics) RecordTranscription(ctx context.Context, source string) {
	m.Transcriptions.Add(ctx, 1,
		metric.WithAttributes(attribute.String("source", source)),
	)
}
