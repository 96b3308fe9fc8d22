// Package observe provides application-wide observability primitives for
// Curanote: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all Curanote metrics.
const meterName = "github.com/curanote/curanote"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms per pipeline stage ---

	// TranscriptionDuration tracks speech-to-text transcription latency per
	// provider attempt.
	TranscriptionDuration metric.Float64Histogram

	// LLMDuration tracks LLM completion latency.
	LLMDuration metric.Float64Histogram

	// NormalizationDuration tracks end-to-end latency of the audio-to-record
	// normalization pipeline.
	NormalizationDuration metric.Float64Histogram

	// --- Counters ---

	// ProviderRequests counts provider API calls. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...), attribute.String("status", ...)
	ProviderRequests metric.Int64Counter

	// PipelineFallbacks counts pipeline stages that fell back to their
	// degraded path. Use with attribute: attribute.String("stage", ...)
	PipelineFallbacks metric.Int64Counter

	// PatternsLearned counts correction patterns recorded from manual
	// corrections.
	PatternsLearned metric.Int64Counter

	// ActionsFlushed counts pending actions leaving the offline queue. Use
	// with attribute: attribute.String("outcome", "delivered"|"dropped")
	ActionsFlushed metric.Int64Counter

	// AudioProcessed counts queued audio segments that completed
	// normalization.
	AudioProcessed metric.Int64Counter

	// --- Error counters ---

	// ProviderErrors counts provider errors. Use with attributes:
	//   attribute.String("provider", ...), attribute.String("kind", ...)
	ProviderErrors metric.Int64Counter

	// --- Gauges ---

	// ActionQueueDepth tracks the number of pending actions awaiting
	// delivery.
	ActionQueueDepth metric.Int64UpDownCounter

	// AudioQueueDepth tracks the number of unprocessed audio segments.
	AudioQueueDepth metric.Int64UpDownCounter

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("path", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// latencyBuckets defines histogram bucket boundaries (in seconds) sized for
// transcription and LLM round trips.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.TranscriptionDuration, err = m.Float64Histogram("curanote.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.LLMDuration, err = m.Float64Histogram("curanote.llm.duration",
		metric.WithDescription("Latency of LLM completion calls."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.NormalizationDuration, err = m.Float64Histogram("curanote.normalization.duration",
		metric.WithDescription("End-to-end audio-to-record normalization latency."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.ProviderRequests, err = m.Int64Counter("curanote.provider.requests",
		metric.WithDescription("Total provider API requests by provider, kind, and status."),
	); err != nil {
		return nil, err
	}
	if met.PipelineFallbacks, err = m.Int64Counter("curanote.pipeline.fallbacks",
		metric.WithDescription("Pipeline stages that fell back to their degraded path, by stage."),
	); err != nil {
		return nil, err
	}
	if met.PatternsLearned, err = m.Int64Counter("curanote.patterns.learned",
		metric.WithDescription("Correction patterns recorded from manual corrections."),
	); err != nil {
		return nil, err
	}
	if met.ActionsFlushed, err = m.Int64Counter("curanote.actions.flushed",
		metric.WithDescription("Pending actions leaving the offline queue, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.AudioProcessed, err = m.Int64Counter("curanote.audio.processed",
		metric.WithDescription("Queued audio segments that completed normalization."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ProviderErrors, err = m.Int64Counter("curanote.provider.errors",
		metric.WithDescription("Total provider errors by provider and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.ActionQueueDepth, err = m.Int64UpDownCounter("curanote.action_queue.depth",
		metric.WithDescription("Number of pending actions awaiting delivery."),
	); err != nil {
		return nil, err
	}
	if met.AudioQueueDepth, err = m.Int64UpDownCounter("curanote.audio_queue.depth",
		metric.WithDescription("Number of unprocessed audio segments."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("curanote.http.request.duration",
		metric.WithDescription("HTTP request latency by method and path."),
		metric.WithUnit("s"),
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

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordProviderRequest records a provider request counter increment with
// the standard attribute set.
func (m *Metrics) RecordProviderRequest(ctx context.Context, provider, kind, status string) {
	m.ProviderRequests.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

// RecordProviderError records a provider error counter increment.
func (m *Metrics) RecordProviderError(ctx context.Context, provider, kind string) {
	m.ProviderErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("kind", kind),
		),
	)
}

// RecordFallback records a pipeline stage falling back to its degraded path.
func (m *Metrics) RecordFallback(ctx context.Context, stage string) {
	m.PipelineFallbacks.Add(ctx, 1,
		metric.WithAttributes(attribute.String("stage", stage)),
	)
}

// RecordActionFlushed records one pending action leaving the offline queue.
// outcome is "delivered" or "dropped".
func (m *Metrics) RecordActionFlushed(ctx context.Context, outcome string) {
	m.ActionsFlushed.Add(ctx, 1,
		metric.WithAttributes(attribute.String("outcome", outcome)),
	)
}
