// Package observe provides application-wide observability primitives for
// sfxmgr: OpenTelemetry metrics, distributed tracing, structured logging,
// and HTTP middleware that ties them together.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can be
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

// meterName is the instrumentation scope name used for all sfxmgr metrics.
const meterName = "github.com/MrWong99/sfxmgr"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use; the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Histograms ---

	// PlaybackDuration tracks the expected audible time of each play
	// (clip length divided by pitch). Use with attribute:
	//   attribute.String("effect", ...)
	PlaybackDuration metric.Float64Histogram

	// PlayPitch tracks the drawn effective pitch of each play.
	PlayPitch metric.Float64Histogram

	// ClipLoadDuration tracks how long decoding a clip file takes.
	ClipLoadDuration metric.Float64Histogram

	// --- Counters ---

	// Plays counts play requests. Use with attributes:
	//   attribute.String("effect", ...), attribute.String("status", ...)
	Plays metric.Int64Counter

	// VoicesCreated counts voices allocated from the output backend.
	VoicesCreated metric.Int64Counter

	// ConfigReloads counts hot reloads. Use with attribute:
	//   attribute.String("status", ...)
	ConfigReloads metric.Int64Counter

	// BreakerTransitions counts circuit breaker state changes. Use with attributes:
	//   attribute.String("breaker", ...), attribute.String("to", ...)
	BreakerTransitions metric.Int64Counter

	// --- Error counters ---

	// ClipLoadErrors counts clip files that could not be decoded.
	ClipLoadErrors metric.Int64Counter

	// --- Gauges ---

	// PoolVoices reports the current size of the voice pool.
	PoolVoices metric.Int64Gauge

	// BusyVoices tracks voices that are playing and wait for release.
	BusyVoices metric.Int64UpDownCounter

	// Effects reports the number of registered effects.
	Effects metric.Int64Gauge

	// --- HTTP middleware ---

	// HTTPRequestDuration tracks HTTP request processing time. Use with attributes:
	//   attribute.String("method", ...), attribute.String("route", ...)
	HTTPRequestDuration metric.Float64Histogram
}

// durationBuckets defines histogram bucket boundaries (in seconds) sized for
// sound-effect clips and clip decoding.
var durationBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// pitchBuckets covers the valid pitch range.
var pitchBuckets = []float64{
	0.25, 0.5, 0.75, 0.9, 1, 1.1, 1.25, 1.5, 2, 3, 4.5,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.PlaybackDuration, err = m.Float64Histogram("sfx.playback.duration",
		metric.WithDescription("Expected audible time of a play (clip length / pitch)."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.PlayPitch, err = m.Float64Histogram("sfx.play.pitch",
		metric.WithDescription("Effective pitch drawn for a play."),
		metric.WithExplicitBucketBoundaries(pitchBuckets...),
	); err != nil {
		return nil, err
	}
	if met.ClipLoadDuration, err = m.Float64Histogram("sfx.clip.load.duration",
		metric.WithDescription("Latency of decoding a clip file."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.Plays, err = m.Int64Counter("sfx.plays",
		metric.WithDescription("Total play requests by effect and status."),
	); err != nil {
		return nil, err
	}
	if met.VoicesCreated, err = m.Int64Counter("sfx.voices.created",
		metric.WithDescription("Total voices allocated from the output backend."),
	); err != nil {
		return nil, err
	}
	if met.ConfigReloads, err = m.Int64Counter("sfx.config.reloads",
		metric.WithDescription("Total configuration hot reloads by status."),
	); err != nil {
		return nil, err
	}
	if met.BreakerTransitions, err = m.Int64Counter("sfx.breaker.transitions",
		metric.WithDescription("Total circuit breaker state changes by breaker and target state."),
	); err != nil {
		return nil, err
	}

	// Error counters.
	if met.ClipLoadErrors, err = m.Int64Counter("sfx.clip.load.errors",
		metric.WithDescription("Total clip files that failed to load."),
	); err != nil {
		return nil, err
	}

	// Gauges.
	if met.PoolVoices, err = m.Int64Gauge("sfx.pool.voices",
		metric.WithDescription("Current number of pooled voices."),
	); err != nil {
		return nil, err
	}
	if met.BusyVoices, err = m.Int64UpDownCounter("sfx.voices.busy",
		metric.WithDescription("Number of voices currently playing."),
	); err != nil {
		return nil, err
	}
	if met.Effects, err = m.Int64Gauge("sfx.effects",
		metric.WithDescription("Number of registered effects."),
	); err != nil {
		return nil, err
	}

	// HTTP middleware histogram.
	if met.HTTPRequestDuration, err = m.Float64Histogram("sfx.http.request.duration",
		metric.WithDescription("HTTP request latency by method and route."),
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

// RecordPlay records a play counter increment with the standard attribute set.
func (m *Metrics) RecordPlay(ctx context.Context, effect, status string) {
	m.Plays.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("effect", effect),
			attribute.String("status", status),
		),
	)
}

// RecordConfigReload records a hot-reload attempt.
func (m *Metrics) RecordConfigReload(ctx context.Context, status string) {
	m.ConfigReloads.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordBreakerTransition records a circuit breaker state change.
func (m *Metrics) RecordBreakerTransition(ctx context.Context, breaker, to string) {
	m.BreakerTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("breaker", breaker),
			attribute.String("to", to),
		),
	)
}

// RecordClipLoad records the outcome of decoding one clip file.
func (m *Metrics) RecordClipLoad(ctx context.Context, seconds float64, err error) {
	m.ClipLoadDuration.Record(ctx, seconds)
	if err != nil {
		m.ClipLoadErrors.Add(ctx, 1)
	}
}
