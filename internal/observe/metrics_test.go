package observe

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// newTestMetrics returns a Metrics instance backed by a ManualReader for
// programmatic metric inspection.
func newTestMetrics(t *testing.T) (*Metrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m, reader
}

// collect gathers all metric data from the reader.
func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return rm
}

// findMetric searches for a metric by name across all scope metrics.
func findMetric(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}

// sumValue returns the value of the data point of a sum metric that carries
// attribute key=value, or the first data point when key is empty.
func sumValue(t *testing.T, rm metricdata.ResourceMetrics, name, key, value string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	sum, ok := met.Data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("metric %q is not a sum", name)
	}
	for _, dp := range sum.DataPoints {
		if key == "" {
			return dp.Value
		}
		if v, ok := dp.Attributes.Value(attribute.Key(key)); ok && v.AsString() == value {
			return dp.Value
		}
	}
	t.Fatalf("metric %q has no data point with %s=%s", name, key, value)
	return 0
}

func gaugeValue(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	met := findMetric(rm, name)
	if met == nil {
		t.Fatalf("metric %q not found", name)
	}
	g, ok := met.Data.(metricdata.Gauge[int64])
	if !ok {
		t.Fatalf("metric %q is not a gauge", name)
	}
	if len(g.DataPoints) == 0 {
		t.Fatalf("metric %q has no data points", name)
	}
	return g.DataPoints[0].Value
}

func TestNewMetrics_CreatesWithoutError(t *testing.T) {
	m, _ := newTestMetrics(t)
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestHistogramObservation(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	histograms := []struct {
		name string
		h    metric.Float64Histogram
	}{
		{"sfx.playback.duration", m.PlaybackDuration},
		{"sfx.play.pitch", m.PlayPitch},
		{"sfx.clip.load.duration", m.ClipLoadDuration},
		{"sfx.http.request.duration", m.HTTPRequestDuration},
	}

	for _, tc := range histograms {
		tc.h.Record(ctx, 0.123)
		tc.h.Record(ctx, 1.1)
	}

	rm := collect(t, reader)

	for _, tc := range histograms {
		t.Run(tc.name, func(t *testing.T) {
			met := findMetric(rm, tc.name)
			if met == nil {
				t.Fatalf("metric %q not found", tc.name)
			}
			hist, ok := met.Data.(metricdata.Histogram[float64])
			if !ok {
				t.Fatalf("metric %q is not a histogram", tc.name)
			}
			if len(hist.DataPoints) == 0 {
				t.Fatalf("metric %q has no data points", tc.name)
			}
			if got := hist.DataPoints[0].Count; got != 2 {
				t.Errorf("sample count = %d, want 2", got)
			}
		})
	}
}

func TestRecordPlay(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordPlay(ctx, "jump", StatusOK)
	m.RecordPlay(ctx, "jump", StatusOK)
	m.RecordPlay(ctx, "jump", StatusNoVoice)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "sfx.plays", "status", StatusOK); got != 2 {
		t.Errorf("ok plays = %d, want 2", got)
	}
	if got := sumValue(t, rm, "sfx.plays", "status", StatusNoVoice); got != 1 {
		t.Errorf("no_voice plays = %d, want 1", got)
	}
}

func TestRecordConfigReloadAndBreaker(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordConfigReload(ctx, "ok")
	m.RecordConfigReload(ctx, "error")
	m.RecordBreakerTransition(ctx, "oto", "open")

	rm := collect(t, reader)
	if got := sumValue(t, rm, "sfx.config.reloads", "status", "error"); got != 1 {
		t.Errorf("reload errors = %d, want 1", got)
	}
	if got := sumValue(t, rm, "sfx.breaker.transitions", "to", "open"); got != 1 {
		t.Errorf("breaker transitions = %d, want 1", got)
	}
}

func TestRecordClipLoad(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.RecordClipLoad(ctx, 0.01, nil)
	m.RecordClipLoad(ctx, 0.02, context.Canceled)

	rm := collect(t, reader)
	if got := sumValue(t, rm, "sfx.clip.load.errors", "", ""); got != 1 {
		t.Errorf("clip load errors = %d, want 1", got)
	}
	hist := findMetric(rm, "sfx.clip.load.duration").Data.(metricdata.Histogram[float64])
	if hist.DataPoints[0].Count != 2 {
		t.Errorf("clip load samples = %d, want 2", hist.DataPoints[0].Count)
	}
}

func TestGauges(t *testing.T) {
	m, reader := newTestMetrics(t)
	ctx := context.Background()

	m.PoolVoices.Record(ctx, 3)
	m.PoolVoices.Record(ctx, 4)
	m.Effects.Record(ctx, 12)
	m.BusyVoices.Add(ctx, 2)
	m.BusyVoices.Add(ctx, -1)

	rm := collect(t, reader)
	if got := gaugeValue(t, rm, "sfx.pool.voices"); got != 4 {
		t.Errorf("pool voices = %d, want 4", got)
	}
	if got := gaugeValue(t, rm, "sfx.effects"); got != 12 {
		t.Errorf("effects = %d, want 12", got)
	}
	if got := sumValue(t, rm, "sfx.voices.busy", "", ""); got != 1 {
		t.Errorf("busy voices = %d, want 1", got)
	}
}

func TestDefaultMetrics_ReturnsSameInstance(t *testing.T) {
	// DefaultMetrics uses the global OTel provider so we just check
	// that repeated calls return the same pointer.
	a := DefaultMetrics()
	b := DefaultMetrics()
	if a != b {
		t.Error("DefaultMetrics returned different pointers")
	}
}
