package observe

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/MrWong99/sfxmgr/pkg/audio"
	audiomock "github.com/MrWong99/sfxmgr/pkg/audio/mock"
	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// testSetup creates both metrics and tracing infrastructure for middleware
// tests and installs the tracer provider globally.
func testSetup(t *testing.T) (*Metrics, *sdkmetric.ManualReader, *sdktrace.TracerProvider, *tracetest.InMemoryExporter) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	m, err := NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	exp := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	origTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(origTP) })

	return m, reader, tp, exp
}

// captureLogs redirects the default logger into a buffer at debug level.
func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	orig := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(orig) })
	return &buf
}

// playMux serves the play route through a real manager.
func playMux(tp *sdktrace.TracerProvider) (*http.ServeMux, *audiomock.Output) {
	out := &audiomock.Output{}
	mgr := sfx.New(out, sfx.NewRegistry([]sfx.EffectDefinition{{
		Name:      "jump",
		Volume:    1,
		BasePitch: 1,
		Clips:     []*audio.Clip{{Name: "jump.wav", Length: time.Second}},
	}}), sfx.WithTracerProvider(tp))

	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/effects/{name}/play", func(w http.ResponseWriter, r *http.Request) {
		if err := mgr.Play(r.Context(), r.PathValue("name")); err != nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})
	return mux, out
}

func spanByName(spans tracetest.SpanStubs, name string) *tracetest.SpanStub {
	for i := range spans {
		if spans[i].Name == name {
			return &spans[i]
		}
	}
	return nil
}

func hasAttr(attrs []attribute.KeyValue, key, value string) bool {
	for _, kv := range attrs {
		if string(kv.Key) == key && kv.Value.Emit() == value {
			return true
		}
	}
	return false
}

func TestMiddleware_PlayRequest(t *testing.T) {
	m, reader, tp, exp := testSetup(t)
	mux, out := playMux(tp)
	handler := Middleware(m)(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/v1/effects/jump/play", nil))

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", rec.Code)
	}
	if out.VoiceCount() != 1 {
		t.Errorf("voices = %d, want 1", out.VoiceCount())
	}
	cid := rec.Header().Get("X-Correlation-ID")
	if len(cid) != 32 {
		t.Errorf("X-Correlation-ID = %q, want a 32-char trace ID", cid)
	}

	spans := exp.GetSpans()
	server := spanByName(spans, "POST /v1/effects/{name}/play")
	if server == nil {
		t.Fatalf("no span named after the route; got %d spans", len(spans))
	}
	if !hasAttr(server.Attributes, "sfx.effect", "jump") {
		t.Errorf("server span missing sfx.effect=jump: %v", server.Attributes)
	}
	if !hasAttr(server.Attributes, "http.route", "POST /v1/effects/{name}/play") {
		t.Errorf("server span missing http.route: %v", server.Attributes)
	}

	play := spanByName(spans, "sfx.play")
	if play == nil {
		t.Fatal("no sfx.play span recorded")
	}
	if play.Parent.SpanID() != server.SpanContext.SpanID() {
		t.Error("sfx.play span is not a child of the request span")
	}
	if play.SpanContext.TraceID().String() != cid {
		t.Errorf("play trace ID = %s, want correlation ID %s", play.SpanContext.TraceID(), cid)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	met := findMetric(rm, "sfx.http.request.duration")
	if met == nil {
		t.Fatal("metric not found")
	}
	hist, ok := met.Data.(metricdata.Histogram[float64])
	if !ok || len(hist.DataPoints) != 1 {
		t.Fatalf("want one histogram data point, got %+v", met.Data)
	}
	attrs := hist.DataPoints[0].Attributes.ToSlice()
	for _, want := range [][2]string{
		{"method", "POST"},
		{"route", "POST /v1/effects/{name}/play"},
		{"status_class", "2xx"},
	} {
		if !hasAttr(attrs, want[0], want[1]) {
			t.Errorf("missing %s=%s in %v", want[0], want[1], attrs)
		}
	}
}

func TestMiddleware_UnmatchedRoute(t *testing.T) {
	m, reader, tp, exp := testSetup(t)
	mux, _ := playMux(tp)
	handler := Middleware(m)(mux)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/sounds/jump", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 || spans[0].Name != "HTTP GET" {
		t.Fatalf("spans = %v, want one span named HTTP GET", spans)
	}
	if !hasAttr(spans[0].Attributes, "http.route", "unmatched") {
		t.Errorf("http.route should be unmatched: %v", spans[0].Attributes)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	hist := findMetric(rm, "sfx.http.request.duration").Data.(metricdata.Histogram[float64])
	if !hasAttr(hist.DataPoints[0].Attributes.ToSlice(), "status_class", "4xx") {
		t.Errorf("status_class != 4xx: %v", hist.DataPoints[0].Attributes.ToSlice())
	}
}

func TestMiddleware_ServerErrorMarksSpanAndWarns(t *testing.T) {
	m, _, _, exp := testSetup(t)
	logs := captureLogs(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("POST", "/v1/effects/jump/play", nil))

	spans := exp.GetSpans()
	if len(spans) == 0 {
		t.Fatal("no spans recorded")
	}
	if spans[0].Status.Code != codes.Error {
		t.Errorf("span status = %v, want Error", spans[0].Status.Code)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("5xx should be logged at warn, got: %s", logs)
	}
}

func TestMiddleware_ProbesLogAtDebug(t *testing.T) {
	m, _, _, _ := testSetup(t)
	logs := captureLogs(t)

	handler := Middleware(m)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	for _, path := range []string{"/healthz", "/readyz", "/metrics", "/v1/pool"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", path, nil))
	}

	lines := strings.Split(strings.TrimSpace(logs.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("got %d log lines, want 4:\n%s", len(lines), logs)
	}
	for i, line := range lines[:3] {
		if !strings.Contains(line, "level=DEBUG") {
			t.Errorf("line %d should be debug: %s", i, line)
		}
	}
	if !strings.Contains(lines[3], "level=INFO") {
		t.Errorf("/v1/pool should be logged at info: %s", lines[3])
	}
}

func TestMiddleware_PropagatesW3CTraceContext(t *testing.T) {
	m, _, tp, exp := testSetup(t)
	mux, _ := playMux(tp)
	handler := Middleware(m)(mux)

	const traceID = "4bf92f3577b34da6a3ce929d0e0e4736"
	req := httptest.NewRequest("POST", "/v1/effects/jump/play", nil)
	req.Header.Set("traceparent", "00-"+traceID+"-00f067aa0ba902b7-01")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Correlation-ID"); got != traceID {
		t.Errorf("X-Correlation-ID = %q, want %q", got, traceID)
	}
	play := spanByName(exp.GetSpans(), "sfx.play")
	if play == nil {
		t.Fatal("no sfx.play span recorded")
	}
	if play.SpanContext.TraceID().String() != traceID {
		t.Errorf("play span joined trace %s, want the caller's %s", play.SpanContext.TraceID(), traceID)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{
		200: "2xx",
		202: "2xx",
		404: "4xx",
		422: "4xx",
		503: "5xx",
		0:   "other",
		700: "other",
	}
	for code, want := range tests {
		if got := statusClass(code); got != want {
			t.Errorf("statusClass(%d) = %q, want %q", code, got, want)
		}
	}
}
