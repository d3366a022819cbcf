package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/sfxmgr/internal/resilience"
	"github.com/MrWong99/sfxmgr/pkg/audio"
	"github.com/MrWong99/sfxmgr/pkg/audio/mock"
	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// serve runs one request through a mux with h registered and decodes the body.
func serve(t *testing.T, h *Handler, r *http.Request) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, r)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func TestHealthz_AlwaysOK(t *testing.T) {
	h := New(Checker{Name: "output", Check: func(context.Context) error {
		return errors.New("device gone")
	}})

	code, body := serve(t, h, httptest.NewRequest("GET", "/healthz", nil))
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("healthz = %d %q, want 200 ok even with a failing checker", code, body.Status)
	}
}

func TestReadyz_OutputAndEffects(t *testing.T) {
	jump := sfx.NewRegistry([]sfx.EffectDefinition{{
		Name: "jump", Volume: 1, BasePitch: 1,
		Clips: []*audio.Clip{{Name: "jump.wav", Length: time.Second}},
	}})

	tests := []struct {
		name       string
		breakerErr bool
		registry   *sfx.Registry
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "ready",
			registry:   jump,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"output": "ok", "effects": "ok"},
		},
		{
			name:       "no effects",
			registry:   sfx.NewRegistry(nil),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"output": "ok", "effects": "fail: no effects registered"},
		},
		{
			name:       "device breaker open",
			breakerErr: true,
			registry:   jump,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"output": "fail: oto: circuit open", "effects": "ok"},
		},
		{
			name:       "both failing",
			breakerErr: true,
			registry:   sfx.NewRegistry(nil),
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"output": "fail: oto: circuit open", "effects": "fail: no effects registered"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
				Name:         "oto",
				MaxFailures:  1,
				ResetTimeout: time.Hour,
			})
			if tt.breakerErr {
				_ = cb.Execute(func() error { return errors.New("device busy") })
			}
			m := sfx.New(&mock.Output{}, tt.registry)
			defer m.Close()

			code, body := serve(t, New(BreakerClosed(cb), EffectsLoaded(m)), httptest.NewRequest("GET", "/readyz", nil))
			if code != tt.wantStatus {
				t.Errorf("status = %d, want %d", code, tt.wantStatus)
			}
			wantStatus := "ok"
			if tt.wantStatus != http.StatusOK {
				wantStatus = "fail"
			}
			if body.Status != wantStatus {
				t.Errorf("body status = %q, want %q", body.Status, wantStatus)
			}
			for name, want := range tt.wantChecks {
				if got := body.Checks[name]; got != want {
					t.Errorf("check %s = %q, want %q", name, got, want)
				}
			}
		})
	}
}

func TestReadyz_NoCheckers(t *testing.T) {
	code, body := serve(t, New(), httptest.NewRequest("GET", "/readyz", nil))
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("readyz = %d %q, want 200 ok", code, body.Status)
	}
}

func TestReadyz_RunsCheckersConcurrently(t *testing.T) {
	slow := func(context.Context) error {
		time.Sleep(200 * time.Millisecond)
		return nil
	}
	h := New(
		Checker{Name: "output", Check: slow},
		Checker{Name: "effects", Check: slow},
		Checker{Name: "clips", Check: slow},
	)

	start := time.Now()
	code, _ := serve(t, h, httptest.NewRequest("GET", "/readyz", nil))
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("readyz took %v; checkers do not appear to run concurrently", elapsed)
	}
}

func TestReadyz_RespectsContextCancellation(t *testing.T) {
	h := New(Checker{Name: "output", Check: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	code, body := serve(t, h, httptest.NewRequest("GET", "/readyz", nil).WithContext(ctx))
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Checks["output"] != "fail: context canceled" {
		t.Errorf("output check = %q", body.Checks["output"])
	}
}
