package app

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/sfxmgr/internal/health"
	"github.com/MrWong99/sfxmgr/internal/observe"
	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// effectView is the JSON representation of one registered effect.
type effectView struct {
	Name          string   `json:"name"`
	Volume        float64  `json:"volume"`
	Pitch         float64  `json:"pitch"`
	PitchVariance float64  `json:"pitch_variance"`
	Clips         []string `json:"clips"`
}

// poolView is the JSON body of GET /v1/pool.
type poolView struct {
	sfx.Stats
	Breaker string `json:"breaker"`

	// Outputs and ActiveOutput are set when a fallback output is configured.
	Outputs      map[string]string `json:"outputs,omitempty"`
	ActiveOutput string            `json:"active_output,omitempty"`
}

// errorView is the JSON body of every non-2xx API response.
type errorView struct {
	Error      string `json:"error"`
	DidYouMean string `json:"did_you_mean,omitempty"`
}

// Handler returns the HTTP API:
//
//	POST /v1/effects/{name}/play  play an effect (202 on success)
//	GET  /v1/effects              list registered effects
//	GET  /v1/pool                 pool and scheduler statistics
//	GET  /healthz, /readyz        liveness and readiness
//	GET  /metrics                 Prometheus scrape endpoint
//
// Every route is wrapped in [observe.Middleware].
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/effects/{name}/play", a.handlePlay)
	mux.HandleFunc("GET /v1/effects", a.handleEffects)
	mux.HandleFunc("GET /v1/pool", a.handlePool)
	mux.Handle("GET /metrics", promhttp.Handler())

	health.New(
		health.BreakerClosed(a.breaker),
		health.EffectsLoaded(a.manager),
	).Register(mux)

	return observe.Middleware(a.metrics)(mux)
}

func (a *App) handlePlay(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	err := a.manager.Play(r.Context(), name)
	if err == nil {
		writeJSON(w, http.StatusAccepted, map[string]string{"effect": name})
		return
	}

	log := observe.Logger(r.Context())
	switch {
	case errors.Is(err, sfx.ErrEffectNotFound):
		body := errorView{Error: err.Error()}
		if s, ok := a.manager.Registry().Suggest(name); ok {
			body.DidYouMean = s
		}
		writeJSON(w, http.StatusNotFound, body)
	case errors.Is(err, sfx.ErrEmptyClipSet):
		log.Warn("sfx: no clips assigned to effect", "effect", name)
		writeJSON(w, http.StatusUnprocessableEntity, errorView{Error: err.Error()})
	case errors.Is(err, sfx.ErrClosed), errors.Is(err, sfx.ErrOutputCreation):
		log.Error("play rejected", "effect", name, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorView{Error: err.Error()})
	default:
		log.Error("play failed", "effect", name, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorView{Error: err.Error()})
	}
}

func (a *App) handleEffects(w http.ResponseWriter, _ *http.Request) {
	reg := a.manager.Registry()
	out := make([]effectView, 0, reg.Len())
	for _, name := range reg.Names() {
		def, _ := reg.Lookup(name)
		v := effectView{
			Name:          def.Name,
			Volume:        def.Volume,
			Pitch:         def.BasePitch,
			PitchVariance: def.PitchVariance,
			Clips:         make([]string, 0, len(def.Clips)),
		}
		for _, c := range def.Clips {
			v.Clips = append(v.Clips, c.Name)
		}
		out = append(out, v)
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *App) handlePool(w http.ResponseWriter, _ *http.Request) {
	v := poolView{
		Stats:   a.manager.Stats(),
		Breaker: a.breaker.State().String(),
	}
	if a.fallback != nil {
		v.Outputs = a.fallback.states()
		v.ActiveOutput = a.fallback.group.Active()
	}
	writeJSON(w, http.StatusOK, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("write response", "err", err)
	}
}
