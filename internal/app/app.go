// Package app wires together all sfxmgr subsystems into a runnable
// application.
//
// The [App] struct owns the full lifecycle: it decodes the configured clips,
// builds the effect registry, creates the [sfx.Manager] on top of the audio
// output, serves the HTTP API and hot-reloads effects when the configuration
// file changes. Use [New] to create an App, [App.Run] to block until the
// context is cancelled, and [App.Shutdown] to tear everything down.
//
// For testing, pass [Option] values (e.g. [WithClipFS], [WithMetrics]) to
// replace real dependencies.
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sfxmgr/internal/config"
	"github.com/MrWong99/sfxmgr/internal/observe"
	"github.com/MrWong99/sfxmgr/internal/resilience"
	"github.com/MrWong99/sfxmgr/pkg/audio"
	"github.com/MrWong99/sfxmgr/pkg/audio/wavclip"
	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// shutdownGrace bounds how long the HTTP server may drain in-flight requests.
const shutdownGrace = 5 * time.Second

// App owns all subsystem lifetimes for a running sfxmgr instance.
type App struct {
	cfg        *config.Config
	configPath string

	output   audio.Output
	fallback *fallbackOutput
	breaker  *resilience.CircuitBreaker
	loader   *wavclip.Loader
	manager  *sfx.Manager
	metrics  *observe.Metrics

	clipFS       fs.FS
	level        *slog.LevelVar
	managerOpts  []sfx.Option
	fallbackName string
	fallbackOut  audio.Output

	server   *http.Server
	listener net.Listener
	watcher  *config.Watcher

	// reloadMu serialises hot reloads so two quick edits cannot race.
	reloadMu sync.Mutex

	// closers are called in reverse order during Shutdown.
	closersMu sync.Mutex
	closers   []func() error
	stopped   bool
	stopOnce  sync.Once
}

// ErrShutDown is returned by [App.Run] once [App.Shutdown] has been called.
var ErrShutDown = errors.New("app: shut down")

// addCloser registers fn for Shutdown. It reports false, without
// registering, when Shutdown has already started.
func (a *App) addCloser(fn func() error) bool {
	a.closersMu.Lock()
	defer a.closersMu.Unlock()
	if a.stopped {
		return false
	}
	a.closers = append(a.closers, fn)
	return true
}

// Option is a functional option for configuring an [App].
type Option func(*App)

// WithConfigPath enables hot reload of path and resolves a relative clip
// directory against the directory containing it.
func WithConfigPath(path string) Option {
	return func(a *App) { a.configPath = path }
}

// WithClipFS replaces the clip directory with fsys. Tests use
// [testing/fstest.MapFS] or [os.DirFS] of a temp dir.
func WithClipFS(fsys fs.FS) Option {
	return func(a *App) { a.clipFS = fsys }
}

// WithMetrics overrides the metrics instance (defaults to
// [observe.DefaultMetrics]).
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLevelVar makes hot reloads of server.log_level update lv.
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithManagerOptions forwards opts to [sfx.New].
func WithManagerOptions(opts ...sfx.Option) Option {
	return func(a *App) { a.managerOpts = append(a.managerOpts, opts...) }
}

// WithFallbackOutput makes voice creation fall back to out, registered as
// name, whenever the primary output fails or its breaker is open. The App
// takes ownership of out.
func WithFallbackOutput(name string, out audio.Output) Option {
	return func(a *App) {
		a.fallbackName = name
		a.fallbackOut = out
	}
}

// WithListener serves the HTTP API on l instead of listening on
// server.listen_addr.
func WithListener(l net.Listener) Option {
	return func(a *App) { a.listener = l }
}

// New creates a new App by decoding all configured clips and constructing
// the manager on top of output. The App takes ownership of output and closes
// it during [App.Shutdown].
//
// Clip decoding errors are fatal here; during a hot reload they only cause
// the reload to be rejected.
func New(ctx context.Context, cfg *config.Config, output audio.Output, opts ...Option) (*App, error) {
	if output == nil {
		return nil, errors.New("app: output is nil")
	}
	a := &App{
		cfg:    cfg,
		output: output,
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}
	guardName := outputName(cfg)
	if a.fallbackOut != nil {
		a.fallback = newFallbackOutput(outputName(cfg), output, a.fallbackName, a.fallbackOut, a.metrics)
		a.output = a.fallback
		guardName += "+" + a.fallbackName
	}
	a.addCloser(a.output.Close)

	a.loader = a.newLoader(cfg)
	reg, err := a.buildRegistry(ctx, a.loader, cfg.Effects)
	if err != nil {
		return nil, fmt.Errorf("app: load effects: %w", err)
	}

	a.breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name: guardName,
		OnStateChange: func(name string, _, to resilience.State) {
			a.metrics.RecordBreakerTransition(context.Background(), name, to.String())
		},
	})

	mopts := []sfx.Option{
		sfx.WithObserver(observe.NewPlayObserver(a.metrics)),
		sfx.WithPoolOptions(sfx.WithGuard(a.breaker)),
	}
	a.manager = sfx.New(a.output, reg, append(mopts, a.managerOpts...)...)
	a.addCloser(a.manager.Close)
	a.metrics.Effects.Record(ctx, int64(reg.Len()))

	if cfg.Server.ListenAddr != "" || a.listener != nil {
		a.server = &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	slog.Info("app initialised",
		"effects", reg.Len(),
		"clips", a.loader.Cached(),
		"output", outputName(cfg),
		"http", a.server != nil,
	)
	return a, nil
}

// Manager returns the sound-effect manager.
func (a *App) Manager() *sfx.Manager { return a.manager }

// Breaker returns the circuit breaker guarding voice creation.
func (a *App) Breaker() *resilience.CircuitBreaker { return a.breaker }

// Config returns the configuration currently in effect.
func (a *App) Config() *config.Config {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	return a.cfg
}

// Run starts the release scheduler, the HTTP server (if configured) and the
// configuration watcher (if [WithConfigPath] was given), then blocks until
// ctx is cancelled or one of them fails.
func (a *App) Run(ctx context.Context) error {
	cfg := a.Config()
	if a.configPath != "" {
		w, err := config.NewWatcher(a.configPath, func(_, new *config.Config) {
			a.applyConfig(ctx, new)
		})
		if err != nil {
			return fmt.Errorf("app: watch config: %w", err)
		}
		stop := func() error {
			w.Stop()
			return nil
		}
		if !a.addCloser(stop) {
			_ = stop()
			return ErrShutDown
		}
		a.watcher = w
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.manager.Run(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			return a.serve(cfg.Server.TLS)
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			return a.server.Shutdown(sctx)
		})
	}

	slog.Info("app running", "listen_addr", cfg.Server.ListenAddr)
	return g.Wait()
}

// serve blocks in the HTTP server until it is shut down.
func (a *App) serve(tls *config.TLSConfig) error {
	var err error
	switch {
	case a.listener != nil && tls != nil:
		err = a.server.ServeTLS(a.listener, tls.CertFile, tls.KeyFile)
	case a.listener != nil:
		err = a.server.Serve(a.listener)
	case tls != nil:
		err = a.server.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
	default:
		err = a.server.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("app: http server: %w", err)
}

// Shutdown gracefully stops the app. It calls all registered closers in
// reverse order. Shutdown is safe to call more than once; only the first
// call has any effect.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		slog.Info("shutting down")

		a.closersMu.Lock()
		a.stopped = true
		closers := a.closers
		a.closersMu.Unlock()

		done := make(chan error, 1)
		go func() {
			var errs []error
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i](); err != nil {
					errs = append(errs, err)
				}
			}
			done <- errors.Join(errs...)
		}()

		select {
		case err = <-done:
		case <-ctx.Done():
			err = fmt.Errorf("app: shutdown: %w", ctx.Err())
		}
	})
	return err
}

// ReloadEffects decodes the clips of effects and swaps the resulting
// registry into the manager. On error the current registry stays active.
func (a *App) ReloadEffects(ctx context.Context, effects []config.EffectConfig) error {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()
	return a.reloadEffects(ctx, a.loader, effects)
}

func (a *App) reloadEffects(ctx context.Context, loader *wavclip.Loader, effects []config.EffectConfig) error {
	reg, err := a.buildRegistry(ctx, loader, effects)
	if err != nil {
		return err
	}
	a.loader = loader
	a.manager.Reload(reg)
	a.metrics.Effects.Record(ctx, int64(reg.Len()))
	return nil
}

// applyConfig is the watcher callback. Only effects, clips and the log level
// are applied live; server and output changes are logged as requiring a
// restart. The diff is taken against the last applied config, so a rejected
// reload is retried by the next edit.
func (a *App) applyConfig(ctx context.Context, new *config.Config) {
	a.reloadMu.Lock()
	defer a.reloadMu.Unlock()

	d := config.Diff(a.cfg, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	for _, section := range d.RestartRequired {
		slog.Warn("config change requires restart", "section", section)
	}

	if d.EffectsChanged {
		loader := a.loader
		if d.ClipsChanged {
			// A new base directory invalidates every cached decode.
			loader = a.newLoader(new)
		}
		if err := a.reloadEffects(ctx, loader, new.Effects); err != nil {
			a.metrics.RecordConfigReload(ctx, "error")
			slog.Error("effect reload failed, keeping previous effects", "err", err)
			return
		}
		for _, ec := range d.EffectChanges {
			slog.Info("effect changed",
				"effect", ec.Name,
				"added", ec.Added,
				"removed", ec.Removed,
				"params", ec.ParamsChanged,
				"clips", ec.ClipsChanged,
			)
		}
	}

	a.cfg = new
	a.metrics.RecordConfigReload(ctx, "ok")
}

// newLoader creates a clip loader for the clip settings of cfg. A file
// system passed with [WithClipFS] takes precedence over clips.base_dir.
func (a *App) newLoader(cfg *config.Config) *wavclip.Loader {
	fsys := a.clipFS
	if fsys == nil {
		fsys = os.DirFS(clipDir(cfg, a.configPath))
	}
	var opts []wavclip.Option
	if cfg.Clips.Concurrency > 0 {
		opts = append(opts, wavclip.WithConcurrency(cfg.Clips.Concurrency))
	}
	return wavclip.New(fsys, opts...)
}

// buildRegistry decodes every clip referenced by effects and converts the
// entries into sfx definitions.
func (a *App) buildRegistry(ctx context.Context, loader *wavclip.Loader, effects []config.EffectConfig) (*sfx.Registry, error) {
	var names []string
	for _, e := range effects {
		names = append(names, e.Clips...)
	}

	start := time.Now()
	clips, err := loader.LoadAll(ctx, names)
	a.metrics.RecordClipLoad(ctx, time.Since(start).Seconds(), err)
	if err != nil {
		return nil, err
	}
	return BuildRegistry(effects, clips), nil
}

// BuildRegistry converts effect entries into an [sfx.Registry], resolving
// clip paths through clips. Paths missing from clips are skipped with a
// warning.
func BuildRegistry(effects []config.EffectConfig, clips map[string]*audio.Clip) *sfx.Registry {
	defs := make([]sfx.EffectDefinition, 0, len(effects))
	for _, e := range effects {
		def := sfx.EffectDefinition{
			Name:          e.Name,
			Volume:        e.VolumeOrDefault(),
			BasePitch:     e.PitchOrDefault(),
			PitchVariance: e.PitchVarianceOrDefault(),
			Clips:         make([]*audio.Clip, 0, len(e.Clips)),
		}
		for _, p := range e.Clips {
			c, ok := clips[p]
			if !ok {
				slog.Warn("clip not loaded, skipping", "effect", e.Name, "clip", p)
				continue
			}
			def.Clips = append(def.Clips, c)
		}
		defs = append(defs, def)
	}
	return sfx.NewRegistry(defs)
}

// clipDir resolves the clip base directory. A relative directory is taken
// relative to the configuration file.
func clipDir(cfg *config.Config, configPath string) string {
	dir := cfg.Clips.BaseDir
	if dir == "" {
		dir = "."
	}
	if filepath.IsAbs(dir) || configPath == "" {
		return dir
	}
	return filepath.Join(filepath.Dir(configPath), dir)
}

func outputName(cfg *config.Config) string {
	if cfg.Output.Name == "" {
		return "output"
	}
	return cfg.Output.Name
}
