// Command sfxmgr is the sound-effect playback server. It plays named effects
// requested over HTTP or typed on stdin, one name per line.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/sfxmgr/internal/app"
	"github.com/MrWong99/sfxmgr/internal/config"
	"github.com/MrWong99/sfxmgr/internal/observe"
	"github.com/MrWong99/sfxmgr/pkg/audio"
	"github.com/MrWong99/sfxmgr/pkg/audio/otoout"
	"github.com/MrWong99/sfxmgr/pkg/audio/silent"
	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "sfx.yaml", "path to the YAML configuration file")
	traceStdout := flag.Bool("trace-stdout", false, "print play and HTTP spans to stderr")
	traceRatio := flag.Float64("trace-ratio", 1, "fraction of new traces to sample (0, 1]")
	noStdin := flag.Bool("no-stdin", false, "do not read effect names from stdin")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sfxmgr: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sfxmgr: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	level := new(slog.LevelVar)
	level.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	slog.Info("sfxmgr starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"output", cfg.Output.Name,
		"effects", len(cfg.Effects),
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	pcfg := observe.ProviderConfig{
		ServiceVersion:   version,
		TraceSampleRatio: *traceRatio,
	}
	if *traceStdout {
		exp, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr), stdouttrace.WithPrettyPrint())
		if err != nil {
			slog.Error("failed to create trace exporter", "err", err)
			return 1
		}
		pcfg.TraceExporter = exp
	}
	shutdownTelemetry, err := observe.InitProvider(ctx, pcfg)
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Audio output ──────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinOutputs(reg)

	output, err := reg.CreateOutput(cfg.Output)
	if err != nil {
		slog.Error("failed to create audio output", "err", err, "available", reg.OutputNames())
		return 1
	}

	appOpts := []app.Option{
		app.WithConfigPath(*configPath),
		app.WithLevelVar(level),
	}
	fallback, err := createFallbackOutput(reg, cfg.Output)
	if err != nil {
		_ = output.Close()
		slog.Error("failed to create fallback output", "err", err, "available", reg.OutputNames())
		return 1
	}
	if fallback != nil {
		appOpts = append(appOpts, app.WithFallbackOutput(cfg.Output.Fallback, fallback))
	}

	application, err := app.New(ctx, cfg, output, appOpts...)
	if err != nil {
		_ = output.Close()
		if fallback != nil {
			_ = fallback.Close()
		}
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	sfx.SetDefault(application.Manager())

	if !*noStdin {
		go readEffects(ctx, os.Stdin)
	}

	slog.Info("server ready; type an effect name and press enter, Ctrl+C to shut down")

	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping")
	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Output wiring ─────────────────────────────────────────────────────────────

// registerBuiltinOutputs wires the output backends that ship with sfxmgr
// into reg.
func registerBuiltinOutputs(reg *config.Registry) {
	reg.RegisterOutput("oto", func(entry config.OutputConfig) (audio.Output, error) {
		ocfg := otoout.Config{
			SampleRate: entry.SampleRate,
			Channels:   entry.Channels,
		}
		if entry.BufferSize != "" {
			d, err := time.ParseDuration(entry.BufferSize)
			if err != nil {
				return nil, fmt.Errorf("buffer_size: %w", err)
			}
			ocfg.BufferSize = d
		}
		return otoout.New(ocfg)
	})

	reg.RegisterOutput("silent", func(config.OutputConfig) (audio.Output, error) {
		return silent.New(), nil
	})

	for _, name := range reg.OutputNames() {
		slog.Debug("registered output", "name", name)
	}
}

// createFallbackOutput builds the backend named by entry.Fallback with the
// primary's device settings. It returns nil when no fallback is configured.
func createFallbackOutput(reg *config.Registry, entry config.OutputConfig) (audio.Output, error) {
	if entry.Fallback == "" {
		return nil, nil
	}
	fb := entry
	fb.Name, fb.Fallback, fb.Options = entry.Fallback, "", nil
	out, err := reg.CreateOutput(fb)
	if err != nil {
		return nil, fmt.Errorf("output.fallback: %w", err)
	}
	return out, nil
}

// ── Stdin ─────────────────────────────────────────────────────────────────────

// readEffects plays one effect per non-empty line of r through the default
// manager until r is exhausted or ctx is cancelled. Each line gets its own
// trace.
func readEffects(ctx context.Context, r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		name := strings.TrimSpace(sc.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		m := sfx.Default()
		if m == nil {
			sfx.PlayEffect(name)
			continue
		}
		lctx, span := observe.StartSpan(ctx, "stdin "+name, trace.WithNewRoot())
		if err := m.Play(lctx, name); err != nil {
			attrs := []any{"effect", name, "err", err}
			if s, ok := m.Registry().Suggest(name); ok && errors.Is(err, sfx.ErrEffectNotFound) {
				attrs = append(attrs, "did_you_mean", s)
			}
			observe.Logger(lctx).Warn("stdin: play failed", attrs...)
		}
		span.End()
	}
	if err := sc.Err(); err != nil {
		slog.Warn("stdin read error", "err", err)
	}
}
