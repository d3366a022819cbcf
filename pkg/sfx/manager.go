// Package sfx plays named sound effects through a pool of reusable voices.
//
// A [Registry] maps effect names to [EffectDefinition] values (clip variants
// plus volume and pitch parameters). A [Manager] resolves a name, takes an
// idle [Voice] from its [Pool] (growing the pool when every voice is busy),
// picks a random clip and a random pitch around the base pitch, starts
// playback and hands a release action to its [Scheduler]. The release runs
// once clip length divided by pitch has elapsed and returns the voice to
// the idle state.
//
// Playback is best effort: [Manager.PlayEffect] never returns an error and
// never panics; failures are logged and the request is dropped.
package sfx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// tracerName is the instrumentation scope for play spans.
const tracerName = "github.com/MrWong99/sfxmgr/pkg/sfx"

// PlayInfo describes a play request that started successfully.
type PlayInfo struct {
	// ID uniquely identifies the play request in logs.
	ID string
	// Effect is the requested effect name.
	Effect string
	// Clip is the name of the chosen clip variant.
	Clip string
	// VoiceID is the pool index of the voice used.
	VoiceID int
	// Pitch is the drawn effective pitch.
	Pitch float64
	// Volume is the definition's volume.
	Volume float64
	// Duration is the expected playback time, after which the voice is released.
	Duration time.Duration
}

// Observer receives play lifecycle notifications, e.g. for metrics.
// Callbacks are invoked with the manager lock held and must not call back
// into the [Manager].
type Observer interface {
	PlayStarted(ctx context.Context, info PlayInfo)
	PlayFailed(ctx context.Context, effect string, err error)
	VoiceReleased(ctx context.Context, effect string, voiceID int)
	PoolGrew(ctx context.Context, size int)
}

type nopObserver struct{}

func (nopObserver) PlayStarted(context.Context, PlayInfo) {}
func (nopObserver) PlayFailed(context.Context, string, error) {}
func (nopObserver) VoiceReleased(context.Context, string, int) {}
func (nopObserver) PoolGrew(context.Context, int) {}

// Option configures a [Manager] during construction.
type Option func(*Manager)

// WithScheduler makes the manager schedule releases on s instead of a
// private scheduler.
func WithScheduler(s *Scheduler) Option {
	return func(m *Manager) {
		if s != nil {
			m.sched = s
		}
	}
}

// WithRand sets the random source used for clip and pitch selection. Tests
// pass a seeded generator to make selection reproducible.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) {
		if r != nil {
			m.rng = r
		}
	}
}

// WithObserver registers o for play lifecycle notifications.
func WithObserver(o Observer) Option {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// WithTracerProvider sets the provider for play spans. The global provider
// is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		if tp != nil {
			m.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithPoolOptions forwards opts to the manager's [Pool].
func WithPoolOptions(opts ...PoolOption) Option {
	return func(m *Manager) {
		m.poolOpts = append(m.poolOpts, opts...)
	}
}

// Stats is a point-in-time snapshot of the manager.
type Stats struct {
	// Effects is the number of registered effects.
	Effects int `json:"effects"`
	// Voices is the pool size.
	Voices int `json:"voices"`
	// Busy is the number of voices waiting for release.
	Busy int `json:"busy"`
	// Audible is the number of voices whose output reports playing.
	Audible int `json:"audible"`
	// PendingReleases is the number of scheduled, not yet executed releases.
	PendingReleases int `json:"pending_releases"`
}

// Manager is the sound-effect service. Construct one per application with
// [New] and pass it to the code that needs to play effects.
//
// All exported methods are safe for concurrent use; play requests and
// releases are serialised on an internal lock.
type Manager struct {
	sched    *Scheduler
	observer Observer
	tracer   trace.Tracer
	poolOpts []PoolOption

	mu       sync.Mutex
	registry *Registry
	pool     *Pool
	rng      *rand.Rand
	closed   bool
}

// New creates a [Manager] that plays effects from reg through voices
// allocated from output. The manager does not take ownership of output.
//
// Releases are only executed while something drains the scheduler: call
// [Manager.Run] on a goroutine, or call RunDue on [Manager.Scheduler] from
// the application's main loop.
func New(output audio.Output, reg *Registry, opts ...Option) *Manager {
	m := &Manager{
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
		registry: reg,
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(m)
	}
	if m.sched == nil {
		m.sched = NewScheduler()
	}
	if m.registry == nil {
		m.registry = NewRegistry(nil)
	}
	m.pool = NewPool(output, m.poolOpts...)
	return m
}

// Scheduler returns the scheduler that executes deferred releases.
func (m *Manager) Scheduler() *Scheduler { return m.sched }

// Run drains the release scheduler until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) error {
	return m.sched.Run(ctx)
}

// Registry returns the registry currently in use.
func (m *Manager) Registry() *Registry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry
}

// Reload swaps in reg for subsequent play requests. Voices that are playing
// keep playing and are released on schedule.
func (m *Manager) Reload(reg *Registry) {
	if reg == nil {
		reg = NewRegistry(nil)
	}
	m.mu.Lock()
	old := m.registry.Len()
	m.registry = reg
	m.mu.Unlock()
	slog.Info("sfx: registry reloaded", "effects_before", old, "effects_after", reg.Len())
}

// PlayEffect plays the effect registered under name and returns
// immediately. Errors are logged, never returned.
func (m *Manager) PlayEffect(name string) {
	err := m.Play(context.Background(), name)
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, ErrEffectNotFound):
		attrs := []any{"effect", name, "err", err}
		if s, ok := m.Registry().Suggest(name); ok {
			attrs = append(attrs, "did_you_mean", s)
		}
		slog.Error("sfx: effect not found", attrs...)
	case errors.Is(err, ErrEmptyClipSet):
		slog.Warn("sfx: no clips assigned to effect", "effect", name)
	default:
		slog.Error("sfx: play failed", "effect", name, "err", err)
	}
}

// Play is like [Manager.PlayEffect] but returns the error and honours the
// trace context in ctx. A failed request leaves registry and pool intact.
func (m *Manager) Play(ctx context.Context, name string) error {
	ctx, span := m.tracer.Start(ctx, "sfx.play",
		trace.WithAttributes(attribute.String("sfx.effect", name)),
	)
	defer span.End()

	info, err := m.play(ctx, name)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	span.SetAttributes(
		attribute.String("sfx.play_id", info.ID),
		attribute.String("sfx.clip", info.Clip),
		attribute.Int("sfx.voice", info.VoiceID),
		attribute.Float64("sfx.pitch", info.Pitch),
		attribute.Float64("sfx.volume", info.Volume),
		attribute.Int64("sfx.duration_ms", info.Duration.Milliseconds()),
	)
	return nil
}

func (m *Manager) play(ctx context.Context, name string) (info PlayInfo, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer func() {
		if err != nil {
			m.observer.PlayFailed(ctx, name, err)
		}
	}()

	if m.closed {
		return info, ErrClosed
	}

	def, ok := m.registry.Lookup(name)
	if !ok {
		return info, fmt.Errorf("%w: %q", ErrEffectNotFound, name)
	}
	if len(def.Clips) == 0 {
		return info, fmt.Errorf("%w: %q", ErrEmptyClipSet, name)
	}

	size := m.pool.Len()
	v, err := m.pool.Acquire()
	if err != nil {
		return info, fmt.Errorf("sfx: play %q: %w", name, err)
	}
	if m.pool.Len() > size {
		m.observer.PoolGrew(ctx, m.pool.Len())
	}

	clip := def.Clips[m.rng.IntN(len(def.Clips))]
	pitch := def.BasePitch + (2*m.rng.Float64()-1)*def.PitchVariance
	if !(pitch > 0) {
		return info, fmt.Errorf("%w: %q drew %.3f", ErrInvalidPitch, name, pitch)
	}

	id := uuid.NewString()
	if err := v.start(clip, pitch, def.Volume, id); err != nil {
		return info, fmt.Errorf("sfx: play %q on voice %d: %w", name, v.ID(), err)
	}

	info = PlayInfo{
		ID:       id,
		Effect:   name,
		Clip:     clip.Name,
		VoiceID:  v.ID(),
		Pitch:    pitch,
		Volume:   def.Volume,
		Duration: clip.PlaybackDuration(pitch),
	}
	m.sched.After(info.Duration, func() { m.release(v, id, name) })
	m.observer.PlayStarted(ctx, info)

	slog.Debug("sfx: playing",
		"play_id", id,
		"effect", name,
		"clip", clip.Name,
		"voice", v.ID(),
		"pitch", pitch,
		"volume", def.Volume,
		"release_after", info.Duration,
	)
	return info, nil
}

// release returns v to the idle state if it still belongs to play request id.
func (m *Manager) release(v *Voice, id, effect string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || v.PlayID() != id {
		return
	}
	v.release()
	m.observer.VoiceReleased(context.Background(), effect, v.ID())
	slog.Debug("sfx: voice released", "play_id", id, "effect", effect, "voice", v.ID())
}

// Stats returns a snapshot of the registry, pool and scheduler.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := Stats{
		Effects:         m.registry.Len(),
		Voices:          m.pool.Len(),
		Busy:            m.pool.Busy(),
		PendingReleases: m.sched.Pending(),
	}
	for _, v := range m.pool.voices {
		if v.OutputPlaying() {
			st.Audible++
		}
	}
	return st
}

// Close stops accepting play requests, drops pending releases and closes
// every pooled voice. Close is idempotent. The output passed to [New] is
// not closed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	dropped := m.sched.Clear()
	slog.Debug("sfx: manager closed", "dropped_releases", dropped, "voices", m.pool.Len())
	return m.pool.Close()
}
