package sfx

import (
	"errors"
	"fmt"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// VoiceState is the explicit availability of a pooled [Voice].
type VoiceState int

const (
	// VoiceIdle means the voice may be handed out by [Pool.Acquire].
	VoiceIdle VoiceState = iota

	// VoiceBusy means the voice is playing and waits for its deferred release.
	VoiceBusy
)

// String returns the human-readable name of the state.
func (s VoiceState) String() string {
	switch s {
	case VoiceIdle:
		return "idle"
	case VoiceBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Voice is one pooled playback unit. It wraps exactly one [audio.Voice] and
// is owned by the [Pool] that created it. Voice methods are not
// synchronised; the owning [Manager] serialises all access.
type Voice struct {
	id    int
	out   audio.Voice
	state VoiceState

	clip   *audio.Clip
	pitch  float64
	volume float64
	playID string
}

// ID returns the creation index of the voice within its pool.
func (v *Voice) ID() int { return v.id }

// State returns the current availability of the voice.
func (v *Voice) State() VoiceState { return v.state }

// IsBusy reports whether the voice is waiting for its deferred release.
func (v *Voice) IsBusy() bool { return v.state == VoiceBusy }

// Clip returns the clip assigned by the last play, or nil when idle.
func (v *Voice) Clip() *audio.Clip { return v.clip }

// Pitch returns the pitch of the current or last playback.
func (v *Voice) Pitch() float64 { return v.pitch }

// Volume returns the volume of the current or last playback.
func (v *Voice) Volume() float64 { return v.volume }

// PlayID returns the identifier of the play request that owns the voice, or
// the empty string when idle.
func (v *Voice) PlayID() string { return v.playID }

// OutputPlaying reports what the underlying output says about audibility.
// This is diagnostic only; availability is decided by [Voice.State].
func (v *Voice) OutputPlaying() bool {
	return v.out != nil && v.out.IsPlaying()
}

// start configures the voice and begins playback. On error the voice keeps
// its previous state.
func (v *Voice) start(clip *audio.Clip, pitch, volume float64, playID string) error {
	if v.out == nil {
		return ErrMissingOutputBinding
	}
	if err := v.out.Play(clip, pitch, volume); err != nil {
		return fmt.Errorf("%w: %w", ErrPlayback, err)
	}
	v.clip = clip
	v.pitch = pitch
	v.volume = volume
	v.playID = playID
	v.state = VoiceBusy
	return nil
}

// release clears the assigned clip and returns the voice to idle.
func (v *Voice) release() {
	v.clip = nil
	v.playID = ""
	if v.out != nil {
		v.out.Clear()
	}
	v.state = VoiceIdle
}

// Guard wraps voice creation, typically with a circuit breaker, so that a
// failing device is not hammered on every play request.
type Guard interface {
	Execute(fn func() error) error
}

// PoolOption configures a [Pool].
type PoolOption func(*Pool)

// WithGuard routes every voice creation through g.
func WithGuard(g Guard) PoolOption {
	return func(p *Pool) { p.guard = g }
}

// Pool is an unbounded, grow-only collection of voices. Acquisition scans
// voices in creation order and creates a new one only when all are busy.
// Pool is not safe for concurrent use; [Manager] serialises access.
type Pool struct {
	output audio.Output
	guard  Guard
	voices []*Voice
}

// NewPool creates an empty pool that allocates voices from output.
func NewPool(output audio.Output, opts ...PoolOption) *Pool {
	p := &Pool{output: output}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Acquire returns the first idle voice, or creates and appends a new one if
// every voice is busy. On error the pool is unchanged.
func (p *Pool) Acquire() (*Voice, error) {
	for _, v := range p.voices {
		if v.state == VoiceIdle {
			return v, nil
		}
	}

	var out audio.Voice
	create := func() error {
		var err error
		out, err = p.output.NewVoice()
		return err
	}
	var err error
	if p.guard != nil {
		err = p.guard.Execute(create)
	} else {
		err = create()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOutputCreation, err)
	}
	if out == nil {
		return nil, ErrMissingOutputBinding
	}

	v := &Voice{id: len(p.voices), out: out}
	p.voices = append(p.voices, v)
	return v, nil
}

// Len returns the number of voices ever created by the pool.
func (p *Pool) Len() int { return len(p.voices) }

// Busy returns how many voices are waiting for their release.
func (p *Pool) Busy() int {
	n := 0
	for _, v := range p.voices {
		if v.state == VoiceBusy {
			n++
		}
	}
	return n
}

// Voices returns the pooled voices in creation order. The slice is a copy;
// the voices are shared.
func (p *Pool) Voices() []*Voice {
	out := make([]*Voice, len(p.voices))
	copy(out, p.voices)
	return out
}

// Close closes every voice's output handle. The pool must not be used
// afterwards.
func (p *Pool) Close() error {
	var errs []error
	for _, v := range p.voices {
		if v.out == nil {
			continue
		}
		v.out.Clear()
		if err := v.out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("voice %d: %w", v.id, err))
		}
	}
	return errors.Join(errs...)
}
