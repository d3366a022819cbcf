// Package silent provides an [audio.Output] that produces no sound. Its
// voices report playing for exactly as long as the pitched clip would be
// audible, which makes it suitable for headless servers and CI runs where no
// audio device exists.
package silent

import (
	"sync"
	"time"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Output = (*Output)(nil)
	_ audio.Voice  = (*voice)(nil)
)

// Option configures an [Output].
type Option func(*Output)

// WithClock replaces the wall clock used to decide whether a voice is still
// playing. Intended for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Output) {
		if now != nil {
			o.now = now
		}
	}
}

// Output is a device-less [audio.Output]. The zero value is not usable; use [New].
type Output struct {
	now func() time.Time

	mu     sync.Mutex
	voices int
}

// New returns a ready-to-use silent [Output].
func New(opts ...Option) *Output {
	o := &Output{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewVoice implements [audio.Output]. It never fails.
func (o *Output) NewVoice() (audio.Voice, error) {
	o.mu.Lock()
	o.voices++
	o.mu.Unlock()
	return &voice{now: o.now}, nil
}

// VoiceCount returns how many voices were handed out.
func (o *Output) VoiceCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.voices
}

// Close implements [audio.Output]. It is a no-op.
func (o *Output) Close() error { return nil }

type voice struct {
	now func() time.Time

	mu    sync.Mutex
	until time.Time
}

func (v *voice) Play(clip *audio.Clip, pitch, _ float64) error {
	if clip == nil {
		return audio.ErrNilClip
	}
	v.mu.Lock()
	v.until = v.now().Add(clip.PlaybackDuration(pitch))
	v.mu.Unlock()
	return nil
}

func (v *voice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now().Before(v.until)
}

func (v *voice) Clear() {
	v.mu.Lock()
	v.until = time.Time{}
	v.mu.Unlock()
}

func (v *voice) Close() error {
	v.Clear()
	return nil
}
