// Package otoout implements [audio.Output] on top of the ebitengine oto
// device library. Pitch is applied by resampling the clip before it is
// handed to the device, so a higher pitch also plays for a shorter time.
//
// oto allows only one context per process; create a single [Output] and
// share it.
package otoout

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// Compile-time interface assertions.
var (
	_ audio.Output = (*Output)(nil)
	_ audio.Voice  = (*voice)(nil)
)

// ErrClosed is returned by [Output.NewVoice] after [Output.Close].
var ErrClosed = errors.New("otoout: output closed")

const (
	// DefaultSampleRate is used when [Config.SampleRate] is zero.
	DefaultSampleRate = 44100

	// DefaultChannels is used when [Config.Channels] is zero.
	DefaultChannels = 2
)

// Config configures the device context.
type Config struct {
	// SampleRate of the device stream in Hz. Default: 44100.
	SampleRate int

	// Channels of the device stream (1 or 2). Default: 2.
	Channels int

	// BufferSize is the device buffer length. Zero lets oto choose.
	BufferSize time.Duration
}

// Output is an [audio.Output] backed by a single oto context.
type Output struct {
	ctx  *oto.Context
	conv *audio.FormatConverter

	// converted caches device-format PCM per clip so repeated plays of the
	// same clip only pay the conversion once.
	converted sync.Map // *audio.Clip → []byte

	mu     sync.Mutex
	closed bool
}

// New opens the audio device and blocks until it is ready.
func New(cfg Config) (*Output, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Channels <= 0 {
		cfg.Channels = DefaultChannels
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   cfg.SampleRate,
		ChannelCount: cfg.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   cfg.BufferSize,
	})
	if err != nil {
		return nil, fmt.Errorf("otoout: open device: %w", err)
	}
	<-ready

	slog.Info("otoout: audio device ready",
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer", cfg.BufferSize,
	)

	return &Output{
		ctx:  ctx,
		conv: &audio.FormatConverter{Target: audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}},
	}, nil
}

// NewVoice implements [audio.Output]. Fails if the output is closed or the
// device reported an error.
func (o *Output) NewVoice() (audio.Voice, error) {
	o.mu.Lock()
	closed := o.closed
	o.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}
	if err := o.ctx.Err(); err != nil {
		return nil, fmt.Errorf("otoout: device error: %w", err)
	}
	return &voice{out: o}, nil
}

// Close suspends the device. oto contexts cannot be reopened, so a closed
// Output stays closed for the lifetime of the process.
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.ctx.Suspend()
}

// devicePCM returns clip data converted to the device format.
func (o *Output) devicePCM(clip *audio.Clip) []byte {
	if pcm, ok := o.converted.Load(clip); ok {
		return pcm.([]byte)
	}
	pcm := o.conv.Convert(clip.PCM, clip.Format)
	o.converted.Store(clip, pcm)
	return pcm
}

// voice owns at most one oto player at a time.
type voice struct {
	out *Output

	mu     sync.Mutex
	player *oto.Player
}

func (v *voice) Play(clip *audio.Clip, pitch, volume float64) error {
	if clip == nil {
		return audio.ErrNilClip
	}
	pcm := audio.ShiftPitch16(v.out.devicePCM(clip), v.out.conv.Target.Channels, pitch)

	v.mu.Lock()
	defer v.mu.Unlock()

	v.stopLocked()
	p := v.out.ctx.NewPlayer(bytes.NewReader(pcm))
	p.SetVolume(volume)
	p.Play()
	v.player = p
	return nil
}

func (v *voice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.player != nil && v.player.IsPlaying()
}

func (v *voice) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stopLocked()
}

func (v *voice) Close() error {
	v.Clear()
	return nil
}

// stopLocked pauses and releases the current player. Must be called with v.mu held.
func (v *voice) stopLocked() {
	if v.player == nil {
		return
	}
	v.player.Pause()
	if err := v.player.Close(); err != nil {
		slog.Debug("otoout: close player", "err", err)
	}
	v.player = nil
}
