// Package audio defines the output capability consumed by the sound-effect
// manager and the clip type that flows through it.
//
// The two primary abstractions are:
//
//   - [Output]: an audio device (or a stand-in for one) that hands out
//     independent playback [Voice] handles.
//   - [Voice]: one playback channel capable of playing exactly one [Clip] at
//     a time with a given pitch and volume.
//
// Implementations live in adapter packages (audio/otoout for a real device,
// audio/silent for headless runs, audio/mock for tests). The interfaces are
// intentionally narrow so that pooling and scheduling stay decoupled from
// decoding and mixing details.
package audio

import "errors"

// ErrNilClip is returned by [Voice.Play] implementations when called without a clip.
var ErrNilClip = errors.New("audio: nil clip")

// Voice is a single playback handle obtained from [Output.NewVoice].
//
// A Voice plays at most one clip at a time. Calling Play while a previous clip
// is still audible replaces it. Implementations must be safe for concurrent
// use because the device may report IsPlaying from its own goroutine.
type Voice interface {
	// Play loads clip and starts playback immediately at the given pitch
	// multiplier (1.0 = original speed) and volume in [0, 1]. Play does not
	// block until playback finishes.
	Play(clip *Clip, pitch, volume float64) error

	// IsPlaying reports whether the voice is currently producing sound. The
	// value is read from device-owned state and may be stale by the time the
	// caller acts on it.
	IsPlaying() bool

	// Clear stops any current playback and drops the assigned clip. Clear is
	// idempotent.
	Clear()

	// Close releases the underlying device resources. The voice must not be
	// used afterwards.
	Close() error
}

// Output is the entry point of an audio backend. Implementations wrap a
// device library (oto, …) and expose a uniform [Voice] abstraction.
//
// Implementations must be safe for concurrent use.
type Output interface {
	// NewVoice allocates a fresh playback voice. Returns an error if the
	// backend cannot create another voice (device lost, resource limits, …).
	NewVoice() (Voice, error)

	// Close shuts the backend down. Voices obtained earlier become unusable.
	Close() error
}
