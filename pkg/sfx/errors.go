package sfx

import "errors"

var (
	// ErrEffectNotFound is returned by [Manager.Play] when no effect is
	// registered under the requested name.
	ErrEffectNotFound = errors.New("sfx: effect not found")

	// ErrEmptyClipSet is returned by [Manager.Play] when the effect exists but
	// has no clips to choose from.
	ErrEmptyClipSet = errors.New("sfx: effect has no clips")

	// ErrOutputCreation is returned by [Pool.Acquire] when the output backend
	// fails to create a new voice. The pool is left unchanged.
	ErrOutputCreation = errors.New("sfx: cannot create output voice")

	// ErrMissingOutputBinding is returned when a voice has no underlying
	// output handle to play through.
	ErrMissingOutputBinding = errors.New("sfx: voice has no output binding")

	// ErrDuplicateEffectName is logged (never returned) when a registry is
	// built from definitions that share a name. The last definition wins.
	ErrDuplicateEffectName = errors.New("sfx: duplicate effect name")

	// ErrInvalidPitch is returned when a play request would run at a
	// non-positive pitch. Registry normalisation makes this unreachable for
	// definitions built through [NewRegistry].
	ErrInvalidPitch = errors.New("sfx: non-positive effective pitch")

	// ErrPlayback is returned when the output voice rejects the clip.
	ErrPlayback = errors.New("sfx: playback failed")

	// ErrClosed is returned by [Manager.Play] after [Manager.Close].
	ErrClosed = errors.New("sfx: manager closed")
)
