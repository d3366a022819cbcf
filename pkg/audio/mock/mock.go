// Package mock provides in-memory mock implementations of the [audio.Output]
// and [audio.Voice] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported fields
// that the test can set to control return values.
//
// Typical usage:
//
//	out := &mock.Output{}
//	v, _ := out.NewVoice()
//	_ = v.Play(&audio.Clip{Name: "jump", Length: time.Second}, 1.1, 0.8)
//	calls := out.Voices[0].PlayCalls()
package mock

import (
	"sync"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// ─── Voice ────────────────────────────────────────────────────────────────────

// PlayCall records the arguments of a single [Voice.Play] invocation.
type PlayCall struct {
	// Clip is the clip passed to Play.
	Clip *audio.Clip
	// Pitch is the pitch multiplier passed to Play.
	Pitch float64
	// Volume is the volume passed to Play.
	Volume float64
}

// Voice is a mock implementation of [audio.Voice]. By default a voice reports
// playing from a successful Play until the next Clear; set PlayingOverride to
// force a fixed answer.
type Voice struct {
	mu sync.Mutex

	// ID is the creation index assigned by [Output.NewVoice].
	ID int

	// PlayError is returned by Play when non-nil.
	PlayError error

	// PlayingOverride, when non-nil, is returned by IsPlaying instead of the
	// tracked state.
	PlayingOverride *bool

	playing        bool
	clip           *audio.Clip
	playCalls      []PlayCall
	clearCount     int
	closeCount     int
	isPlayingCount int
}

// Play implements [audio.Voice]. Records the call and marks the voice playing.
func (v *Voice) Play(clip *audio.Clip, pitch, volume float64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.playCalls = append(v.playCalls, PlayCall{Clip: clip, Pitch: pitch, Volume: volume})
	if v.PlayError != nil {
		return v.PlayError
	}
	if clip == nil {
		return audio.ErrNilClip
	}
	v.clip = clip
	v.playing = true
	return nil
}

// IsPlaying implements [audio.Voice].
func (v *Voice) IsPlaying() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.isPlayingCount++
	if v.PlayingOverride != nil {
		return *v.PlayingOverride
	}
	return v.playing
}

// Clear implements [audio.Voice]. Drops the clip and stops playback.
func (v *Voice) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearCount++
	v.clip = nil
	v.playing = false
}

// Close implements [audio.Voice].
func (v *Voice) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closeCount++
	v.playing = false
	return nil
}

// Clip returns the clip currently assigned to the voice, or nil.
func (v *Voice) Clip() *audio.Clip {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clip
}

// PlayCalls returns a copy of all recorded Play invocations.
func (v *Voice) PlayCalls() []PlayCall {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]PlayCall, len(v.playCalls))
	copy(out, v.playCalls)
	return out
}

// ClearCount returns how many times Clear was called.
func (v *Voice) ClearCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.clearCount
}

// CloseCount returns how many times Close was called.
func (v *Voice) CloseCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closeCount
}

// ─── Output ───────────────────────────────────────────────────────────────────

// Output is a mock implementation of [audio.Output].
// Set the exported fields before use; inspect Voices and the call counters after.
type Output struct {
	mu sync.Mutex

	// NewVoiceError is returned by NewVoice when non-nil. No voice is created.
	NewVoiceError error

	// ReturnNilVoice makes NewVoice return (nil, nil), simulating a backend
	// that produced a voice without an output binding.
	ReturnNilVoice bool

	// Voices holds every voice created by NewVoice, in creation order.
	Voices []*Voice

	// CallCountNewVoice records how many times NewVoice was called.
	CallCountNewVoice int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewVoice implements [audio.Output].
func (o *Output) NewVoice() (audio.Voice, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CallCountNewVoice++
	if o.NewVoiceError != nil {
		return nil, o.NewVoiceError
	}
	if o.ReturnNilVoice {
		return nil, nil
	}
	v := &Voice{ID: len(o.Voices)}
	o.Voices = append(o.Voices, v)
	return v, nil
}

// Close implements [audio.Output].
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.CallCountClose++
	return nil
}

// VoiceCount returns the number of voices created so far.
func (o *Output) VoiceCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.Voices)
}

// Voice returns the i-th created voice.
func (o *Output) Voice(i int) *Voice {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.Voices[i]
}

// SetNewVoiceError changes NewVoiceError under the mock's lock.
func (o *Output) SetNewVoiceError(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.NewVoiceError = err
}
