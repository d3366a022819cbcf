package audio

import (
	"fmt"
	"time"
)

// Format describes the sample rate and channel count of a PCM buffer.
type Format struct {
	SampleRate int
	Channels   int
}

// String returns a human-readable form such as "44100Hz stereo".
func (f Format) String() string {
	return formatString(f.SampleRate, f.Channels)
}

// bytesPerFrame returns the size of one interleaved int16 frame.
func (f Format) bytesPerFrame() int {
	return 2 * max(f.Channels, 1)
}

// Clip is a decoded sound asset. PCM holds little-endian int16 samples
// interleaved per channel. A Clip is immutable once constructed and may be
// shared by any number of voices.
type Clip struct {
	// Name identifies the clip in logs, usually its file name.
	Name string

	// Format of the PCM data.
	Format Format

	// PCM is the raw sample data. It may be nil for clips that only carry
	// timing information (e.g. in tests or for the silent backend).
	PCM []byte

	// Length is the playback duration at pitch 1.0.
	Length time.Duration
}

// NewClip builds a [Clip] from raw PCM and derives its Length from the
// number of complete frames.
func NewClip(name string, format Format, pcm []byte) *Clip {
	c := &Clip{Name: name, Format: format, PCM: pcm}
	if format.SampleRate > 0 {
		frames := len(pcm) / format.bytesPerFrame()
		c.Length = time.Duration(frames) * time.Second / time.Duration(format.SampleRate)
	}
	return c
}

// Frames returns the number of complete frames in the PCM data.
func (c *Clip) Frames() int {
	return len(c.PCM) / c.Format.bytesPerFrame()
}

// PlaybackDuration returns how long the clip is audible when played at pitch.
// Raising the pitch shortens playback proportionally. A non-positive pitch
// or NaN has no finite duration and yields zero.
func (c *Clip) PlaybackDuration(pitch float64) time.Duration {
	if !(pitch > 0) {
		return 0
	}
	return time.Duration(float64(c.Length) / pitch)
}

// String implements [fmt.Stringer].
func (c *Clip) String() string {
	return fmt.Sprintf("%s (%s, %s)", c.Name, c.Length, c.Format)
}
