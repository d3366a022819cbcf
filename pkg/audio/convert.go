package audio

import (
	"fmt"
	"log/slog"
	"sync"
)

// FormatConverter converts clip PCM to the format of an output device. It
// logs a warning on the first format mismatch and on the first misaligned
// buffer. Create one per output; the zero value with Target set is ready to
// use and safe for concurrent use.
type FormatConverter struct {
	Target         Format
	warnedMismatch sync.Once
	warnedCorrupt  sync.Once
}

// Convert returns pcm converted from the from format to c.Target. If the
// formats already match, pcm is returned unchanged (zero allocation).
// Conversion order: resample first, then channel convert.
func (c *FormatConverter) Convert(pcm []byte, from Format) []byte {
	if len(pcm)%2 != 0 {
		c.warnedCorrupt.Do(func() {
			slog.Warn("audio format converter: odd byte count in PCM data, dropping clip data",
				"bytes", len(pcm),
				"format", from.String(),
			)
		})
		return nil
	}

	if from == c.Target {
		return pcm
	}

	c.warnedMismatch.Do(func() {
		slog.Warn("audio format mismatch: converting",
			"from", from.String(),
			"to", c.Target.String(),
		)
	})

	channels := max(from.Channels, 1)
	if from.SampleRate != c.Target.SampleRate && from.SampleRate > 0 && c.Target.SampleRate > 0 {
		pcm = resample16(pcm, channels, float64(from.SampleRate)/float64(c.Target.SampleRate))
	}

	switch {
	case channels == 1 && c.Target.Channels == 2:
		pcm = MonoToStereo(pcm)
	case channels == 2 && c.Target.Channels == 1:
		pcm = StereoToMono(pcm)
	}
	return pcm
}

// ShiftPitch16 renders pcm as if played pitch times faster than normal, using
// linear interpolation. The output holds len/pitch frames, so both the pitch
// and the duration change together, the way a tape machine would behave.
// A pitch of 1 or a non-positive pitch returns pcm unchanged.
func ShiftPitch16(pcm []byte, channels int, pitch float64) []byte {
	if pitch <= 0 || pitch == 1 {
		return pcm
	}
	return resample16(pcm, max(channels, 1), pitch)
}

// MonoToStereo duplicates each int16 mono sample into a stereo L+R pair.
// Input must be little-endian int16 PCM (2 bytes per sample).
func MonoToStereo(pcm []byte) []byte {
	out := make([]byte, (len(pcm)/2)*4)
	for i := 0; i+1 < len(pcm); i += 2 {
		j := i * 2
		out[j], out[j+1] = pcm[i], pcm[i+1]
		out[j+2], out[j+3] = pcm[i], pcm[i+1]
	}
	return out
}

// StereoToMono averages L+R per stereo frame (4 bytes) to produce mono output.
// The average of two int16 values always fits in int16.
func StereoToMono(pcm []byte) []byte {
	frames := len(pcm) / 4
	out := make([]byte, frames*2)
	for i := range frames {
		l := int32(sampleAt(pcm, i*2))
		r := int32(sampleAt(pcm, i*2+1))
		putSample(out, i, int16((l+r)/2))
	}
	return out
}

// ResampleMono16 resamples 16-bit mono PCM from srcRate to dstRate using
// linear interpolation. If the rates match or either is non-positive, the
// input is returned unchanged.
func ResampleMono16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	return resample16(pcm, 1, float64(srcRate)/float64(dstRate))
}

// ResampleStereo16 resamples 16-bit interleaved stereo PCM from srcRate to
// dstRate using linear interpolation.
func ResampleStereo16(pcm []byte, srcRate, dstRate int) []byte {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return pcm
	}
	return resample16(pcm, 2, float64(srcRate)/float64(dstRate))
}

// resample16 walks the source at step source frames per output frame and
// linearly interpolates every channel. step > 1 shortens the buffer.
func resample16(pcm []byte, channels int, step float64) []byte {
	srcFrames := len(pcm) / (2 * channels)
	if srcFrames == 0 {
		return nil
	}
	dstFrames := int(float64(srcFrames) / step)
	if dstFrames == 0 {
		return nil
	}

	out := make([]byte, dstFrames*2*channels)
	for i := range dstFrames {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= srcFrames {
			idx = srcFrames - 1
		}
		frac := pos - float64(idx)
		next := idx + 1
		if next >= srcFrames {
			next = idx
		}
		for ch := range channels {
			s0 := float64(sampleAt(pcm, idx*channels+ch))
			s1 := float64(sampleAt(pcm, next*channels+ch))
			putSample(out, i*channels+ch, int16(s0*(1-frac)+s1*frac))
		}
	}
	return out
}

// sampleAt decodes the n-th little-endian int16 sample of pcm.
func sampleAt(pcm []byte, n int) int16 {
	return int16(pcm[n*2]) | int16(pcm[n*2+1])<<8
}

// putSample encodes v as the n-th little-endian int16 sample of pcm.
func putSample(pcm []byte, n int, v int16) {
	pcm[n*2] = byte(v)
	pcm[n*2+1] = byte(v >> 8)
}

// formatString returns a human-readable string for a sample rate and channel count,
// e.g. "48000Hz stereo".
func formatString(rate, channels int) string {
	ch := "mono"
	if channels == 2 {
		ch = "stereo"
	} else if channels > 2 {
		ch = fmt.Sprintf("%dch", channels)
	}
	return fmt.Sprintf("%dHz %s", rate, ch)
}
