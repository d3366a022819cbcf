package sfx

import (
	"fmt"
	"math"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// Parameter bounds for an [EffectDefinition]. Definitions outside these
// bounds are clamped by [NewRegistry].
const (
	MinVolume        = 0.0
	MaxVolume        = 1.0
	MinBasePitch     = 0.1
	MaxBasePitch     = 3.0
	MaxPitchVariance = 1.5

	// MinEffectivePitch is the lowest pitch a play request may draw. The
	// variance of a definition is reduced so that BasePitch−PitchVariance
	// never falls below it.
	MinEffectivePitch = 0.05
)

// Defaults applied by configuration loaders when a field is omitted.
const (
	DefaultVolume        = 1.0
	DefaultPitch         = 1.0
	DefaultPitchVariance = 0.1
)

// EffectDefinition is the static configuration of one named sound effect.
// Definitions are treated as immutable once a [Registry] holds them.
type EffectDefinition struct {
	// Name is the unique key used by [Manager.PlayEffect].
	Name string

	// Volume in [0, 1].
	Volume float64

	// BasePitch in [0.1, 3]; 1.0 plays clips at their recorded speed.
	BasePitch float64

	// PitchVariance in [0, 1.5]. Every play draws a pitch uniformly from
	// [BasePitch−PitchVariance, BasePitch+PitchVariance].
	PitchVariance float64

	// Clips are the variants one of which is chosen uniformly per play.
	// An empty slice is valid but the effect will never sound.
	Clips []*audio.Clip
}

// PitchRange returns the closed interval effective pitches are drawn from.
func (d EffectDefinition) PitchRange() (lo, hi float64) {
	return d.BasePitch - d.PitchVariance, d.BasePitch + d.PitchVariance
}

// normalize returns a copy of d with every parameter clamped into its valid
// range and nil clips removed. Each adjustment is described in the returned
// slice so the caller can log it.
func (d EffectDefinition) normalize() (EffectDefinition, []string) {
	var notes []string
	clamp := func(field string, v, lo, hi float64) float64 {
		switch {
		case v < lo:
			notes = append(notes, fmt.Sprintf("%s %.3f raised to %.3f", field, v, lo))
			return lo
		case v > hi:
			notes = append(notes, fmt.Sprintf("%s %.3f lowered to %.3f", field, v, hi))
			return hi
		}
		return v
	}

	// NaN compares false against every bound, so it must be replaced
	// before clamping.
	finite := func(field string, v, def float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			notes = append(notes, fmt.Sprintf("%s %v replaced by default %.3f", field, v, def))
			return def
		}
		return v
	}

	out := d
	out.Volume = clamp("volume", finite("volume", d.Volume, DefaultVolume), MinVolume, MaxVolume)
	out.BasePitch = clamp("pitch", finite("pitch", d.BasePitch, DefaultPitch), MinBasePitch, MaxBasePitch)
	out.PitchVariance = clamp("pitch_variance", finite("pitch_variance", d.PitchVariance, DefaultPitchVariance), 0, MaxPitchVariance)
	out.PitchVariance = clamp("pitch_variance", out.PitchVariance, 0, out.BasePitch-MinEffectivePitch)

	out.Clips = make([]*audio.Clip, 0, len(d.Clips))
	for i, c := range d.Clips {
		if c == nil {
			notes = append(notes, fmt.Sprintf("clips[%d] is nil and was dropped", i))
			continue
		}
		out.Clips = append(out.Clips, c)
	}
	return out, notes
}
