package config

import (
	"cmp"
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Effects and the log level are hot-reloadable; output and server changes
// only take effect after a restart and are reported in RestartRequired.
type ConfigDiff struct {
	EffectsChanged  bool         // true if any effect was added, removed or modified
	EffectChanges   []EffectDiff // per-effect diffs, sorted by name
	ClipsChanged    bool         // clips.base_dir changed; every clip must be reloaded
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RestartRequired lists changed sections that are not applied live.
	RestartRequired []string
}

// EffectDiff describes what changed for a single effect between two configs.
type EffectDiff struct {
	Name          string
	ParamsChanged bool // volume, pitch or pitch variance
	ClipsChanged  bool
	Added         bool
	Removed       bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Server.ListenAddr != new.Server.ListenAddr || !tlsEqual(old.Server.TLS, new.Server.TLS) {
		d.RestartRequired = append(d.RestartRequired, "server")
	}
	if !outputEqual(old.Output, new.Output) {
		d.RestartRequired = append(d.RestartRequired, "output")
	}
	if old.Clips.BaseDir != new.Clips.BaseDir {
		d.ClipsChanged = true
		d.EffectsChanged = true
	}

	// Later duplicates win, matching the effect registry.
	oldEffects := make(map[string]*EffectConfig, len(old.Effects))
	for i := range old.Effects {
		oldEffects[old.Effects[i].Name] = &old.Effects[i]
	}
	newEffects := make(map[string]*EffectConfig, len(new.Effects))
	for i := range new.Effects {
		newEffects[new.Effects[i].Name] = &new.Effects[i]
	}

	for name, oe := range oldEffects {
		ne, exists := newEffects[name]
		if !exists {
			d.EffectChanges = append(d.EffectChanges, EffectDiff{Name: name, Removed: true})
			continue
		}
		ed := diffEffect(name, oe, ne)
		if ed.ParamsChanged || ed.ClipsChanged {
			d.EffectChanges = append(d.EffectChanges, ed)
		}
	}
	for name := range newEffects {
		if _, exists := oldEffects[name]; !exists {
			d.EffectChanges = append(d.EffectChanges, EffectDiff{Name: name, Added: true})
		}
	}

	if len(d.EffectChanges) > 0 {
		d.EffectsChanged = true
		slices.SortFunc(d.EffectChanges, func(a, b EffectDiff) int { return cmp.Compare(a.Name, b.Name) })
	}
	return d
}

// diffEffect compares two effect configs with the same name. Omitted and
// default-valued parameters compare equal.
func diffEffect(name string, old, new *EffectConfig) EffectDiff {
	ed := EffectDiff{Name: name}
	if old.VolumeOrDefault() != new.VolumeOrDefault() ||
		old.PitchOrDefault() != new.PitchOrDefault() ||
		old.PitchVarianceOrDefault() != new.PitchVarianceOrDefault() {
		ed.ParamsChanged = true
	}
	if !slices.Equal(old.Clips, new.Clips) {
		ed.ClipsChanged = true
	}
	return ed
}

func tlsEqual(a, b *TLSConfig) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func outputEqual(a, b OutputConfig) bool {
	if a.Name != b.Name || a.Fallback != b.Fallback || a.SampleRate != b.SampleRate || a.Channels != b.Channels || a.BufferSize != b.BufferSize {
		return false
	}
	if len(a.Options) == 0 && len(b.Options) == 0 {
		return true
	}
	return reflect.DeepEqual(a.Options, b.Options)
}
