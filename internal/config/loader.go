package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// ValidOutputNames lists the output backends shipped with sfxmgr.
// Used by [Validate] to warn about unrecognised backend names.
var ValidOutputNames = []string{"oto", "silent"}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
// Problems the effect registry tolerates (duplicate names, empty clip lists)
// are logged as warnings instead.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Output
	if cfg.Output.Name != "" && !slices.Contains(ValidOutputNames, cfg.Output.Name) {
		slog.Warn("unknown output backend name; it must be registered before start",
			"name", cfg.Output.Name,
			"known", ValidOutputNames,
		)
	}
	if fb := cfg.Output.Fallback; fb != "" {
		switch {
		case fb == cfg.Output.Name:
			errs = append(errs, fmt.Errorf("output.fallback %q must differ from output.name", fb))
		case !slices.Contains(ValidOutputNames, fb):
			slog.Warn("unknown fallback output name; it must be registered before start",
				"name", fb,
				"known", ValidOutputNames,
			)
		}
	}
	if cfg.Output.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("output.sample_rate %d must not be negative", cfg.Output.SampleRate))
	}
	if cfg.Output.Channels < 0 || cfg.Output.Channels > 2 {
		errs = append(errs, fmt.Errorf("output.channels %d is out of range [0, 2]", cfg.Output.Channels))
	}
	if cfg.Output.BufferSize != "" {
		if d, err := time.ParseDuration(cfg.Output.BufferSize); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("output.buffer_size %q is not a valid duration", cfg.Output.BufferSize))
		}
	}

	// Clips
	if cfg.Clips.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("clips.concurrency %d must not be negative", cfg.Clips.Concurrency))
	}

	// Effects
	seen := make(map[string]int, len(cfg.Effects))
	for i, e := range cfg.Effects {
		prefix := fmt.Sprintf("effects[%d]", i)
		if e.Name == "" {
			errs = append(errs, fmt.Errorf("%s.name is required", prefix))
		} else {
			if prev, ok := seen[e.Name]; ok {
				slog.Warn("duplicate effect name; the later definition wins",
					"effect", e.Name,
					"first", prev,
					"second", i,
				)
			}
			seen[e.Name] = i
		}

		vol := e.VolumeOrDefault()
		if !inRange(vol, sfx.MinVolume, sfx.MaxVolume) {
			errs = append(errs, fmt.Errorf("%s.volume %.2f is out of range [%.1f, %.1f]", prefix, vol, sfx.MinVolume, sfx.MaxVolume))
		}
		pitch := e.PitchOrDefault()
		if !inRange(pitch, sfx.MinBasePitch, sfx.MaxBasePitch) {
			errs = append(errs, fmt.Errorf("%s.pitch %.2f is out of range [%.1f, %.1f]", prefix, pitch, sfx.MinBasePitch, sfx.MaxBasePitch))
		}
		variance := e.PitchVarianceOrDefault()
		switch {
		case !inRange(variance, 0, sfx.MaxPitchVariance):
			errs = append(errs, fmt.Errorf("%s.pitch_variance %.2f is out of range [0, %.1f]", prefix, variance, sfx.MaxPitchVariance))
		case pitch-variance < sfx.MinEffectivePitch:
			errs = append(errs, fmt.Errorf("%s.pitch_variance %.2f allows pitch below %.2f (pitch %.2f)", prefix, variance, sfx.MinEffectivePitch, pitch))
		}

		if len(e.Clips) == 0 {
			slog.Warn("effect has no clips and will never sound", "effect", e.Name)
		}
		for j, c := range e.Clips {
			if c == "" {
				errs = append(errs, fmt.Errorf("%s.clips[%d] is empty", prefix, j))
			}
		}
	}

	return errors.Join(errs...)
}

// inRange reports whether v is a finite number in [lo, hi]. NaN is out of
// every range.
func inRange(v, lo, hi float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= lo && v <= hi
}
