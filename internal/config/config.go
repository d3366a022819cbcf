// Package config provides the configuration schema, loader, output backend
// registry and hot-reload watcher for the sfxmgr sound-effect service.
package config

import (
	"log/slog"

	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// LogLevel controls log verbosity for the sfxmgr server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the matching [slog.Level]. Unknown and empty values map
// to [slog.LevelInfo].
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for sfxmgr.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server  ServerConfig   `yaml:"server"`
	Output  OutputConfig   `yaml:"output"`
	Clips   ClipsConfig    `yaml:"clips"`
	Effects []EffectConfig `yaml:"effects"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the HTTP API (e.g., ":8080"). When
	// empty the HTTP API is disabled.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the server. When nil, the server runs plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// OutputConfig selects and tunes the audio output backend.
type OutputConfig struct {
	// Name is the registered backend name, e.g. "oto" or "silent".
	Name string `yaml:"name"`

	// SampleRate of the device in Hz. Zero lets the backend choose.
	SampleRate int `yaml:"sample_rate"`

	// Channels of the device (1 or 2). Zero lets the backend choose.
	Channels int `yaml:"channels"`

	// BufferSize is the device buffer duration, e.g. "40ms". Empty lets the
	// backend choose.
	BufferSize string `yaml:"buffer_size"`

	// Options holds backend-specific values not covered by the fields above.
	Options map[string]any `yaml:"options"`

	// Fallback names a backend, typically "silent", that creates voices
	// while Name fails. It shares the device fields above. Empty disables it.
	Fallback string `yaml:"fallback"`
}

// ClipsConfig controls how clip files are located and decoded.
type ClipsConfig struct {
	// BaseDir is the directory clip paths are resolved against. Relative
	// paths are resolved against the config file's directory.
	BaseDir string `yaml:"base_dir"`

	// Concurrency bounds parallel decoding. Zero uses the loader default.
	Concurrency int `yaml:"concurrency"`
}

// EffectConfig declares one named sound effect. Omitted numeric fields take
// the defaults in [sfx.DefaultVolume], [sfx.DefaultPitch] and
// [sfx.DefaultPitchVariance].
type EffectConfig struct {
	// Name is the key passed to play requests. Required.
	Name string `yaml:"name"`

	// Volume in [0, 1].
	Volume *float64 `yaml:"volume"`

	// Pitch is the base pitch multiplier in [0.1, 3].
	Pitch *float64 `yaml:"pitch"`

	// PitchVariance is the maximum random deviation from Pitch, in [0, 1.5].
	PitchVariance *float64 `yaml:"pitch_variance"`

	// Clips lists clip files (relative to [ClipsConfig.BaseDir]); one is
	// chosen at random per play.
	Clips []string `yaml:"clips"`
}

// VolumeOrDefault returns Volume or the package default when unset.
func (e EffectConfig) VolumeOrDefault() float64 {
	return valueOr(e.Volume, sfx.DefaultVolume)
}

// PitchOrDefault returns Pitch or the package default when unset.
func (e EffectConfig) PitchOrDefault() float64 {
	return valueOr(e.Pitch, sfx.DefaultPitch)
}

// PitchVarianceOrDefault returns PitchVariance or the package default when unset.
func (e EffectConfig) PitchVarianceOrDefault() float64 {
	return valueOr(e.PitchVariance, sfx.DefaultPitchVariance)
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
