package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/MrWong99/sfxmgr/internal/config"
	"github.com/MrWong99/sfxmgr/pkg/audio"
	"github.com/MrWong99/sfxmgr/pkg/audio/mock"
	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// ── helpers ──────────────────────────────────────────────────────────────────

const sampleYAML = `
server:
  listen_addr: ":8080"
  log_level: info

output:
  name: oto
  sample_rate: 48000
  channels: 2
  buffer_size: 40ms
  options:
    device: default

clips:
  base_dir: sounds
  concurrency: 8

effects:
  - name: jump
    volume: 0.8
    pitch: 1.2
    pitch_variance: 0.1
    clips: [jump_a.wav, jump_b.wav]
  - name: coin
    clips: [coin.wav]
`

// ── YAML loading ──────────────────────────────────────────────────────────────

func TestLoadFromReader_Sample(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Output.Name != "oto" || cfg.Output.SampleRate != 48000 || cfg.Output.Channels != 2 || cfg.Output.BufferSize != "40ms" {
		t.Errorf("output: got %+v", cfg.Output)
	}
	if cfg.Output.Options["device"] != "default" {
		t.Errorf("output.options.device: got %v", cfg.Output.Options["device"])
	}
	if cfg.Clips.BaseDir != "sounds" || cfg.Clips.Concurrency != 8 {
		t.Errorf("clips: got %+v", cfg.Clips)
	}
	if len(cfg.Effects) != 2 {
		t.Fatalf("effects: got %d, want 2", len(cfg.Effects))
	}

	jump := cfg.Effects[0]
	if jump.VolumeOrDefault() != 0.8 || jump.PitchOrDefault() != 1.2 || jump.PitchVarianceOrDefault() != 0.1 {
		t.Errorf("jump params: volume %v pitch %v variance %v",
			jump.VolumeOrDefault(), jump.PitchOrDefault(), jump.PitchVarianceOrDefault())
	}
	if !slices.Equal(jump.Clips, []string{"jump_a.wav", "jump_b.wav"}) {
		t.Errorf("jump clips: got %v", jump.Clips)
	}
}

func TestEffectConfig_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(sampleYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	coin := cfg.Effects[1]
	if coin.Volume != nil || coin.Pitch != nil || coin.PitchVariance != nil {
		t.Fatal("omitted fields should decode as nil")
	}
	if coin.VolumeOrDefault() != sfx.DefaultVolume {
		t.Errorf("volume default: got %v", coin.VolumeOrDefault())
	}
	if coin.PitchOrDefault() != sfx.DefaultPitch {
		t.Errorf("pitch default: got %v", coin.PitchOrDefault())
	}
	if coin.PitchVarianceOrDefault() != sfx.DefaultPitchVariance {
		t.Errorf("pitch_variance default: got %v", coin.PitchVarianceOrDefault())
	}
}

func TestEffectConfig_ExplicitZero(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(`
effects:
  - name: mute
    volume: 0
    pitch_variance: 0
    clips: [a.wav]
`))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	e := cfg.Effects[0]
	if e.VolumeOrDefault() != 0 || e.PitchVarianceOrDefault() != 0 {
		t.Errorf("explicit zero overridden by default: volume %v variance %v", e.VolumeOrDefault(), e.PitchVarianceOrDefault())
	}
}

func TestLoadFromReader_Empty(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("empty config: %v", err)
	}
	if len(cfg.Effects) != 0 {
		t.Errorf("effects: got %d", len(cfg.Effects))
	}
}

func TestLoadFromReader_UnknownField(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader(`
effects:
  - name: jump
    pich: 1.2
`))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "sfx.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Effects) != 2 {
		t.Errorf("effects: got %d", len(cfg.Effects))
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("err = %v, want wrapped os.ErrNotExist", err)
	}
}

func TestLogLevel(t *testing.T) {
	t.Parallel()
	for _, l := range []config.LogLevel{config.LogDebug, config.LogInfo, config.LogWarn, config.LogError} {
		if !l.IsValid() {
			t.Errorf("%q should be valid", l)
		}
	}
	if config.LogLevel("verbose").IsValid() {
		t.Error("verbose should be invalid")
	}
	if config.LogDebug.SlogLevel().String() != "DEBUG" || config.LogLevel("").SlogLevel().String() != "INFO" {
		t.Error("SlogLevel mapping is wrong")
	}
}

// ── Registry ─────────────────────────────────────────────────────────────────

func TestRegistry_CreateOutput(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	out := &mock.Output{}
	var got config.OutputConfig
	reg.RegisterOutput("mock", func(cfg config.OutputConfig) (audio.Output, error) {
		got = cfg
		return out, nil
	})

	created, err := reg.CreateOutput(config.OutputConfig{Name: "mock", SampleRate: 22050})
	if err != nil {
		t.Fatalf("CreateOutput: %v", err)
	}
	if created != out {
		t.Error("factory result not returned")
	}
	if got.SampleRate != 22050 {
		t.Errorf("factory received %+v", got)
	}
}

func TestRegistry_NotRegistered(t *testing.T) {
	t.Parallel()
	_, err := config.NewRegistry().CreateOutput(config.OutputConfig{Name: "alsa"})
	if !errors.Is(err, config.ErrOutputNotRegistered) {
		t.Errorf("err = %v, want ErrOutputNotRegistered", err)
	}
}

func TestRegistry_FactoryError(t *testing.T) {
	t.Parallel()
	errNoDevice := errors.New("no device")
	reg := config.NewRegistry()
	reg.RegisterOutput("broken", func(config.OutputConfig) (audio.Output, error) { return nil, errNoDevice })

	if _, err := reg.CreateOutput(config.OutputConfig{Name: "broken"}); !errors.Is(err, errNoDevice) {
		t.Errorf("err = %v, want wrapped factory error", err)
	}
}

func TestRegistry_OverwriteAndNames(t *testing.T) {
	t.Parallel()
	reg := config.NewRegistry()
	first, second := &mock.Output{}, &mock.Output{}
	reg.RegisterOutput("silent", func(config.OutputConfig) (audio.Output, error) { return first, nil })
	reg.RegisterOutput("silent", func(config.OutputConfig) (audio.Output, error) { return second, nil })
	reg.RegisterOutput("oto", func(config.OutputConfig) (audio.Output, error) { return first, nil })

	out, _ := reg.CreateOutput(config.OutputConfig{Name: "silent"})
	if out != second {
		t.Error("later registration did not overwrite")
	}
	if names := reg.OutputNames(); !slices.Equal(names, []string{"oto", "silent"}) {
		t.Errorf("OutputNames = %v", names)
	}
}
