package sfx

import (
	"testing"
	"time"

	"github.com/MrWong99/sfxmgr/pkg/audio"
	"github.com/MrWong99/sfxmgr/pkg/audio/mock"
)

// Not parallel: exercises the process-wide default manager.
func TestDefaultManager(t *testing.T) {
	// Without a default the call is dropped.
	PlayEffect("jump")

	out := &mock.Output{}
	reg := NewRegistry([]EffectDefinition{{
		Name: "jump", Volume: 1, BasePitch: 1,
		Clips: []*audio.Clip{{Name: "A", Length: time.Second}},
	}})
	m := New(out, reg)
	t.Cleanup(func() {
		_ = m.Close()
		defaultManager.Store(nil)
	})

	if SetDefault(nil) {
		t.Error("SetDefault(nil) must be rejected")
	}
	if !SetDefault(m) {
		t.Fatal("first SetDefault rejected")
	}
	if SetDefault(New(&mock.Output{}, nil)) {
		t.Error("second SetDefault accepted")
	}
	if Default() != m {
		t.Error("Default does not return the first manager")
	}

	PlayEffect("jump")
	if out.VoiceCount() != 1 {
		t.Errorf("voices = %d, want 1", out.VoiceCount())
	}
}
