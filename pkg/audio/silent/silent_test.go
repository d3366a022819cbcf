package silent_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrWong99/sfxmgr/pkg/audio"
	"github.com/MrWong99/sfxmgr/pkg/audio/silent"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestVoice_PlaysForPitchedDuration(t *testing.T) {
	t.Parallel()

	clk := &fakeClock{now: time.Unix(1000, 0)}
	out := silent.New(silent.WithClock(clk.Now))

	v, err := out.NewVoice()
	if err != nil {
		t.Fatalf("NewVoice: %v", err)
	}
	if v.IsPlaying() {
		t.Fatal("fresh voice reports playing")
	}

	clip := &audio.Clip{Name: "A", Length: time.Second}
	if err := v.Play(clip, 2.0, 1.0); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if !v.IsPlaying() {
		t.Fatal("voice should be playing right after Play")
	}

	clk.Advance(499 * time.Millisecond)
	if !v.IsPlaying() {
		t.Fatal("voice stopped before clip length / pitch")
	}

	clk.Advance(time.Millisecond)
	if v.IsPlaying() {
		t.Fatal("voice still playing after clip length / pitch")
	}
}

func TestVoice_ClearStopsPlayback(t *testing.T) {
	t.Parallel()

	out := silent.New()
	v, _ := out.NewVoice()
	_ = v.Play(&audio.Clip{Name: "A", Length: time.Hour}, 1, 1)
	v.Clear()
	if v.IsPlaying() {
		t.Error("voice still playing after Clear")
	}
	if out.VoiceCount() != 1 {
		t.Errorf("VoiceCount = %d, want 1", out.VoiceCount())
	}
}

func TestVoice_NilClip(t *testing.T) {
	t.Parallel()

	v, _ := silent.New().NewVoice()
	if err := v.Play(nil, 1, 1); !errors.Is(err, audio.ErrNilClip) {
		t.Errorf("err = %v, want ErrNilClip", err)
	}
}
