package sfx_test

import (
	"sync"
	"time"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
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

func clip(name string, length time.Duration) *audio.Clip {
	return &audio.Clip{
		Name:   name,
		Format: audio.Format{SampleRate: 48000, Channels: 2},
		Length: length,
	}
}
