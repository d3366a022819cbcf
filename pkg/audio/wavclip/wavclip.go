// Package wavclip decodes WAV files into [audio.Clip] values. Decoded clips
// are cached by name so that rebuilding an effect registry after a config
// reload does not decode unchanged assets again.
package wavclip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"math"
	"path"
	"sync"
	"time"

	"github.com/gopxl/beep/v2/wav"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// ErrEmptyName is returned when a clip is requested with an empty name.
var ErrEmptyName = errors.New("wavclip: empty clip name")

// DefaultConcurrency bounds parallel decodes in [Loader.LoadAll] when no
// explicit limit is configured.
const DefaultConcurrency = 4

// streamChunk is the number of frames pulled from the decoder per call.
const streamChunk = 1024

// Option configures a [Loader].
type Option func(*Loader)

// WithConcurrency sets how many files LoadAll decodes in parallel.
// Values below 1 are ignored.
func WithConcurrency(n int) Option {
	return func(l *Loader) {
		if n > 0 {
			l.concurrency = n
		}
	}
}

// WithCacheTTL makes decoded clips expire from the cache after d. The
// default keeps clips for the lifetime of the Loader.
func WithCacheTTL(d time.Duration) Option {
	return func(l *Loader) {
		if d > 0 {
			l.cache = cache.New(d, 2*d)
		}
	}
}

// Loader reads WAV clips from a filesystem. It is safe for concurrent use.
type Loader struct {
	fsys        fs.FS
	concurrency int
	cache       *cache.Cache
}

// New creates a [Loader] that resolves clip names relative to fsys
// (typically [os.DirFS] of the configured clip directory).
func New(fsys fs.FS, opts ...Option) *Loader {
	l := &Loader{
		fsys:        fsys,
		concurrency: DefaultConcurrency,
		cache:       cache.New(cache.NoExpiration, 0),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Load returns the decoded clip for name, decoding and caching it on first use.
func (l *Loader) Load(name string) (*audio.Clip, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if c, ok := l.cache.Get(name); ok {
		return c.(*audio.Clip), nil
	}

	f, err := l.fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("wavclip: open %q: %w", name, err)
	}
	clip, err := Decode(path.Base(name), f)
	if err != nil {
		return nil, fmt.Errorf("wavclip: decode %q: %w", name, err)
	}

	l.cache.Set(name, clip, cache.DefaultExpiration)
	slog.Debug("wavclip: decoded clip", "name", name, "length", clip.Length, "format", clip.Format.String())
	return clip, nil
}

// LoadAll decodes every distinct name in names concurrently and returns the
// clips keyed by name. The first decode error cancels the remaining work and
// is returned.
func (l *Loader) LoadAll(ctx context.Context, names []string) (map[string]*audio.Clip, error) {
	var (
		mu  sync.Mutex
		out = make(map[string]*audio.Clip, len(names))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	seen := make(map[string]struct{}, len(names))
	for _, name := range names {
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			clip, err := l.Load(name)
			if err != nil {
				return err
			}
			mu.Lock()
			out[name] = clip
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Cached reports how many decoded clips are currently held.
func (l *Loader) Cached() int {
	return l.cache.ItemCount()
}

// Forget drops name from the cache so the next Load decodes it again.
func (l *Loader) Forget(name string) {
	l.cache.Delete(name)
}

// Decode reads a complete WAV stream from r into a clip named name. Stereo
// and mono files keep their channel count; the samples are stored as
// little-endian int16. r is closed if it implements [io.Closer].
func Decode(name string, r io.Reader) (*audio.Clip, error) {
	s, format, err := wav.Decode(r)
	if err != nil {
		if c, ok := r.(io.Closer); ok {
			_ = c.Close()
		}
		return nil, err
	}
	defer s.Close()

	channels := min(max(format.NumChannels, 1), 2)
	pcm := make([]byte, 0, s.Len()*2*channels)
	buf := make([][2]float64, streamChunk)
	for {
		n, ok := s.Stream(buf)
		for _, frame := range buf[:n] {
			for ch := range channels {
				v := toInt16(frame[ch])
				pcm = append(pcm, byte(v), byte(v>>8))
			}
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, err
	}

	return audio.NewClip(name, audio.Format{
		SampleRate: int(format.SampleRate),
		Channels:   channels,
	}, pcm), nil
}

// toInt16 maps a [-1, 1] float sample onto the int16 range, clamping
// out-of-range input.
func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * math.MaxInt16))
}
