package observe

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/metric"

	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// Play status values recorded on [Metrics.Plays].
const (
	StatusOK        = "ok"
	StatusNotFound  = "not_found"
	StatusNoClips   = "no_clips"
	StatusNoVoice   = "no_voice"
	StatusPlayback  = "playback_error"
	StatusClosed    = "closed"
	StatusBadPitch  = "invalid_pitch"
	StatusUnhandled = "error"
)

// PlayStatus classifies a play error into a low-cardinality status label.
func PlayStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, sfx.ErrEffectNotFound):
		return StatusNotFound
	case errors.Is(err, sfx.ErrEmptyClipSet):
		return StatusNoClips
	case errors.Is(err, sfx.ErrOutputCreation), errors.Is(err, sfx.ErrMissingOutputBinding):
		return StatusNoVoice
	case errors.Is(err, sfx.ErrPlayback):
		return StatusPlayback
	case errors.Is(err, sfx.ErrClosed):
		return StatusClosed
	case errors.Is(err, sfx.ErrInvalidPitch):
		return StatusBadPitch
	default:
		return StatusUnhandled
	}
}

// PlayObserver records [sfx.Manager] lifecycle events on [Metrics].
type PlayObserver struct {
	m *Metrics
}

var _ sfx.Observer = (*PlayObserver)(nil)

// NewPlayObserver returns an [sfx.Observer] that records on m.
func NewPlayObserver(m *Metrics) *PlayObserver {
	return &PlayObserver{m: m}
}

// PlayStarted implements [sfx.Observer].
func (o *PlayObserver) PlayStarted(ctx context.Context, info sfx.PlayInfo) {
	effect := metric.WithAttributes(Attr("effect", info.Effect))
	o.m.RecordPlay(ctx, info.Effect, StatusOK)
	o.m.PlaybackDuration.Record(ctx, info.Duration.Seconds(), effect)
	o.m.PlayPitch.Record(ctx, info.Pitch, effect)
	o.m.BusyVoices.Add(ctx, 1)
}

// PlayFailed implements [sfx.Observer]. Unknown effect names are recorded
// under a single label to bound cardinality.
func (o *PlayObserver) PlayFailed(ctx context.Context, effect string, err error) {
	status := PlayStatus(err)
	if status == StatusNotFound {
		effect = "_unknown"
	}
	o.m.RecordPlay(ctx, effect, status)
}

// VoiceReleased implements [sfx.Observer].
func (o *PlayObserver) VoiceReleased(ctx context.Context, _ string, _ int) {
	o.m.BusyVoices.Add(ctx, -1)
}

// PoolGrew implements [sfx.Observer].
func (o *PlayObserver) PoolGrew(ctx context.Context, size int) {
	o.m.VoicesCreated.Add(ctx, 1)
	o.m.PoolVoices.Record(ctx, int64(size))
}
