package app

import (
	"context"
	"errors"

	"github.com/MrWong99/sfxmgr/internal/observe"
	"github.com/MrWong99/sfxmgr/internal/resilience"
	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// fallbackOutput creates each voice on the first output of group that can
// provide one. Voices keep playing on the output that created them, so a
// voice obtained from a fallback stays in the pool after the primary
// recovers.
type fallbackOutput struct {
	group *resilience.FallbackGroup[audio.Output]
}

func newFallbackOutput(primaryName string, primary audio.Output, fallbackName string, fallback audio.Output, m *observe.Metrics) *fallbackOutput {
	group := resilience.NewFallbackGroup(primaryName, primary, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			OnStateChange: func(name string, _, to resilience.State) {
				m.RecordBreakerTransition(context.Background(), name, to.String())
			},
		},
	})
	group.AddFallback(fallbackName, fallback)
	return &fallbackOutput{group: group}
}

// NewVoice implements [audio.Output].
func (o *fallbackOutput) NewVoice() (audio.Voice, error) {
	return resilience.ExecuteWithResult(o.group, func(out audio.Output) (audio.Voice, error) {
		return out.NewVoice()
	})
}

// Close closes every output of the group.
func (o *fallbackOutput) Close() error {
	var errs []error
	for _, out := range o.group.Values() {
		if err := out.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// states reports the breaker state of every output by name.
func (o *fallbackOutput) states() map[string]string {
	out := make(map[string]string)
	for name, s := range o.group.States() {
		out[name] = s.String()
	}
	return out
}
