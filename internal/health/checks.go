package health

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrWong99/sfxmgr/internal/resilience"
	"github.com/MrWong99/sfxmgr/pkg/sfx"
)

// ErrNoEffects is reported by [EffectsLoaded] when the registry is empty.
var ErrNoEffects = errors.New("no effects registered")

// BreakerClosed fails while the output device breaker is open, i.e. while
// new voices cannot be created. A half-open breaker counts as ready so that
// the next play request can probe the device.
func BreakerClosed(cb *resilience.CircuitBreaker) Checker {
	return Checker{
		Name: "output",
		Check: func(context.Context) error {
			if s := cb.State(); s == resilience.StateOpen {
				return fmt.Errorf("%s: circuit %s", cb.Name(), s)
			}
			return nil
		},
	}
}

// EffectsLoaded fails when m has no registered effects, which usually means
// the effect configuration or clip directory is wrong.
func EffectsLoaded(m *sfx.Manager) Checker {
	return Checker{
		Name: "effects",
		Check: func(context.Context) error {
			if m.Registry().Len() == 0 {
				return ErrNoEffects
			}
			return nil
		},
	}
}
