package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every entry of a [FallbackGroup] failed or
// was skipped because its breaker is open.
var ErrAllFailed = errors.New("all fallback entries failed")

// FallbackConfig is the template for the breaker created per entry. Name is
// overwritten with the entry name.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup tries a primary value and then each fallback in order, each
// behind its own [CircuitBreaker]. Entries are fixed after construction, so
// a FallbackGroup is safe for concurrent use once built.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group whose first entry is primary.
func NewFallbackGroup[T any](primaryName string, primary T, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends an entry tried after all earlier ones. It must not be
// called once the group is in use.
func (fg *FallbackGroup[T]) AddFallback(name string, value T) {
	fg.add(name, value)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Names returns the entry names in try order.
func (fg *FallbackGroup[T]) Names() []string {
	names := make([]string, len(fg.entries))
	for i, e := range fg.entries {
		names[i] = e.name
	}
	return names
}

// States returns the breaker state of every entry keyed by name.
func (fg *FallbackGroup[T]) States() map[string]State {
	states := make(map[string]State, len(fg.entries))
	for _, e := range fg.entries {
		states[e.name] = e.breaker.State()
	}
	return states
}

// Active returns the name of the first entry whose breaker is not open, or
// "" when every breaker is open.
func (fg *FallbackGroup[T]) Active() string {
	for _, e := range fg.entries {
		if e.breaker.State() != StateOpen {
			return e.name
		}
	}
	return ""
}

// Values returns the entry values in try order.
func (fg *FallbackGroup[T]) Values() []T {
	values := make([]T, len(fg.entries))
	for i, e := range fg.entries {
		values[i] = e.value
	}
	return values
}

// Execute runs fn against each entry in order until one succeeds. The
// returned error wraps [ErrAllFailed] and the last entry's error.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	var lastErr error
	for i, e := range fg.entries {
		err := e.breaker.Execute(func() error { return fn(e.value) })
		if err == nil {
			if i > 0 {
				slog.Debug("fallback entry served", "entry", e.name)
			}
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("fallback entry skipped; circuit open", "entry", e.name)
			continue
		}
		slog.Warn("fallback entry failed, trying next", "entry", e.name, "err", err)
	}
	return fmt.Errorf("%w: %w", ErrAllFailed, lastErr)
}

// ExecuteWithResult is [FallbackGroup.Execute] for functions that return a
// value. Methods cannot declare type parameters, hence the package function.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := fg.Execute(func(v T) error {
		r, err := fn(v)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}
