package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/sfxmgr/pkg/audio"
)

// ErrOutputNotRegistered is returned by [Registry.CreateOutput] when no
// factory has been registered under the requested backend name.
var ErrOutputNotRegistered = errors.New("config: output backend not registered")

// OutputFactory constructs an audio output from its configuration block.
type OutputFactory func(OutputConfig) (audio.Output, error)

// Registry maps output backend names to their constructor functions.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	outputs map[string]OutputFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{outputs: make(map[string]OutputFactory)}
}

// RegisterOutput registers an output backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterOutput(name string, factory OutputFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outputs[name] = factory
}

// CreateOutput instantiates the backend registered under cfg.Name.
// Returns [ErrOutputNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateOutput(cfg OutputConfig) (audio.Output, error) {
	r.mu.RLock()
	factory, ok := r.outputs[cfg.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrOutputNotRegistered, cfg.Name)
	}
	out, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("config: create output %q: %w", cfg.Name, err)
	}
	return out, nil
}

// OutputNames returns the registered backend names in sorted order.
func (r *Registry) OutputNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.outputs))
	for name := range r.outputs {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
