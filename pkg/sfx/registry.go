package sfx

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/antzucaro/matchr"
)

// suggestThreshold is the minimum Jaro–Winkler similarity for [Registry.Suggest]
// to propose a registered name.
const suggestThreshold = 0.8

// Registry maps effect names to their definitions. A Registry is immutable
// after [NewRegistry] returns and is therefore safe for concurrent reads.
// To change the set of effects, build a new Registry and hand it to
// [Manager.Reload].
type Registry struct {
	effects map[string]EffectDefinition
	names   []string // sorted
}

// NewRegistry builds a registry from defs in order. When two definitions
// share a name the later one replaces the earlier one and a warning is
// logged. Out-of-range parameters are clamped (see [EffectDefinition]) and
// logged as well.
func NewRegistry(defs []EffectDefinition) *Registry {
	r := &Registry{effects: make(map[string]EffectDefinition, len(defs))}
	for _, d := range defs {
		nd, notes := d.normalize()
		for _, n := range notes {
			slog.Warn("sfx: effect definition adjusted", "effect", d.Name, "change", n)
		}
		if _, dup := r.effects[nd.Name]; dup {
			slog.Warn("sfx: duplicate effect name; only the last definition is used",
				"effect", nd.Name,
				"err", ErrDuplicateEffectName,
			)
		}
		r.effects[nd.Name] = nd
	}

	r.names = make([]string, 0, len(r.effects))
	for name := range r.effects {
		r.names = append(r.names, name)
	}
	slices.Sort(r.names)
	return r
}

// Lookup returns the definition registered under name.
func (r *Registry) Lookup(name string) (EffectDefinition, bool) {
	d, ok := r.effects[name]
	return d, ok
}

// Len returns the number of registered effects.
func (r *Registry) Len() int { return len(r.effects) }

// Names returns the registered effect names in sorted order.
func (r *Registry) Names() []string {
	return slices.Clone(r.names)
}

// Suggest returns the registered name most similar to name, if any is close
// enough to be a likely typo.
func (r *Registry) Suggest(name string) (string, bool) {
	want := strings.ToLower(name)
	best, bestScore := "", 0.0
	for _, candidate := range r.names {
		score := matchr.JaroWinkler(want, strings.ToLower(candidate), false)
		if score > bestScore {
			best, bestScore = candidate, score
		}
	}
	if bestScore < suggestThreshold {
		return "", false
	}
	return best, true
}
