package sfx

import (
	"log/slog"
	"sync/atomic"
)

var defaultManager atomic.Pointer[Manager]

// SetDefault installs m as the process-wide manager used by the package-level
// [PlayEffect]. Only the first call has an effect; later calls log a warning
// and return false. Prefer passing a *Manager explicitly where possible.
func SetDefault(m *Manager) bool {
	if m == nil {
		return false
	}
	if !defaultManager.CompareAndSwap(nil, m) {
		slog.Warn("sfx: default manager already set; ignoring")
		return false
	}
	return true
}

// Default returns the manager installed by [SetDefault], or nil.
func Default() *Manager {
	return defaultManager.Load()
}

// PlayEffect plays name on the default manager. Without a default manager
// the request is logged and dropped.
func PlayEffect(name string) {
	m := defaultManager.Load()
	if m == nil {
		slog.Error("sfx: no default manager set", "effect", name)
		return
	}
	m.PlayEffect(name)
}
