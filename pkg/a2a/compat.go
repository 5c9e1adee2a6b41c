package a2a

import "sync"

// Process-wide dialect selection. ToDict and MarshalJSON consult this flag;
// explicit ToGoogleA2A / FromGoogleA2A conversions ignore it.
var (
	compatMu  sync.RWMutex
	googleA2A bool
)

// UseGoogleA2A switches the process-wide serialization dialect. Enabling and
// then disabling it is a no-op on subsequent ToDict outputs.
func UseGoogleA2A(enabled bool) {
	compatMu.Lock()
	defer compatMu.Unlock()
	googleA2A = enabled
}

// GoogleA2AEnabled reports whether the Google A2A dialect is active.
func GoogleA2AEnabled() bool {
	compatMu.RLock()
	defer compatMu.RUnlock()
	return googleA2A
}
