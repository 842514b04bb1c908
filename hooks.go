package chathistory

// ThreadEvictedHook is called when trimming permanently drops whole
// threads from the store. The dropped threads are passed so embedders
// can warn the user or archive them elsewhere; the store itself keeps
// no record of them.
type ThreadEvictedHook func(dropped []Thread)

// SaveDegradedHook is called when a save did not persist the full
// state: either the emergency single-thread fallback ran, or storage
// was cleared entirely.
type SaveDegradedHook func(outcome SaveOutcome)

// HookRegistry manages store lifecycle hooks.
type HookRegistry struct {
	threadEvicted []ThreadEvictedHook
	saveDegraded  []SaveDegradedHook
}

// NewHookRegistry creates a new hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{}
}

// RegisterThreadEvicted registers a hook for thread eviction.
func (r *HookRegistry) RegisterThreadEvicted(hook ThreadEvictedHook) {
	r.threadEvicted = append(r.threadEvicted, hook)
}

// RegisterSaveDegraded registers a hook for degraded saves.
func (r *HookRegistry) RegisterSaveDegraded(hook SaveDegradedHook) {
	r.saveDegraded = append(r.saveDegraded, hook)
}

// WithThreadEvicted is a fluent method to register an eviction hook.
func (r *HookRegistry) WithThreadEvicted(hook ThreadEvictedHook) *HookRegistry {
	r.RegisterThreadEvicted(hook)
	return r
}

// WithSaveDegraded is a fluent method to register a degraded-save hook.
func (r *HookRegistry) WithSaveDegraded(hook SaveDegradedHook) *HookRegistry {
	r.RegisterSaveDegraded(hook)
	return r
}

// notifyThreadEvicted invokes every registered eviction hook.
func (r *HookRegistry) notifyThreadEvicted(dropped []Thread) {
	if len(dropped) == 0 {
		return
	}
	for _, hook := range r.threadEvicted {
		hook(dropped)
	}
}

// notifySaveDegraded invokes every registered degraded-save hook.
func (r *HookRegistry) notifySaveDegraded(outcome SaveOutcome) {
	for _, hook := range r.saveDegraded {
		hook(outcome)
	}
}
