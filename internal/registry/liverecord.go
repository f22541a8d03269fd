// Package registry implements the named object registry (spec §4.G):
// two name-keyed sub-registries (GPIO pin arrays, and live-object slots)
// plus a process-wide liveness set that makes stale-pointer lookups
// detectable without weak references or generational handles.
//
// Grounded on the teacher's GhostContainer pool
// (internal/ghostpool/pool_manager.go): containers register themselves
// into a shared map on creation and deregister on release/destroy,
// and callers consult that map rather than trusting a held reference.
// Generalized here from "sandbox pool slot" to "any registered object",
// and made synchronous/single-threaded per spec §5 — no background
// maintainer goroutine, since nothing here needs one.
package registry

import "sync"

// LiveRecord is a handle wrapping an arbitrary value, tracked in the
// process-wide LiveSet for the lifetime between NewLiveRecord and
// Release. Looking a record up in the set after Release reports it as
// dead, the Go stand-in for the original's dangling-pointer problem.
type LiveRecord struct {
	value interface{}
}

// LiveSet is a mutex-guarded set of live *LiveRecord pointers, shared
// process-wide so any holder of a *LiveRecord can check it is still
// valid before dereferencing its value.
type LiveSet struct {
	mu    sync.Mutex
	alive map[*LiveRecord]struct{}
}

// globalLiveSet is the process-wide set every LiveRecord registers
// into, mirroring the teacher's single shared PoolManager.active map.
var globalLiveSet = &LiveSet{alive: make(map[*LiveRecord]struct{})}

// NewLiveRecord allocates a record wrapping value and pushes it into
// the process-wide live set.
func NewLiveRecord(value interface{}) *LiveRecord {
	r := &LiveRecord{value: value}
	globalLiveSet.mu.Lock()
	globalLiveSet.alive[r] = struct{}{}
	globalLiveSet.mu.Unlock()
	return r
}

// Release removes r from the process-wide live set. Subsequent
// IsAlive/Value calls on r report it dead. Idempotent.
func (r *LiveRecord) Release() {
	globalLiveSet.mu.Lock()
	delete(globalLiveSet.alive, r)
	globalLiveSet.mu.Unlock()
}

// IsAlive reports whether r is still registered in the live set.
func (r *LiveRecord) IsAlive() bool {
	globalLiveSet.mu.Lock()
	defer globalLiveSet.mu.Unlock()
	_, ok := globalLiveSet.alive[r]
	return ok
}

// Value returns the wrapped value and whether r is still alive. A
// dead record always returns (nil, false) regardless of what it
// wrapped, so a caller cannot accidentally dereference stale state.
func (r *LiveRecord) Value() (interface{}, bool) {
	if r == nil || !r.IsAlive() {
		return nil, false
	}
	return r.value, true
}

// LiveCount reports the number of currently-live records, for tests
// and diagnostics.
func LiveCount() int {
	globalLiveSet.mu.Lock()
	defer globalLiveSet.mu.Unlock()
	return len(globalLiveSet.alive)
}
