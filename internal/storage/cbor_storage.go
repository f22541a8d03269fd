package storage

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// CBORStorage wraps a Store key with a typed, dirty-tracked CBOR document —
// the Go shape of spec §3's invariant: "Storage store() is a no-op unless
// the in-memory CBOR tree has been mutated since last store (a dirty flag,
// forcibly settable)."
type CBORStorage[T any] struct {
	mu    sync.Mutex
	store Store
	key   string
	value T
	dirty bool
}

// NewCBORStorage restores key from store into a zero-value T if absent.
func NewCBORStorage[T any](store Store, key string) (*CBORStorage[T], error) {
	cs := &CBORStorage[T]{store: store, key: key}
	if _, err := cs.Restore(); err != nil {
		return nil, err
	}
	return cs, nil
}

// Restore reloads the document from the backing store. Missing keys
// restore the zero value rather than erroring, matching first-boot
// semantics (no `/wifi.cbor` yet on a freshly provisioned device).
func (cs *CBORStorage[T]) Restore() (T, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	raw, ok := cs.store.Get(cs.key)
	if !ok {
		var zero T
		cs.value = zero
		return cs.value, nil
	}
	var v T
	if err := cbor.Unmarshal(raw, &v); err != nil {
		var zero T
		return zero, fmt.Errorf("storage: decode %s: %w", cs.key, err)
	}
	cs.value = v
	cs.dirty = false
	return cs.value, nil
}

// Get returns the current in-memory value without touching the store.
func (cs *CBORStorage[T]) Get() T {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.value
}

// Set replaces the in-memory value and marks it dirty.
func (cs *CBORStorage[T]) Set(v T) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.value = v
	cs.dirty = true
}

// MarkDirty forces the next Store call to persist even if Set was never
// called (spec: "a dirty flag, forcibly settable").
func (cs *CBORStorage[T]) MarkDirty() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.dirty = true
}

// Store persists the current value if dirty. Returns false (spec §7
// filesystem-failure semantics) without error only when called while
// clean; a write failure is always surfaced as a non-nil error.
func (cs *CBORStorage[T]) Store() (bool, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.dirty {
		return false, nil
	}
	raw, err := cbor.Marshal(cs.value)
	if err != nil {
		return false, fmt.Errorf("storage: encode %s: %w", cs.key, err)
	}
	if err := cs.store.Put(cs.key, raw); err != nil {
		return false, err
	}
	cs.dirty = false
	return true, nil
}

// Clean deletes the key from the backing store and resets to the zero
// value in memory.
func (cs *CBORStorage[T]) Clean() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if err := cs.store.Delete(cs.key); err != nil {
		return err
	}
	var zero T
	cs.value = zero
	cs.dirty = false
	return nil
}
