package buffer

// SmallMap is an insertion-ordered map adequate for the small (≤32-entry)
// registries the runtime needs — topics, channels, GPIO registers. Lookup
// is a linear scan, which is fine at this scale and keeps iteration order
// deterministic (spec §3: "insertion-ordered map... adequate for ≤32
// entries"), unlike a bare Go map.
//
// Spec §9 flags the original's Map as ambiguous about duplicate-key Put
// semantics ("behavior under duplicate keys depends on the put override").
// This implementation makes it explicit: Put replaces the value in place
// without changing its position in iteration order.
type SmallMap[K comparable, V any] struct {
	keys   []K
	values map[K]V
}

// NewSmallMap creates an empty map.
func NewSmallMap[K comparable, V any]() *SmallMap[K, V] {
	return &SmallMap[K, V]{values: make(map[K]V)}
}

// Put inserts or replaces the value for key. Replacing an existing key does
// not move it in iteration order.
func (m *SmallMap[K, V]) Put(key K, value V) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value and whether the key was present.
func (m *SmallMap[K, V]) Get(key K) (V, bool) {
	v, ok := m.values[key]
	return v, ok
}

// GetOrDefault returns the stored value, or def if the key is absent.
func (m *SmallMap[K, V]) GetOrDefault(key K, def V) V {
	if v, ok := m.values[key]; ok {
		return v
	}
	return def
}

// Exists reports whether key is present.
func (m *SmallMap[K, V]) Exists(key K) bool {
	_, ok := m.values[key]
	return ok
}

// Remove deletes key if present.
func (m *SmallMap[K, V]) Remove(key K) {
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (m *SmallMap[K, V]) Len() int {
	return len(m.keys)
}

// ForEach visits entries in insertion order. Visiting stops early if fn
// returns false.
func (m *SmallMap[K, V]) ForEach(fn func(key K, value V) bool) {
	for _, k := range m.keys {
		if !fn(k, m.values[k]) {
			return
		}
	}
}
