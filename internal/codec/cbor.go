// Package codec implements the wire codec layer: a CBOR value wrapper with
// Map/Array builders matching spec §3's incremental-put semantics, and a
// COSE_Sign1 envelope used to authenticate scripts and MQTT traffic.
//
// Both layers are built on real ecosystem packages rather than a hand-rolled
// encoder: github.com/fxamacker/cbor/v2 for the value codec, and
// github.com/veraison/go-cose for the signed envelope — the same pairing
// used by the retrieval pack's massifs/rootsigner.go.
package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Map is an incrementally-built CBOR map that replaces existing keys on
// repeated Put, matching spec §3's CBOR Value contract. Iteration order
// follows insertion order, which cbor.Marshal preserves for map[string]any
// only when given a deterministic key order — so Map carries its own key
// list rather than relying on map iteration order.
type Map struct {
	keys   []string
	values map[string]interface{}
}

// NewMap creates an empty CBOR map builder.
func NewMap() *Map {
	return &Map{values: make(map[string]interface{})}
}

// Put inserts or replaces key's value. Replacing an existing key does not
// move its position.
func (m *Map) Put(key string, value interface{}) *Map {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
	return m
}

// Get returns the value for key and whether it was present.
func (m *Map) Get(key string) (interface{}, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// cborMapEntry is one key/value pair of an orderedCBORMap, whose
// MarshalCBOR writes the map header and then each separately marshaled
// key and value in slice order, so the wire bytes are deterministic and
// match the builder's insertion order.
type cborMapEntry struct {
	Key   string
	Value interface{}
}

// Encode serializes the map to canonical-ish CBOR preserving insertion
// order. Spec §3 calls for a dry-run-then-exact-allocate encoder; the Go
// cbor library already sizes its output internally, so EncodeDryRun below
// simply measures the length of this same call's output.
func (m *Map) Encode() ([]byte, error) {
	enc, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("codec: build encoder: %w", err)
	}
	// cbor.Marshal on an ordered-key wrapper: build a raw map by encoding
	// each key/value pair in insertion order into an indefinite-length-free
	// map using the library's low level encoder.
	return enc.Marshal(m.orderedMap())
}

// orderedMap converts to a slice of key/value pairs in insertion order,
// which orderedCBORMap.MarshalCBOR encodes as one definite-length map.
func (m *Map) orderedMap() orderedCBORMap {
	out := make(orderedCBORMap, len(m.keys))
	for i, k := range m.keys {
		out[i] = cborMapEntry{Key: k, Value: m.values[k]}
	}
	return out
}

// orderedCBORMap implements cbor.Marshaler to emit a definite-length CBOR
// map (major type 5) whose pairs appear in the given order, rather than the
// sorted order cbor.Marshal would otherwise impose on a Go map.
type orderedCBORMap []cborMapEntry

func (o orderedCBORMap) MarshalCBOR() ([]byte, error) {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	// Encode the map header (major type 5, length len(o)) followed by each
	// key/value pair in order.
	buf := encodeMapHeader(uint64(len(o)))
	for _, entry := range o {
		kb, err := em.Marshal(entry.Key)
		if err != nil {
			return nil, fmt.Errorf("codec: marshal key %q: %w", entry.Key, err)
		}
		vb, err := em.Marshal(entry.Value)
		if err != nil {
			return nil, fmt.Errorf("codec: marshal value for %q: %w", entry.Key, err)
		}
		buf = append(buf, kb...)
		buf = append(buf, vb...)
	}
	return buf, nil
}

// encodeMapHeader encodes a CBOR major-type-5 (map) head for n key/value
// pairs, following RFC 8949 §3 directly since cbor/v2 has no exported
// "write raw header" primitive.
func encodeMapHeader(n uint64) []byte {
	const majorMap = 5 << 5
	switch {
	case n < 24:
		return []byte{byte(majorMap | n)}
	case n <= 0xff:
		return []byte{majorMap | 24, byte(n)}
	case n <= 0xffff:
		return []byte{majorMap | 25, byte(n >> 8), byte(n)}
	case n <= 0xffffffff:
		return []byte{majorMap | 26, byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n)}
	default:
		return []byte{
			majorMap | 27,
			byte(n >> 56), byte(n >> 48), byte(n >> 40), byte(n >> 32),
			byte(n >> 24), byte(n >> 16), byte(n >> 8), byte(n),
		}
	}
}

// Decode parses raw CBOR bytes into a *Map, assuming a top-level map of
// string keys (the shape every wire format in spec §6 uses).
func Decode(raw []byte) (*Map, error) {
	var generic map[string]interface{}
	if err := cbor.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("codec: decode: %w", err)
	}
	m := NewMap()
	for k, v := range generic {
		m.Put(k, normalize(v))
	}
	return m, nil
}

// normalize converts cbor's decoded map[interface{}]interface{} nested
// values (used for untagged nested maps) into map[string]interface{} so
// callers never have to type-switch on the decode-time representation.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, vv := range t {
			if ks, ok := k.(string); ok {
				out[ks] = normalize(vv)
			}
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, vv := range t {
			out[i] = normalize(vv)
		}
		return out
	default:
		return v
	}
}

// EncodeDryRun returns the size in bytes the map would occupy if encoded
// now, without retaining the buffer — the Go analogue of the original's
// "pass a null buffer to measure" dry-run encoder.
func EncodeDryRun(m *Map) (int, error) {
	raw, err := m.Encode()
	if err != nil {
		return 0, err
	}
	return len(raw), nil
}
