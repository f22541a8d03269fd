package buffer

import (
	"encoding/hex"
	"hash/crc32"
)

// castagnoli is the CRC-32C polynomial table. Spec §3 asks specifically for
// CRC-32C (not the classic CRC-32 polynomial); the standard library already
// implements it (`crc32.Castagnoli`), so no third-party checksum package is
// pulled in for this — see DESIGN.md.
var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Buffer is a variable-length owned byte sequence. Copy is explicit via
// Clone; the zero value is an empty, usable Buffer.
type Buffer struct {
	data []byte
}

// NewBuffer wraps an existing slice without copying it.
func NewBuffer(data []byte) *Buffer {
	return &Buffer{data: data}
}

// Append adds bytes to the end of the buffer, growing it as needed.
func (b *Buffer) Append(p []byte) {
	b.data = append(b.data, p...)
}

// Write implements io.Writer so encoders can target a Buffer directly.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// Truncate shrinks the buffer to n bytes. A negative or too-large n is a
// no-op (invariant violation per spec §7, logged by the caller if it cares).
func (b *Buffer) Truncate(n int) {
	if n < 0 || n >= len(b.data) {
		return
	}
	b.data = b.data[:n]
}

// Len returns the current size in bytes.
func (b *Buffer) Len() int {
	return len(b.data)
}

// Bytes returns the underlying slice. Callers must not retain it across a
// subsequent Append/Truncate, which may reallocate.
func (b *Buffer) Bytes() []byte {
	return b.data
}

// CRC32C computes the Castagnoli CRC-32 digest of the current contents.
func (b *Buffer) CRC32C() uint32 {
	return crc32.Checksum(b.data, castagnoli)
}

// Hex hex-encodes the current contents.
func (b *Buffer) Hex() string {
	return hex.EncodeToString(b.data)
}

// NullTerminated returns a copy of the contents with a trailing NUL byte,
// for interop with C-string-shaped APIs (e.g. platform SDK calls on the
// embedded target; unused on the Go host but kept for API parity).
func (b *Buffer) NullTerminated() []byte {
	out := make([]byte, len(b.data)+1)
	copy(out, b.data)
	return out
}

// Clone makes an independent copy.
func (b *Buffer) Clone() *Buffer {
	cp := make([]byte, len(b.data))
	copy(cp, b.data)
	return &Buffer{data: cp}
}

// CRC32C is a free function for callers that don't want to allocate a
// Buffer just to checksum a slice (e.g. the Lisp script checksum compare
// in spec §4.M).
func CRC32C(p []byte) uint32 {
	return crc32.Checksum(p, castagnoli)
}
