package buffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundedQueue_EvictsOldestOnOverflow(t *testing.T) {
	q := NewBoundedQueue[string](3)

	for _, v := range []string{"A", "B", "C", "D", "E"} {
		q.Push(v)
	}

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"C", "D", "E"}, q.Snapshot())

	v, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "C", v)
	assert.Equal(t, 2, q.Len())
}

func TestBoundedQueue_PopEmpty(t *testing.T) {
	q := NewBoundedQueue[int](2)
	_, ok := q.Pop()
	assert.False(t, ok)
}

func TestSmallMap_PutReplacesInPlace(t *testing.T) {
	m := NewSmallMap[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)
	m.Put("a", 99) // replace, should not move to the end

	var order []string
	m.ForEach(func(k string, v int) bool {
		order = append(order, k)
		return true
	})

	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 99, m.GetOrDefault("a", -1))
	assert.Equal(t, -1, m.GetOrDefault("missing", -1))
}

func TestSmallMap_Remove(t *testing.T) {
	m := NewSmallMap[string, int]()
	m.Put("a", 1)
	m.Put("b", 2)
	m.Remove("a")

	assert.False(t, m.Exists("a"))
	assert.Equal(t, 1, m.Len())
}

func TestBuffer_CRC32C(t *testing.T) {
	b := NewBuffer([]byte("123456789"))
	// Known CRC-32C (Castagnoli) check value for the ASCII string "123456789".
	assert.Equal(t, uint32(0xE3069283), b.CRC32C())
}

func TestBuffer_AppendTruncate(t *testing.T) {
	b := NewBuffer(nil)
	b.Append([]byte("hello"))
	b.Append([]byte(" world"))
	assert.Equal(t, "hello world", string(b.Bytes()))

	b.Truncate(5)
	assert.Equal(t, "hello", string(b.Bytes()))
}

func TestFourCC_Pack(t *testing.T) {
	f := NewFourCC('l', 'i', 's', 'p')
	assert.Equal(t, "lisp", f.String())
	assert.Equal(t, TopicLisp, f)
}
