package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniot-io/uniot-core/internal/buffer"
	"github.com/uniot-io/uniot-core/internal/codec"
)

func TestLiveRecord_ReleaseInvalidatesValue(t *testing.T) {
	r := NewLiveRecord(42)
	assert.True(t, r.IsAlive())

	v, ok := r.Value()
	require.True(t, ok)
	assert.Equal(t, 42, v)

	r.Release()
	assert.False(t, r.IsAlive())

	v, ok = r.Value()
	assert.False(t, ok)
	assert.Nil(t, v)
}

func TestLiveRecord_ReleaseIsIdempotent(t *testing.T) {
	r := NewLiveRecord("x")
	r.Release()
	r.Release()
	assert.False(t, r.IsAlive())
}

func TestGPIORegister_SetGet(t *testing.T) {
	g := NewGPIORegister()
	g.Set("dwrite", []uint8{2, 4})

	pins, ok := g.Get("dwrite")
	require.True(t, ok)
	assert.Equal(t, []uint8{2, 4}, pins)

	_, ok = g.Get("aread")
	assert.False(t, ok)
}

func TestObjectRegister_DeadSlotStillReturned(t *testing.T) {
	o := NewObjectRegister()
	rec := NewLiveRecord("button-1")
	o.Set("bclicked", []ObjectSlot{{Owner: buffer.NewFourCC('B', 'T', 'N', '0'), Ref: rec}})

	rec.Release()

	slots, ok := o.Get("bclicked")
	require.True(t, ok)
	require.Len(t, slots, 1)
	assert.False(t, slots[0].Ref.IsAlive())
}

func TestSnapshot_BuildsCBORReadyMap(t *testing.T) {
	g := NewGPIORegister()
	g.Set("dwrite", []uint8{5})

	o := NewObjectRegister()
	rec := NewLiveRecord("x")
	o.Set("bclicked", []ObjectSlot{{Owner: buffer.NewFourCC('B', 'T', 'N', '0'), Ref: rec}})

	snap := Snapshot(g, o)

	gpioVal, ok := snap.Get("gpio")
	require.True(t, ok)
	gpioMap, ok := gpioVal.(*codec.Map)
	require.True(t, ok)
	pins, ok := gpioMap.Get("dwrite")
	require.True(t, ok)
	assert.Equal(t, []uint8{5}, pins)

	objVal, ok := snap.Get("objects")
	require.True(t, ok)
	objMap, ok := objVal.(*codec.Map)
	require.True(t, ok)
	tags, ok := objMap.Get("bclicked")
	require.True(t, ok)
	assert.Equal(t, []uint32{uint32(buffer.NewFourCC('B', 'T', 'N', '0'))}, tags)
}
