package registry

import (
	"github.com/uniot-io/uniot-core/internal/buffer"
	"github.com/uniot-io/uniot-core/internal/codec"
)

// GPIORegister maps a primitive name (e.g. "dwrite", "dread", "awrite",
// "aread") to the ordered list of pin numbers it was last bound to.
type GPIORegister struct {
	pins *buffer.SmallMap[string, []uint8]
}

// NewGPIORegister creates an empty GPIO register.
func NewGPIORegister() *GPIORegister {
	return &GPIORegister{pins: buffer.NewSmallMap[string, []uint8]()}
}

// Set binds name to pins, replacing any previous binding.
func (g *GPIORegister) Set(name string, pins []uint8) {
	g.pins.Put(name, pins)
}

// Get returns the pins bound to name, if any.
func (g *GPIORegister) Get(name string) ([]uint8, bool) {
	return g.pins.Get(name)
}

// ObjectSlot pairs an owning entity's FourCC tag with a live-tracked
// pointer to the object itself (e.g. a Button for "bclicked").
type ObjectSlot struct {
	Owner buffer.FourCC
	Ref   *LiveRecord
}

// ObjectRegister maps a primitive name to the ordered list of object
// slots registered under it.
type ObjectRegister struct {
	objects *buffer.SmallMap[string, []ObjectSlot]
}

// NewObjectRegister creates an empty object register.
func NewObjectRegister() *ObjectRegister {
	return &ObjectRegister{objects: buffer.NewSmallMap[string, []ObjectSlot]()}
}

// Set binds name to slots, replacing any previous binding.
func (o *ObjectRegister) Set(name string, slots []ObjectSlot) {
	o.objects.Put(name, slots)
}

// Get returns the object slots bound to name, if any. Slots whose Ref
// has been released are still returned — callers must check
// Ref.IsAlive() themselves, since a dead slot is meaningful state (the
// object existed, then went away) rather than an error.
func (o *ObjectRegister) Get(name string) ([]ObjectSlot, bool) {
	return o.objects.Get(name)
}

// Snapshot builds a CBOR-ready map of the registry for introspection
// (spec §4.G): pin arrays as byte arrays keyed by GPIO primitive name,
// and object tag arrays (owner FourCC as u32) keyed by object
// primitive name.
func Snapshot(gpio *GPIORegister, objects *ObjectRegister) *codec.Map {
	out := codec.NewMap()

	pinsMap := codec.NewMap()
	gpio.pins.ForEach(func(name string, pins []uint8) bool {
		pinsMap.Put(name, pins)
		return true
	})
	out.Put("gpio", pinsMap)

	objMap := codec.NewMap()
	objects.objects.ForEach(func(name string, slots []ObjectSlot) bool {
		tags := make([]uint32, 0, len(slots))
		for _, s := range slots {
			tags = append(tags, uint32(s.Owner))
		}
		objMap.Put(name, tags)
		return true
	})
	out.Put("objects", objMap)

	return out
}
