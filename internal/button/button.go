// Package button implements the debounced button input task (spec
// §4.H): a scheduler task, typically ticked at 100 Hz, that turns raw
// GPIO level reads into CLICK/LONG_PRESS events with sticky,
// auto-resetting flags.
//
// Grounded on the teacher's scheduler-task idiom
// (internal/reputation/decay_scheduler.go's tick-driven callback) and
// wired through internal/scheduler, generalized from "decay sweep" to
// "debounced digital input sampling."
package button

// Level is a raw digital pin level, matching the spec's notion of an
// "active level" a caller configures per button (active-high or
// active-low wiring).
type Level uint8

const (
	Low  Level = 0
	High Level = 1
)

// Reader reads the current level of a single GPIO pin.
type Reader interface {
	Read(pin uint8) Level
}

// Button is one debounced input, driven by successive Tick calls from
// a scheduler task running at a fixed rate (spec default 100 Hz).
type Button struct {
	pin            uint8
	activeLevel    Level
	longPressTicks int
	autoResetTicks int
	onEvent        func(event Event)

	pressedTicks int
	wasPressed   bool

	clicked    bool
	longPressed bool
	sinceEvent int
}

// Event is the kind of input event a Button reports.
type Event int

const (
	Click Event = iota
	LongPress
)

// New constructs a Button. autoResetTicks <= 0 falls back to the spec's
// default of 100.
func New(pin uint8, activeLevel Level, longPressTicks, autoResetTicks int, onEvent func(Event)) *Button {
	if autoResetTicks <= 0 {
		autoResetTicks = 100
	}
	return &Button{
		pin:            pin,
		activeLevel:    activeLevel,
		longPressTicks: longPressTicks,
		autoResetTicks: autoResetTicks,
		onEvent:        onEvent,
	}
}

// Tick reads the pin through r and advances the debounce state machine
// by one scheduler tick.
func (b *Button) Tick(r Reader) {
	pressed := r.Read(b.pin) == b.activeLevel

	if pressed {
		b.pressedTicks++
		if b.pressedTicks == b.longPressTicks {
			b.longPressed = true
			b.sinceEvent = 0
			b.fire(LongPress)
		}
	} else {
		if b.wasPressed && b.pressedTicks < b.longPressTicks {
			b.clicked = true
			b.sinceEvent = 0
			b.fire(Click)
		}
		b.pressedTicks = 0
	}
	b.wasPressed = pressed

	if b.clicked || b.longPressed {
		b.sinceEvent++
		if b.sinceEvent >= b.autoResetTicks {
			b.clicked = false
			b.longPressed = false
		}
	}
}

func (b *Button) fire(e Event) {
	if b.onEvent != nil {
		b.onEvent(e)
	}
}

// WasClicked reports the sticky click flag (cleared after autoResetTicks
// ticks with no new event).
func (b *Button) WasClicked() bool { return b.clicked }

// WasLongPressed reports the sticky long-press flag.
func (b *Button) WasLongPressed() bool { return b.longPressed }
