package network

import (
	"sync"
	"time"

	"github.com/uniot-io/uniot-core/internal/button"
	"github.com/uniot-io/uniot-core/internal/storage"
)

// LEDPattern is a named blink pattern the controller maps each network
// state to, for a caller to drive an actual LED GPIO with.
type LEDPattern int

const (
	LEDOff LEDPattern = iota
	LEDSolid
	LEDSlowBlink
	LEDFastBlink
)

// ledForState is the state→pattern overlay table (spec §4.J: button +
// LED pattern table + reboot counter overlaid onto the state machine).
var ledForState = map[State]LEDPattern{
	StateConnecting:    LEDFastBlink,
	StateConnected:     LEDSolid,
	StateDisconnected:  LEDSlowBlink,
	StateFailed:        LEDOff,
	StateAPConfig:      LEDSlowBlink,
	StateAvailableSeen: LEDFastBlink,
}

// Controller wires a Machine to a physical reset Button and a
// persisted reboot counter, grounded on the teacher's EscrowController
// (internal/escrow/controller.go): a mutex-guarded object overlaying
// policy (here: button-hold-to-forget, reboot-loop detection) onto a
// lower-level state engine, generalized from "escrow release gating"
// to "network forget/reboot-loop policy."
type Controller struct {
	mu sync.Mutex

	machine *Machine
	reboots *storage.CBORStorage[storage.CtrlDoc]

	onForget func()
}

// NewController wires machine to a persisted reboot counter stored
// under storage.KeyCtrl and returns the controller; LEDPattern gives the
// pattern for the machine's current state.
func NewController(machine *Machine, reboots *storage.CBORStorage[storage.CtrlDoc], onForget func()) *Controller {
	return &Controller{machine: machine, reboots: reboots, onForget: onForget}
}

// LEDPattern returns the pattern for the machine's current state.
func (c *Controller) LEDPattern() LEDPattern {
	return ledForState[c.machine.Current()]
}

// OnButtonEvent reacts to a reset button's debounced event (spec §4.H
// integration with §4.J): a long press invokes the onForget callback; a
// plain click is ignored by the network controller (left for other
// subsystems to interpret). The controller does not itself move the
// machine to AP_CONFIG.
func (c *Controller) OnButtonEvent(e button.Event) {
	if e != button.LongPress {
		return
	}
	if c.onForget != nil {
		c.onForget()
	}
}

// ForceForget invokes onForget directly, the same action a long button
// press triggers — used by the boot-time reboot-loop check. Like
// OnButtonEvent, it does not itself change the machine's state.
func (c *Controller) ForceForget() {
	if c.onForget != nil {
		c.onForget()
	}
}

// RecordBoot increments the persisted reboot counter and reports
// whether it has crossed threshold within window — a reboot-loop
// detector the original firmware uses to fall back to AP_CONFIG after
// repeated crash-reboots, generalized here as an explicit counter
// rather than a watchdog-reset count.
func (c *Controller) RecordBoot(threshold int) (loop bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := c.reboots.Get()
	doc.Reset++
	c.reboots.Set(doc)
	if _, err := c.reboots.Store(); err != nil {
		return false, err
	}
	return int(doc.Reset) >= threshold, nil
}

// ClearBootCounter zeroes the persisted reboot counter, invoked by a
// one-shot scheduler.Task.Once(rebootWindowMs) once the device has
// stayed up past the reboot-loop detection window (spec §4.J).
func (c *Controller) ClearBootCounter() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reboots.Set(storage.CtrlDoc{Reset: 0})
	_, err := c.reboots.Store()
	return err
}

// RebootWindow is the spec's default window before the boot counter is
// cleared, used to arm the one-shot scheduler task.
const RebootWindow = 30 * time.Second
