// Package network implements the network state machine (spec §4.I) and
// its controller overlay (spec §4.J): WiFi station lifecycle, AP-mode
// captive-portal fallback, and periodic scanning for a known SSID.
//
// The state machine shape is directly grounded on the teacher's
// HandshakeStateMachine (internal/federation/state_machine.go): an
// explicit State enum with String()/IsTerminal(), a validated
// Transition(from, to) checked against an allow-list, and a recorded
// transition history — generalized here from a 13-state cryptographic
// handshake protocol down to the spec's 6-state network machine. The
// machine has no step or total timeouts: every transition is made by a
// caller.
package network

import (
	"fmt"
	"sync"
	"time"
)

// State is one of the network machine's six states (spec §4.I).
type State int

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
	StateFailed
	StateAPConfig
	StateAvailableSeen
)

// String renders the state the way the teacher's HandshakeState does,
// for logs and the top-device /top export.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateDisconnected:
		return "DISCONNECTED"
	case StateFailed:
		return "FAILED"
	case StateAPConfig:
		return "AP_CONFIG"
	case StateAvailableSeen:
		return "AVAILABLE_SEEN"
	default:
		return "UNKNOWN"
	}
}

// IsTerminal reports whether the state is a dead end absent external
// intervention (forget/reconnect). Only FAILED qualifies; every other
// state has an automatic way forward.
func (s State) IsTerminal() bool {
	return s == StateFailed
}

// StateTransition records one state change, mirroring the teacher's
// StateTransition struct.
type StateTransition struct {
	FromState State
	ToState   State
	Timestamp time.Time
}

// validTransitions is the allow-list from spec §4.I's diagram.
var validTransitions = map[State][]State{
	StateConnecting:    {StateConnected, StateDisconnected, StateFailed},
	StateConnected:     {StateDisconnected},
	StateDisconnected:  {StateConnecting, StateFailed},
	StateFailed:        {StateAPConfig},
	StateAPConfig:      {StateAvailableSeen, StateConnecting},
	StateAvailableSeen: {StateConnected, StateAPConfig, StateConnecting},
}

// Event is the set of events the machine emits as it moves through
// states (spec §4.I: "emits CONNECTING ... emits SUCCESS ... emits
// ACCESS_POINT ... emits AVAILABLE").
type Event int

const (
	EventConnecting Event = iota
	EventSuccess
	EventAccessPoint
	EventAvailable
	EventDisconnected
	EventFailed
)

// Machine is the spec's NetworkStateMachine: validated transitions with
// a recorded history, mutex-guarded for safe access from both the
// scheduler task driving it and any inspector (e.g. the top device).
type Machine struct {
	mu sync.Mutex

	current State
	history []StateTransition

	retryCount     int
	maxRetries     int
	wrongPassword  bool
	onTransition   func(from, to State, ev Event)
}

// Config configures retry/backoff limits for WiFi STA connect attempts.
type Config struct {
	// MaxRetries caps CONNECTING retries before giving up to FAILED.
	// Spec default: 3, or 1 if the failure is specifically a wrong
	// password.
	MaxRetries int
}

// New creates a machine. initial is chosen by the caller at attach()
// time based on credentials presence (spec §4.I: "initial: pick by
// credentials presence at attach()").
func New(initial State, cfg Config, onTransition func(from, to State, ev Event)) *Machine {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Machine{
		current:      initial,
		maxRetries:   maxRetries,
		onTransition: onTransition,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// IsTerminal reports whether the machine is in a terminal state.
func (m *Machine) IsTerminal() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.IsTerminal()
}

// History returns a copy of the recorded transitions.
func (m *Machine) History() []StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]StateTransition, len(m.history))
	copy(out, m.history)
	return out
}

// Transition moves the machine from `from` to `to`, validating both
// that the machine is actually in `from` and that `from -> to` is an
// allowed edge. On success the transition is recorded and onTransition
// fires with the event describing it.
func (m *Machine) Transition(from, to State, ev Event, now time.Time) error {
	m.mu.Lock()

	if m.current != from {
		m.mu.Unlock()
		return fmt.Errorf("network: invalid transition: expected current state %s, got %s", from, m.current)
	}
	if !isAllowed(from, to) {
		m.mu.Unlock()
		return fmt.Errorf("network: invalid transition: %s -> %s", from, to)
	}

	m.history = append(m.history, StateTransition{FromState: from, ToState: to, Timestamp: now})
	m.current = to
	cb := m.onTransition
	m.mu.Unlock()

	if cb != nil {
		cb(from, to, ev)
	}
	return nil
}

func isAllowed(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RecordFailure increments the retry counter for a CONNECTING attempt,
// and reports whether the retry budget is exhausted (spec §4.I: retry
// up to 3 times, or 1 time if the failure was specifically a wrong
// password).
func (m *Machine) RecordFailure(wrongPassword bool) (exhausted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if wrongPassword {
		m.wrongPassword = true
	}
	m.retryCount++

	limit := m.maxRetries
	if m.wrongPassword {
		limit = 1
	}
	return m.retryCount >= limit
}

// ResetRetries clears the retry counter, called on a fresh CONNECTING
// attempt triggered by a new credential set or an AVAILABLE event.
func (m *Machine) ResetRetries() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retryCount = 0
	m.wrongPassword = false
}
