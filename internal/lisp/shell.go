// Package lisp implements the unLisp runtime shell (spec §4.K): it
// owns one script heap at a time, installs print routing onto the
// event bus's Lisp data channels, registers the built-in task/event
// primitives plus any host-supplied ones, and tears the heap down on
// script completion or error.
package lisp

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/uniot-io/uniot-core/internal/buffer"
	"github.com/uniot-io/uniot-core/internal/eventbus"
	"github.com/uniot-io/uniot-core/internal/lisp/eval"
	"github.com/uniot-io/uniot-core/internal/scheduler"
)

const eventQueueCapacity = 5

// eventRecord is the CBOR shape pushed/popped on OUT_EVENT (spec
// §4.K: "builds a CBOR {eventID, value}").
type eventRecord struct {
	EventID int32 `cbor:"eventID"`
	Value   int64 `cbor:"value"`
}

// Shell is the unLisp equivalent: one heap at a time, wired to a bus
// and scheduler supplied at construction.
type Shell struct {
	bus   *eventbus.Bus
	sched *scheduler.Scheduler

	heap *eval.Heap
	task *scheduler.Task

	lastCode []byte

	incoming map[int32]*buffer.BoundedQueue[int64]

	extraPrimitives []registeredPrimitive

	interceptor func(eventID int32) (veto bool)
}

type registeredPrimitive struct {
	desc eval.PrimitiveDesc
	fn   eval.PrimitiveFunc
}

// New creates a Shell bound to bus and sched. No script is loaded
// until RunCode.
func New(bus *eventbus.Bus, sched *scheduler.Scheduler) *Shell {
	return &Shell{
		bus:      bus,
		sched:    sched,
		incoming: make(map[int32]*buffer.BoundedQueue[int64]),
	}
}

// SetInterceptor installs an optional veto hook over outgoing Lisp
// events (spec §4.M: "optional event interceptor hook" scopes to
// outgoing events pushed by the script, not inbound group events).
func (s *Shell) SetInterceptor(i func(eventID int32) (veto bool)) {
	s.interceptor = i
}

// RegisterPrimitive adds a host-supplied primitive that will be
// installed into every future heap (including the one RunCode is
// about to build, if called beforehand).
func (s *Shell) RegisterPrimitive(desc eval.PrimitiveDesc, fn eval.PrimitiveFunc) {
	s.extraPrimitives = append(s.extraPrimitives, registeredPrimitive{desc: desc, fn: fn})
}

// RunCode tears down any previous heap, clears incoming event queues,
// emits OUT_REFRESH_EVENTS (spec §4.K: "on startup of a new script...
// emits OUT_REFRESH_EVENTS so the MQTT bridge will resubscribe"),
// parses code, and evaluates the script body once, synchronously, before
// returning (the task primitive re-arms it on a schedule if the script
// calls task).
func (s *Shell) RunCode(code []byte) error {
	s.teardown()

	s.lastCode = append([]byte(nil), code...)
	s.incoming = make(map[int32]*buffer.BoundedQueue[int64])
	s.bus.EmitEvent(buffer.TopicLispEventOut, buffer.OutRefreshEvents)

	h := eval.NewHeap()
	s.installBuiltins(h)
	for _, p := range s.extraPrimitives {
		h.Register(p.desc, p.fn)
	}
	s.heap = h

	expr, err := eval.Parse(code)
	if err != nil {
		s.onError(err)
		return err
	}

	if _, err := h.Eval(expr); err != nil {
		s.onError(err)
		return err
	}
	return nil
}

// LastCode returns the most recently loaded script bytes, retained
// until explicitly cleared (spec §4.K failure semantics).
func (s *Shell) LastCode() []byte {
	return s.lastCode
}

// ClearLastCode discards the retained script bytes.
func (s *Shell) ClearLastCode() {
	s.lastCode = nil
}

// teardown destroys the current heap and detaches any armed task.
func (s *Shell) teardown() {
	if s.task != nil {
		s.task.Detach()
		s.task = nil
	}
	s.heap = nil
}

func (s *Shell) onError(err error) {
	s.printTo(buffer.ChannelOutLispErr, buffer.OutMsgError, []byte(err.Error()))
	s.teardown()
}

// printTo routes output onto a Lisp data channel and emits the
// matching TopicLispPrint sub-message (spec §4.K).
func (s *Shell) printTo(channel buffer.FourCC, subMsg int32, data []byte) {
	s.bus.SendDataToChannel(channel, data)
	s.bus.EmitEvent(buffer.TopicLispPrint, subMsg)
}

// Print writes to the stdout channel (OUT_LISP / OUT_MSG_ADDED).
func (s *Shell) Print(data []byte) {
	s.printTo(buffer.ChannelOutLisp, buffer.OutMsgAdded, data)
}

// Log writes to the log channel (OUT_LISP_LOG / OUT_MSG_LOG).
func (s *Shell) Log(data []byte) {
	s.printTo(buffer.ChannelOutLispLog, buffer.OutMsgLog, data)
}

// PushIncomingEvent stages value under eventID's incoming queue (spec
// §4.K: "capacity 5 per id"), called by the Lisp device (M) when the
// MQTT bridge delivers an event message.
func (s *Shell) PushIncomingEvent(eventID int32, value int64) {
	q, ok := s.incoming[eventID]
	if !ok {
		q = buffer.NewBoundedQueue[int64](eventQueueCapacity)
		s.incoming[eventID] = q
	}
	q.Push(value)
}

// IsEventPending reports whether eventID has a staged value waiting.
func (s *Shell) IsEventPending(eventID int32) bool {
	q, ok := s.incoming[eventID]
	return ok && q.Len() > 0
}

// PopEvent pops the next staged value for eventID, or 0 if none.
func (s *Shell) PopEvent(eventID int32) int64 {
	q, ok := s.incoming[eventID]
	if !ok {
		return 0
	}
	v, popped := q.Pop()
	if !popped {
		return 0
	}
	return v
}

func (s *Shell) installBuiltins(h *eval.Heap) {
	h.Register(eval.PrimitiveDesc{Name: "is_event", Returns: eval.KindBool, Args: []eval.Kind{eval.KindInt}}, s.primIsEvent)
	h.Register(eval.PrimitiveDesc{Name: "pop_event", Returns: eval.KindInt, Args: []eval.Kind{eval.KindInt}}, s.primPopEvent)
	h.Register(eval.PrimitiveDesc{Name: "push_event", Returns: eval.KindAny, Args: []eval.Kind{eval.KindInt, eval.KindInt}}, s.primPushEvent)
	h.Register(eval.PrimitiveDesc{Name: "task", Returns: eval.KindAny, Args: []eval.Kind{eval.KindInt, eval.KindInt, eval.KindAny}}, s.primTask)
}

func (s *Shell) primIsEvent(args []eval.Value) (eval.Value, error) {
	id, err := eval.AsInt(args[0])
	if err != nil {
		return nil, err
	}
	q, ok := s.incoming[int32(id)]
	return ok && q.Len() > 0, nil
}

func (s *Shell) primPopEvent(args []eval.Value) (eval.Value, error) {
	id, err := eval.AsInt(args[0])
	if err != nil {
		return nil, err
	}
	q, ok := s.incoming[int32(id)]
	if !ok {
		return int64(0), nil
	}
	v, popped := q.Pop()
	if !popped {
		return int64(0), nil
	}
	return v, nil
}

func (s *Shell) primPushEvent(args []eval.Value) (eval.Value, error) {
	id, err := eval.AsInt(args[0])
	if err != nil {
		return nil, err
	}
	val, err := eval.AsInt(args[1])
	if err != nil {
		return nil, err
	}

	if s.interceptor != nil && s.interceptor(int32(id)) {
		return nil, nil
	}

	raw, err := cbor.Marshal(eventRecord{EventID: int32(id), Value: val})
	if err != nil {
		return nil, err
	}
	s.bus.SendDataToChannel(buffer.ChannelOutEvent, raw)
	s.bus.EmitEvent(buffer.TopicLispEventOut, buffer.OutNewEvent)
	return nil, nil
}

// primTask implements (task times ms expr): arms a scheduler task at
// (ms, times) that re-evaluates expr each tick; exhausting the task
// tears the heap down (spec §4.K).
func (s *Shell) primTask(args []eval.Value) (eval.Value, error) {
	times, err := eval.AsInt(args[0])
	if err != nil {
		return nil, err
	}
	ms, err := eval.AsInt(args[1])
	if err != nil {
		return nil, err
	}
	expr := args[2]
	heap := s.heap

	var t *scheduler.Task
	t = s.sched.CreateTask(func(remaining int) {
		if heap == nil {
			return
		}
		if _, err := heap.Eval(expr); err != nil {
			s.onError(err)
			return
		}
		if !t.IsAttached() {
			s.teardown()
		}
	})
	s.sched.Push("lisp-task", t)
	t.Attach(time.Duration(ms)*time.Millisecond, int(times))
	s.task = t
	return nil, nil
}
