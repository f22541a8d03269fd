// Package eventbus implements the in-process typed-topic event bus
// (spec §4.F): entities register on a bus, emit small (topic, msg)
// events that fan out to registered listeners in registration order,
// and exchange larger payloads through separately-bounded data
// channels keyed by the same topic space.
//
// Grounded on the teacher's two bus implementations —
// internal/events/bus.go's channel-fanout EventBus and
// internal/fabric/event_bus.go's Subscribe-returns-unsubscribe
// LocalEventBus — generalized to the spec's synchronous, FIFO,
// single-pass contract: Execute drains the pending queue in-process
// rather than fanning out over goroutines/channels per handler. This
// is a deliberate deviation from the teacher's concurrency style,
// required by the ordering invariants in spec §4.F/§8 (a listener
// must never observe an event out of emission order, which a
// goroutine-per-handler fanout cannot guarantee).
package eventbus

import (
	"log"
	"sync"

	"github.com/uniot-io/uniot-core/internal/buffer"
)

// Entity is anything that can register on a Bus.
type Entity interface {
	TypeID() buffer.FourCC
}

// Listener is an Entity that additionally wants event notifications.
type Listener interface {
	Entity
	OnEventReceived(topic buffer.FourCC, msg int32)
}

type pendingEvent struct {
	topic buffer.FourCC
	msg   int32
}

// Bus is one entity list + pending-event FIFO + data-channel map.
// Entities may belong to many buses; a Bus may hold many entities.
type Bus struct {
	mu sync.Mutex

	entities  []Entity
	listeners []Listener // subset of entities that satisfy Listener, in registration order

	pending []pendingEvent

	channels map[buffer.FourCC]*buffer.BoundedQueue[[]byte]
	openTopics map[buffer.FourCC]bool

	logger *log.Logger
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		channels:   make(map[buffer.FourCC]*buffer.BoundedQueue[[]byte]),
		openTopics: make(map[buffer.FourCC]bool),
		logger:     log.New(log.Writer(), "[BUS] ", log.LstdFlags),
	}
}

// RegisterEntity adds entity to the bus's entity list. Registering the
// same entity twice is a no-op (unique per (bus, entity) pair, per spec
// §4.F). If entity also implements Listener, it is appended to the
// listener list in registration order.
func (b *Bus) RegisterEntity(entity Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, e := range b.entities {
		if e == entity {
			return
		}
	}
	b.entities = append(b.entities, entity)

	if l, ok := entity.(Listener); ok {
		b.listeners = append(b.listeners, l)
	}
}

// UnregisterEntity removes entity from the bus. Safe to call from
// within a Listener's OnEventReceived during Execute: the in-flight
// event still finishes delivering to every listener already captured
// for this pass, but the entity receives no further events (spec
// §4.F "Cancellation").
func (b *Bus) UnregisterEntity(entity Entity) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entities = removeEntity(b.entities, entity)
	if l, ok := entity.(Listener); ok {
		b.listeners = removeListener(b.listeners, l)
	}
}

func removeEntity(entities []Entity, target Entity) []Entity {
	out := entities[:0:0]
	for _, e := range entities {
		if e != target {
			out = append(out, e)
		}
	}
	return out
}

func removeListener(listeners []Listener, target Listener) []Listener {
	out := listeners[:0:0]
	for _, l := range listeners {
		if l != target {
			out = append(out, l)
		}
	}
	return out
}

// EmitEvent enqueues (topic, msg) onto the pending FIFO. Delivery
// happens on the next Execute call.
func (b *Bus) EmitEvent(topic buffer.FourCC, msg int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, pendingEvent{topic: topic, msg: msg})
}

// OpenDataChannel arms a bounded byte-buffer queue for topic with the
// given capacity (number of buffered payloads, not bytes).
func (b *Bus) OpenDataChannel(topic buffer.FourCC, capacity int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.channels[topic] = buffer.NewBoundedQueue[[]byte](capacity)
	b.openTopics[topic] = true
}

// CloseDataChannel tears down topic's data channel, discarding any
// buffered payloads.
func (b *Bus) CloseDataChannel(topic buffer.FourCC) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, topic)
	delete(b.openTopics, topic)
}

// SendDataToChannel pushes data into topic's queue, evicting the
// oldest buffered payload if full. Returns false if the channel was
// never opened.
func (b *Bus) SendDataToChannel(topic buffer.FourCC, data []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	q, ok := b.channels[topic]
	if !ok {
		return false
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	if evicted := q.Push(cp); evicted {
		b.logger.Printf("data channel %s full, evicted oldest buffer", topic)
	}
	return true
}

// ReceiveDataFromChannel pops the next buffer from topic's queue (if
// any) and invokes visit with whether the queue was empty before the
// pop and the popped bytes (nil if it was empty).
func (b *Bus) ReceiveDataFromChannel(topic buffer.FourCC, visit func(wasEmptyBeforePop bool, data []byte)) {
	b.mu.Lock()
	q, ok := b.channels[topic]
	if !ok {
		b.mu.Unlock()
		visit(true, nil)
		return
	}
	wasEmpty := q.Len() == 0
	data, popped := q.Pop()
	b.mu.Unlock()

	if !popped {
		visit(true, nil)
		return
	}
	visit(wasEmpty, data)
}

// Execute drains the pending FIFO: while non-empty, pops one event and
// delivers it to every registered listener (in registration order),
// regardless of any topic filter — the bus itself does not filter by
// topic; that decision belongs to each Listener's OnEventReceived,
// mirroring the teacher's "subscribers notified, handler decides
// relevance" shape. Handlers may emit further events during delivery;
// those are appended to the same pending FIFO and drained within this
// same Execute pass.
func (b *Bus) Execute() {
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.mu.Unlock()
			return
		}
		ev := b.pending[0]
		b.pending = b.pending[1:]
		listeners := make([]Listener, len(b.listeners))
		copy(listeners, b.listeners)
		b.mu.Unlock()

		for _, l := range listeners {
			l.OnEventReceived(ev.topic, ev.msg)
		}
	}
}

// PendingCount reports the number of events still queued, for tests
// and diagnostics.
func (b *Bus) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
