// Package lispdevice implements the Lisp device (spec §4.M): the
// MQTTDevice that receives script and event messages over MQTT and
// drives the Lisp runtime shell (K) accordingly.
package lispdevice

import (
	"github.com/fxamacker/cbor/v2"

	"github.com/uniot-io/uniot-core/internal/buffer"
	"github.com/uniot-io/uniot-core/internal/lisp"
	"github.com/uniot-io/uniot-core/internal/storage"
)

// scriptMessage is the CBOR shape of an inbound `.../script` message
// (spec §4.M).
type scriptMessage struct {
	Code     string `cbor:"code"`
	Persist  bool   `cbor:"persist"`
}

// eventMessage is the CBOR shape of an inbound `<group>/event/+`
// message: the device decodes it to stage the value under its event id
// in the shell's per-id incoming queue (spec §4.K).
type eventMessage struct {
	EventID int32 `cbor:"eventID"`
	Value   int64 `cbor:"value"`
}

// Interceptor lets the host veto a specific outgoing Lisp event by id
// (spec §4.M: "optional event interceptor hook").
type Interceptor func(eventID int32) (veto bool)

// Device is the spec's Lisp device.
type Device struct {
	topic      string
	groupTopic string
	shell      *lisp.Shell
	doc        *storage.CBORStorage[storage.LispDoc]
}

// New wires a Device to deviceTopic ("<device-topic>/script"),
// groupTopic ("<group>/event/+"), the shell it drives, and the
// persisted script document (storage.KeyLisp).
func New(deviceTopic, groupTopic string, shell *lisp.Shell, doc *storage.CBORStorage[storage.LispDoc]) *Device {
	return &Device{topic: deviceTopic, groupTopic: groupTopic, shell: shell, doc: doc}
}

// GroupEvents returns an mqttbridge.MQTTDevice-shaped adapter (structural,
// no import of that package needed) over the group event wildcard topic.
// A single MQTTDevice maps to one topic filter in the bridge's
// subscription model, so the script topic and the group topic are
// registered as two separate devices sharing this one Device underneath.
func (d *Device) GroupEvents() *groupEventsAdapter {
	return &groupEventsAdapter{d}
}

type groupEventsAdapter struct {
	d *Device
}

func (a *groupEventsAdapter) Topic() string { return a.d.groupTopic }

func (a *groupEventsAdapter) HandlePayload(topic string, payload []byte) {
	a.d.HandleGroupPayload(topic, payload)
}

// SetInterceptor installs an optional outgoing-event veto hook. It is
// applied by the shell to events the script pushes (primPushEvent), not
// to inbound group events — spec §4.M scopes the interceptor to the
// outgoing path.
func (d *Device) SetInterceptor(i Interceptor) {
	d.shell.SetInterceptor(i)
}

// Topic implements mqttbridge.MQTTDevice and returns only the script
// topic. The group event wildcard is registered as a second device
// through GroupEvents, since a single MQTTDevice maps to one topic
// filter in the bridge's subscription model.
func (d *Device) Topic() string { return d.topic }

// HandlePayload implements mqttbridge.MQTTDevice for the script topic.
func (d *Device) HandlePayload(topic string, payload []byte) {
	d.handleScript(payload)
}

// handleScript decodes an inbound script message, checks its CRC-32C
// against the stored checksum, and (spec §4.M) skips re-running an
// unchanged persistent script.
func (d *Device) handleScript(payload []byte) {
	var msg scriptMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return
	}

	code := []byte(msg.Code)
	checksum := buffer.CRC32C(code)
	stored := d.doc.Get()

	if checksum == stored.Checksum && stored.Persist != 0 {
		return
	}

	persist := 0
	if msg.Persist {
		persist = 1
	}

	if err := d.shell.RunCode(code); err != nil {
		return
	}

	if checksum != stored.Checksum {
		d.doc.Set(storage.LispDoc{Code: msg.Code, Checksum: checksum, Persist: persist})
		d.doc.Store()
	}
}

// HandleGroupPayload processes an inbound `<group>/event/+` message: it
// decodes the eventID/value pair and stages the value in the shell's
// per-id incoming queue. The raw payload is not forwarded to the
// IN_EVENT data channel, and no IN_NEW_EVENT event is emitted on the
// bus; a payload that does not decode is dropped.
func (d *Device) HandleGroupPayload(topic string, payload []byte) {
	var msg eventMessage
	if err := cbor.Unmarshal(payload, &msg); err != nil {
		return
	}
	d.shell.PushIncomingEvent(msg.EventID, msg.Value)
}

// Boot restores the persisted script and, if it is marked persistent
// and non-empty, runs it (spec §4.M).
func (d *Device) Boot() error {
	stored := d.doc.Get()
	if stored.Persist == 0 || len(stored.Code) == 0 {
		return nil
	}
	return d.shell.RunCode([]byte(stored.Code))
}
