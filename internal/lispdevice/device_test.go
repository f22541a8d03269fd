package lispdevice

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniot-io/uniot-core/internal/eventbus"
	"github.com/uniot-io/uniot-core/internal/lisp"
	"github.com/uniot-io/uniot-core/internal/scheduler"
	"github.com/uniot-io/uniot-core/internal/storage"
)

func newTestDevice(t *testing.T) (*Device, *storage.CBORStorage[storage.LispDoc]) {
	t.Helper()
	bus := eventbus.New()
	sched := scheduler.New()
	shell := lisp.New(bus, sched)
	mem := storage.NewMemStore()
	doc, err := storage.NewCBORStorage[storage.LispDoc](mem, storage.KeyLisp)
	require.NoError(t, err)
	return New("dev/1/script", "group/1/event/+", shell, doc), doc
}

func TestDevice_HandlePayload_RunsNewScriptAndPersists(t *testing.T) {
	d, doc := newTestDevice(t)

	raw, err := cbor.Marshal(map[string]interface{}{"code": "(quote ok)", "persist": true})
	require.NoError(t, err)

	d.HandlePayload(d.Topic(), raw)

	assert.NotZero(t, doc.Get().Checksum)
	assert.Equal(t, 1, doc.Get().Persist)
}

func TestDevice_HandlePayload_SkipsUnchangedPersistentScript(t *testing.T) {
	d, doc := newTestDevice(t)

	raw, err := cbor.Marshal(map[string]interface{}{"code": "(quote ok)", "persist": true})
	require.NoError(t, err)
	d.HandlePayload(d.Topic(), raw)
	firstChecksum := doc.Get().Checksum

	d.HandlePayload(d.Topic(), raw)
	assert.Equal(t, firstChecksum, doc.Get().Checksum)
}

func TestDevice_HandleGroupPayload_StagesEvent(t *testing.T) {
	d, _ := newTestDevice(t)

	raw, err := cbor.Marshal(map[string]interface{}{"eventID": 5, "value": 77})
	require.NoError(t, err)
	d.HandleGroupPayload("group/1/event/5", raw)

	assert.Equal(t, int64(77), d.shell.PopEvent(5))
}

func TestDevice_HandleGroupPayload_IgnoresInterceptor(t *testing.T) {
	d, _ := newTestDevice(t)
	d.SetInterceptor(func(eventID int32) bool { return eventID == 9 })

	raw, err := cbor.Marshal(map[string]interface{}{"eventID": 9, "value": 1})
	require.NoError(t, err)
	d.HandleGroupPayload("group/1/event/9", raw)

	assert.Equal(t, int64(1), d.shell.PopEvent(9), "the interceptor scopes to outgoing events, not inbound group events")
}

func TestDevice_Boot_RunsPersistedScriptWhenPersistent(t *testing.T) {
	d, doc := newTestDevice(t)
	doc.Set(storage.LispDoc{Code: "(quote restored)", Checksum: 1, Persist: 1})
	require.NoError(t, d.Boot())
}

func TestDevice_Boot_SkipsWhenNotPersistent(t *testing.T) {
	d, doc := newTestDevice(t)
	doc.Set(storage.LispDoc{Code: "(quote x)", Checksum: 1, Persist: 0})
	assert.NoError(t, d.Boot())
}
