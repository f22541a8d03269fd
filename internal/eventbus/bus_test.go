package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniot-io/uniot-core/internal/buffer"
)

type recordingListener struct {
	id      buffer.FourCC
	bus     *Bus
	got     []int32
	onEvent func(topic buffer.FourCC, msg int32)
}

func (r *recordingListener) TypeID() buffer.FourCC { return r.id }

func (r *recordingListener) OnEventReceived(topic buffer.FourCC, msg int32) {
	r.got = append(r.got, msg)
	if r.onEvent != nil {
		r.onEvent(topic, msg)
	}
}

func TestBus_RegisterIsUniquePerEntity(t *testing.T) {
	b := New()
	l := &recordingListener{id: buffer.NewFourCC('T', 'E', 'S', 'T')}
	b.RegisterEntity(l)
	b.RegisterEntity(l)

	b.EmitEvent(buffer.TopicDateTime, 1)
	b.Execute()
	assert.Equal(t, []int32{1}, l.got, "registering twice must not deliver twice")
}

func TestBus_ExecuteDeliversInFIFOAndRegistrationOrder(t *testing.T) {
	b := New()
	var order []string
	first := &recordingListener{id: buffer.NewFourCC('A', '0', '0', '0')}
	first.onEvent = func(topic buffer.FourCC, msg int32) { order = append(order, "first") }
	second := &recordingListener{id: buffer.NewFourCC('B', '0', '0', '0')}
	second.onEvent = func(topic buffer.FourCC, msg int32) { order = append(order, "second") }

	b.RegisterEntity(first)
	b.RegisterEntity(second)

	b.EmitEvent(buffer.TopicDateTime, 10)
	b.EmitEvent(buffer.TopicDateTime, 20)
	b.Execute()

	assert.Equal(t, []int32{10, 20}, first.got)
	assert.Equal(t, []int32{10, 20}, second.got)
	assert.Equal(t, []string{"first", "second", "first", "second"}, order)
}

func TestBus_HandlerEmittedEventsDrainInSamePass(t *testing.T) {
	b := New()
	chained := false
	l := &recordingListener{id: buffer.NewFourCC('C', 'H', 'A', 'N')}
	l.onEvent = func(topic buffer.FourCC, msg int32) {
		if msg == 1 && !chained {
			chained = true
			b.EmitEvent(topic, 2)
		}
	}
	b.RegisterEntity(l)

	b.EmitEvent(buffer.TopicDateTime, 1)
	b.Execute()

	assert.Equal(t, []int32{1, 2}, l.got)
	assert.Equal(t, 0, b.PendingCount())
}

func TestBus_UnregisterDuringDeliveryStopsFurtherEvents(t *testing.T) {
	b := New()
	l := &recordingListener{id: buffer.NewFourCC('U', 'N', 'R', 'G')}
	l.onEvent = func(topic buffer.FourCC, msg int32) {
		if msg == 1 {
			b.UnregisterEntity(l)
		}
	}
	b.RegisterEntity(l)

	b.EmitEvent(buffer.TopicDateTime, 1)
	b.Execute()
	require.Equal(t, []int32{1}, l.got)

	b.EmitEvent(buffer.TopicDateTime, 2)
	b.Execute()
	assert.Equal(t, []int32{1}, l.got, "unregistered entity must not receive further events")
}

func TestDataChannel_SendReceiveRoundTrip(t *testing.T) {
	b := New()
	topic := buffer.ChannelOutSSID
	b.OpenDataChannel(topic, 2)

	ok := b.SendDataToChannel(topic, []byte("ssid-one"))
	require.True(t, ok)

	var gotEmpty bool
	var gotData []byte
	b.ReceiveDataFromChannel(topic, func(wasEmpty bool, data []byte) {
		gotEmpty = wasEmpty
		gotData = data
	})
	assert.False(t, gotEmpty, "the channel held one buffer before the pop")
	assert.Equal(t, "ssid-one", string(gotData))
}

func TestDataChannel_SendToUnopenedReturnsFalse(t *testing.T) {
	b := New()
	ok := b.SendDataToChannel(buffer.ChannelOutSSID, []byte("x"))
	assert.False(t, ok)
}

func TestDataChannel_EvictsOldestWhenFull(t *testing.T) {
	b := New()
	topic := buffer.ChannelOutEvent
	b.OpenDataChannel(topic, 1)

	b.SendDataToChannel(topic, []byte("first"))
	b.SendDataToChannel(topic, []byte("second"))

	var gotData []byte
	b.ReceiveDataFromChannel(topic, func(wasEmpty bool, data []byte) { gotData = data })
	assert.Equal(t, "second", string(gotData), "oldest buffer must be evicted on overflow")
}

func TestDataChannel_ReceiveFromEmptyReportsWasEmpty(t *testing.T) {
	b := New()
	topic := buffer.ChannelOutLisp
	b.OpenDataChannel(topic, 4)

	var gotEmpty bool
	var called bool
	b.ReceiveDataFromChannel(topic, func(wasEmpty bool, data []byte) {
		gotEmpty = wasEmpty
		called = true
		assert.Nil(t, data)
	})
	assert.True(t, called)
	assert.True(t, gotEmpty)
}
