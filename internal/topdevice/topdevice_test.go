package topdevice

import (
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniot-io/uniot-core/internal/scheduler"
)

func TestDevice_HandleTopAsk_PublishesTaskStats(t *testing.T) {
	sched := scheduler.New()
	task := sched.CreateTask(func(int) {})
	sched.Push("blink", task)
	task.Attach(time.Millisecond, 0)

	now := time.Now()
	sched.Loop(now)

	var gotTopic string
	var gotPayload []byte
	d := New(sched, "debug/top", "debug/mem", func(topic string, payload []byte) {
		gotTopic = topic
		gotPayload = payload
	})
	d.SetStarted(now.Add(-time.Second))

	d.HandleTopAsk(now.Add(time.Second))

	assert.Equal(t, "debug/top", gotTopic)
	var resp TopResponse
	require.NoError(t, cbor.Unmarshal(gotPayload, &resp))
	require.Contains(t, resp.Tasks, "blink")
	assert.True(t, resp.Tasks["blink"].Attached)
	assert.Equal(t, int64(2000), resp.UptimeMS)
}

func TestDevice_HandleMemAsk_PublishesAvailable(t *testing.T) {
	sched := scheduler.New()
	var gotPayload []byte
	d := New(sched, "debug/top", "debug/mem", func(topic string, payload []byte) {
		gotPayload = payload
	})

	d.HandleMemAsk()

	var resp MemResponse
	require.NoError(t, cbor.Unmarshal(gotPayload, &resp))
	assert.NotZero(t, resp.Available)
}
