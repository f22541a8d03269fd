package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uniot-io/uniot-core/internal/button"
	"github.com/uniot-io/uniot-core/internal/storage"
)

func newTestController(t *testing.T, onForget func()) (*Controller, *Machine) {
	t.Helper()
	m := New(StateConnected, Config{}, nil)
	mem := storage.NewMemStore()
	cs, err := storage.NewCBORStorage[storage.CtrlDoc](mem, storage.KeyCtrl)
	require.NoError(t, err)
	return NewController(m, cs, onForget), m
}

func TestController_LEDPatternFollowsState(t *testing.T) {
	c, _ := newTestController(t, nil)
	assert.Equal(t, LEDSolid, c.LEDPattern())
}

func TestController_LongPressTriggersForget(t *testing.T) {
	var forgotten bool
	c, _ := newTestController(t, func() { forgotten = true })

	c.OnButtonEvent(button.Click)
	assert.False(t, forgotten, "a plain click must not trigger forget")

	c.OnButtonEvent(button.LongPress)
	assert.True(t, forgotten)
}

func TestController_ForceForgetInvokesCallback(t *testing.T) {
	var forgotten bool
	c, _ := newTestController(t, func() { forgotten = true })

	c.ForceForget()
	assert.True(t, forgotten)
}

func TestController_ForceForgetIsNilSafeWithoutCallback(t *testing.T) {
	c, _ := newTestController(t, nil)
	assert.NotPanics(t, func() { c.ForceForget() })
}

func TestController_RecordBootDetectsLoop(t *testing.T) {
	c, _ := newTestController(t, nil)

	loop, err := c.RecordBoot(3)
	require.NoError(t, err)
	assert.False(t, loop)

	loop, err = c.RecordBoot(3)
	require.NoError(t, err)
	assert.False(t, loop)

	loop, err = c.RecordBoot(3)
	require.NoError(t, err)
	assert.True(t, loop)
}

func TestController_ClearBootCounter(t *testing.T) {
	c, _ := newTestController(t, nil)
	_, err := c.RecordBoot(10)
	require.NoError(t, err)

	require.NoError(t, c.ClearBootCounter())
	loop, err := c.RecordBoot(2)
	require.NoError(t, err)
	assert.False(t, loop, "counter must restart from zero after clearing")
}
