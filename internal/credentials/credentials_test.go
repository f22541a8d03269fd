package credentials

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DeviceIDFromMAC(t *testing.T) {
	mac := [6]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x01}
	c, err := New(mac, "uniot-build")
	require.NoError(t, err)

	assert.Equal(t, "deadbeef0001", c.DeviceID())
	assert.Equal(t, "uniot-build", c.CreatorID())
	assert.Empty(t, c.OwnerID())
}

func TestSetOwnerID_FlagsDirtyAndChanged(t *testing.T) {
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	c, err := New(mac, "build")
	require.NoError(t, err)

	assert.False(t, c.IsDirty())
	c.SetOwnerID("alice")
	assert.True(t, c.IsDirty())
	assert.True(t, c.ConsumeOwnerChanged())
	assert.False(t, c.ConsumeOwnerChanged(), "one-shot: second consume returns false")

	c.ClearDirty()
	assert.False(t, c.IsDirty())

	// Setting the same owner again is a no-op.
	c.SetOwnerID("alice")
	assert.False(t, c.IsDirty())
}

func TestSign_VerifiesWithPublicKey(t *testing.T) {
	mac := [6]byte{1, 2, 3, 4, 5, 6}
	c, err := New(mac, "build")
	require.NoError(t, err)

	sig := c.Sign([]byte("hello"))
	assert.Len(t, c.PublicKey(), 32)
	assert.NotEmpty(t, sig)
	assert.Len(t, c.KeyID(), 64) // hex of a 32-byte key
}
