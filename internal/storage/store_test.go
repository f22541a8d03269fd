package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_PutGetRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	defer fs.Close()

	require.NoError(t, fs.Put(KeyWiFi, []byte("payload")))
	data, ok := fs.Get(KeyWiFi)
	require.True(t, ok)
	assert.Equal(t, "payload", string(data))
}

func TestFileStore_KeyTooLong(t *testing.T) {
	dir := t.TempDir()
	fs, err := NewFileStore(dir)
	require.NoError(t, err)
	defer fs.Close()

	longKey := "this-key-is-definitely-longer-than-31-chars.cbor"
	assert.ErrorIs(t, fs.Put(longKey, []byte("x")), ErrKeyTooLong)
}

func TestFileStore_SharedMountRefcount(t *testing.T) {
	dir := t.TempDir()
	a, err := NewFileStore(dir)
	require.NoError(t, err)
	b, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, a.Put(KeyCtrl, []byte{1}))
	data, ok := b.Get(KeyCtrl)
	require.True(t, ok)
	assert.Equal(t, []byte{1}, data)

	a.Close()
	b.Close()
}

func TestCBORStorage_StoreIsNoOpUnlessDirty(t *testing.T) {
	mem := NewMemStore()
	cs, err := NewCBORStorage[WiFiDoc](mem, KeyWiFi)
	require.NoError(t, err)

	stored, err := cs.Store()
	require.NoError(t, err)
	assert.False(t, stored, "store on a clean document must be a no-op")

	cs.Set(WiFiDoc{SSID: "home", Pass: "hunter2"})
	stored, err = cs.Store()
	require.NoError(t, err)
	assert.True(t, stored)

	cs2, err := NewCBORStorage[WiFiDoc](mem, KeyWiFi)
	require.NoError(t, err)
	assert.Equal(t, "home", cs2.Get().SSID)
}

func TestCBORStorage_Clean(t *testing.T) {
	mem := NewMemStore()
	cs, err := NewCBORStorage[CtrlDoc](mem, KeyCtrl)
	require.NoError(t, err)

	cs.Set(CtrlDoc{Reset: 3})
	_, err = cs.Store()
	require.NoError(t, err)

	require.NoError(t, cs.Clean())
	assert.Equal(t, uint8(0), cs.Get().Reset)

	_, ok := mem.Get(KeyCtrl)
	assert.False(t, ok)
}
