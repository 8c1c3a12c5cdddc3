// ABOUTME: Tests for master key creation and reload
// ABOUTME: Uses the in-memory array keyring and the encrypted file backend

package keystore

import (
	"errors"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingKeyring struct {
	keyring.Keyring
	getErr error
	setErr error
}

func (f *failingKeyring) Get(key string) (keyring.Item, error) {
	if f.getErr != nil {
		return keyring.Item{}, f.getErr
	}
	return f.Keyring.Get(key)
}

func (f *failingKeyring) Set(item keyring.Item) error {
	if f.setErr != nil {
		return f.setErr
	}
	return f.Keyring.Set(item)
}

func TestMasterKey_CreateThenReload(t *testing.T) {
	ks := New(keyring.NewArrayKeyring(nil))

	first, err := ks.MasterKey("settings#600")
	require.NoError(t, err)
	assert.Len(t, first, MasterKeySize)

	again, err := ks.MasterKey("settings#600")
	require.NoError(t, err)
	assert.Equal(t, first, again)

	other, err := ks.MasterKey("other#600")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestMasterKey_Corrupt(t *testing.T) {
	ring := keyring.NewArrayKeyring([]keyring.Item{{Key: "app", Data: []byte("short")}})
	_, err := New(ring).MasterKey("app")
	assert.ErrorIs(t, err, ErrCorruptKey)
}

func TestMasterKey_Failures(t *testing.T) {
	locked := errors.New("keychain locked")

	_, err := New(&failingKeyring{Keyring: keyring.NewArrayKeyring(nil), getErr: locked}).MasterKey("app")
	assert.ErrorIs(t, err, locked)

	_, err = New(&failingKeyring{Keyring: keyring.NewArrayKeyring(nil), setErr: locked}).MasterKey("app")
	assert.ErrorIs(t, err, locked)
}

func TestRemove(t *testing.T) {
	ks := New(keyring.NewArrayKeyring(nil))

	first, err := ks.MasterKey("app")
	require.NoError(t, err)
	require.NoError(t, ks.Remove("app"))
	require.NoError(t, ks.Remove("app"))

	second, err := ks.MasterKey("app")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestOpen_FileBackend(t *testing.T) {
	cfg := Config{
		Service:      "sealed-prefs-test",
		Backends:     []string{"file"},
		FileDir:      t.TempDir(),
		FilePassword: "correct horse",
	}

	ks, err := Open(cfg)
	require.NoError(t, err)
	key, err := ks.MasterKey("app")
	require.NoError(t, err)

	reopened, err := Open(cfg)
	require.NoError(t, err)
	again, err := reopened.MasterKey("app")
	require.NoError(t, err)
	assert.Equal(t, key, again)
}

func TestOpen_NoBackend(t *testing.T) {
	_, err := Open(Config{Backends: []string{"does-not-exist"}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestKnownBackends(t *testing.T) {
	assert.Contains(t, KnownBackends(), "file")
	assert.Contains(t, KnownBackends(), "keychain")
}
