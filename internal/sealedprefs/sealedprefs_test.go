// ABOUTME: Tests for host wiring over the memory, sqlite and file backends
// ABOUTME: Exercises the full open-write-reopen path with a fake keyring

package sealedprefs

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sealed-prefs/internal/config"
	"github.com/2389/sealed-prefs/internal/keystore"
	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/tier"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Store.Backend = backend
	switch backend {
	case config.BackendSQLite:
		cfg.Store.Path = filepath.Join(t.TempDir(), "prefs.db")
	case config.BackendFile:
		cfg.Store.Path = t.TempDir()
	}
	return cfg
}

func fixedRing(ring keyring.Keyring) func() (*keystore.Keystore, error) {
	return func() (*keystore.Keystore, error) { return keystore.New(ring), nil }
}

func TestHost_ReopenKeepsValues(t *testing.T) {
	for _, backend := range []string{config.BackendSQLite, config.BackendFile} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)
			ring := keyring.NewArrayKeyring(nil)
			ns := Namespace("settings", false)

			h, err := New(ctx, cfg, Options{Keystore: fixedRing(ring)})
			require.NoError(t, err)
			p, err := h.Open(ctx, ns)
			require.NoError(t, err)
			require.NoError(t, p.Edit().
				PutInt("count_int", 1).
				PutStringSet("tags", []string{"b", "a"}).
				Commit(ctx))
			require.NoError(t, h.Close())

			h, err = New(ctx, cfg, Options{Keystore: fixedRing(ring)})
			require.NoError(t, err)
			defer h.Close()

			p, err = h.Open(ctx, ns)
			require.NoError(t, err)
			n, err := p.GetInt(ctx, "count_int", 0)
			require.NoError(t, err)
			assert.Equal(t, int32(1), n)
			tags, err := p.GetStringSet(ctx, "tags", nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, tags)

			got, ok, err := h.Tier(ctx, ns)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, tier.HardwareKeystore, got)
		})
	}
}

func TestHost_NoKeyringFallsBack(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)

	h, err := New(ctx, cfg, Options{Keystore: func() (*keystore.Keystore, error) {
		return nil, keystore.ErrUnavailable
	}})
	require.NoError(t, err)
	defer h.Close()

	ns := Namespace("settings", true)
	_, err = h.Open(ctx, ns)
	require.NoError(t, err)

	got, _, err := h.Tier(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, tier.SymmetricSoftware, got)
}

func TestHost_TopTierAndAliases(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, config.BackendMemory)
	cfg.Security.TopTier = "none"
	cfg.Security.AliasNames = true
	mem := kv.NewMemoryProvider()

	h, err := New(ctx, cfg, Options{Provider: mem})
	require.NoError(t, err)

	ns := Namespace("settings", false)
	p, err := h.Open(ctx, ns)
	require.NoError(t, err)
	require.NoError(t, p.Edit().PutBoolean("dark", true).Commit(ctx))

	got, _, err := h.Tier(ctx, ns)
	require.NoError(t, err)
	assert.Equal(t, tier.Plaintext, got)

	raw, err := mem.Open(ctx, ns)
	require.NoError(t, err)
	all, err := raw.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestNew_BadTopTier(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory)
	cfg.Security.TopTier = "AES"

	_, err := New(context.Background(), cfg, Options{})
	assert.ErrorIs(t, err, tier.ErrUnknownTier)
}

func TestNamespace(t *testing.T) {
	assert.Equal(t, kv.ModePrivate, Namespace("a", false).Mode)
	assert.Equal(t, kv.ModeShared, Namespace("a", true).Mode)
}
