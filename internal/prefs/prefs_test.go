// ABOUTME: Tests for the encrypted preference facade
// ABOUTME: Uses the in-memory kv provider with real AES ciphers

package prefs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/sealed-prefs/internal/cipher"
	"github.com/2389/sealed-prefs/internal/codec"
	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/namecache"
)

type testEnv struct {
	provider *kv.MemoryProvider
	backing  kv.Store
	codec    *codec.Codec
	prefs    *Store
}

func setupTestPrefs(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	provider := kv.NewMemoryProvider()
	ns := kv.Namespace{Name: "settings"}
	backing, err := provider.Open(ctx, ns)
	require.NoError(t, err)

	key := []byte("1234567890123456")
	names, err := cipher.NewFixedIVText(key, cipher.DeriveNameIV(ns.ID()))
	require.NoError(t, err)
	values, err := cipher.NewRandomIVText(key)
	require.NoError(t, err)
	c := codec.New(names, values)

	p := New(backing, c, namecache.New(time.Minute, 64))
	t.Cleanup(func() { p.Close() })

	return &testEnv{provider: provider, backing: backing, codec: c, prefs: p}
}

type recordingListener struct {
	mu    sync.Mutex
	names []string
}

func (r *recordingListener) PreferenceChanged(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = append(r.names, name)
}

func (r *recordingListener) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.names...)
}

func TestCountIntScenario(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	v, err := env.prefs.GetInt(ctx, "count_int", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(0), v)

	require.NoError(t, env.prefs.Edit().PutInt("count_int", 1).Commit(ctx))

	v, err = env.prefs.GetInt(ctx, "count_int", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)
}

func TestTypedRoundTrip(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	err := env.prefs.Edit().
		PutBoolean("flag", true).
		PutInt("int", -7).
		PutLong("long", 1<<42).
		PutFloat("float", 2.5).
		PutString("string", "héllo").
		PutStringSet("set", []string{"b", "a", "b"}).
		Commit(ctx)
	require.NoError(t, err)

	b, err := env.prefs.GetBoolean(ctx, "flag", false)
	require.NoError(t, err)
	assert.True(t, b)

	i, err := env.prefs.GetInt(ctx, "int", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(-7), i)

	l, err := env.prefs.GetLong(ctx, "long", 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<42), l)

	f, err := env.prefs.GetFloat(ctx, "float", 0)
	require.NoError(t, err)
	assert.Equal(t, float32(2.5), f)

	s, err := env.prefs.GetString(ctx, "string", "")
	require.NoError(t, err)
	assert.Equal(t, "héllo", s)

	set, err := env.prefs.GetStringSet(ctx, "set", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, set)
}

func TestStoredEntriesAreEncrypted(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, env.prefs.Edit().PutString("password", "hunter2").Commit(ctx))

	all, err := env.backing.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	for k, v := range all {
		assert.NotContains(t, k, "password")
		assert.NotContains(t, v, "hunter2")
	}
}

func TestDefaults(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	s, err := env.prefs.GetString(ctx, "missing", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback", s)

	set, err := env.prefs.GetStringSet(ctx, "missing", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, set)

	// A name stored under one tag is absent under another.
	require.NoError(t, env.prefs.Edit().PutString("volume", "loud").Commit(ctx))
	i, err := env.prefs.GetInt(ctx, "volume", 3)
	require.NoError(t, err)
	assert.Equal(t, int32(3), i)
}

func TestCorruptValueIsNotReplacedByDefault(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	stored, err := env.codec.EncodeName(codec.Int, "count")
	require.NoError(t, err)

	t.Run("undecryptable", func(t *testing.T) {
		require.NoError(t, env.backing.Edit().PutString(stored, "!!!not-base64").Commit(ctx))
		_, err := env.prefs.GetInt(ctx, "count", 5)
		assert.ErrorIs(t, err, cipher.ErrEncoding)
	})

	t.Run("unparsable", func(t *testing.T) {
		bad, err := env.codec.EncodeValue("twelve")
		require.NoError(t, err)
		require.NoError(t, env.backing.Edit().PutString(stored, bad).Commit(ctx))

		_, err = env.prefs.GetInt(ctx, "count", 5)
		assert.ErrorIs(t, err, codec.ErrParse)

		_, err = env.prefs.GetAll(ctx)
		assert.ErrorIs(t, err, codec.ErrParse)
	})
}

func TestContainsChecksEveryTag(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	ok, err := env.prefs.Contains(ctx, "theme")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, env.prefs.Edit().PutStringSet("theme", []string{"dark"}).Commit(ctx))

	ok, err = env.prefs.Contains(ctx, "theme")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRemoveDeletesEveryTag(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, env.prefs.Edit().
		PutInt("dup", 1).
		PutString("dup", "one").
		PutBoolean("keep", true).
		Commit(ctx))

	require.NoError(t, env.prefs.Edit().Remove("dup").Commit(ctx))

	ok, err := env.prefs.Contains(ctx, "dup")
	require.NoError(t, err)
	assert.False(t, ok)

	all, err := env.prefs.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"keep": true}, all)
}

func TestGetAll(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, env.prefs.Edit().
		PutInt("count", 3).
		PutString("name", "box").
		PutStringSet("tags", []string{"x"}).
		PutBoolean("both", true).
		PutString("both", "text").
		Commit(ctx))

	// An entry written with a tag this code does not know is skipped.
	unknownName, err := env.codec.Names.Encrypt("double_ratio")
	require.NoError(t, err)
	unknownValue, err := env.codec.EncodeValue("0.5")
	require.NoError(t, err)
	require.NoError(t, env.backing.Edit().PutString(unknownName, unknownValue).Commit(ctx))

	all, err := env.prefs.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"count": int32(3),
		"name":  "box",
		"tags":  []string{"x"},
		"both":  "text",
	}, all)

	entries, err := env.prefs.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 5)
	assert.Equal(t, Entry{Name: "both", Tag: codec.Boolean, Value: true}, entries[0])
	assert.Equal(t, Entry{Name: "both", Tag: codec.String, Value: "text"}, entries[1])
}

func TestDelimiterInSetMemberFailsCommit(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	e := env.prefs.Edit().
		PutString("ok", "fine").
		PutStringSet("bad", []string{"a" + codec.SetDelimiter + "b"})
	err := e.Commit(ctx)
	assert.ErrorIs(t, err, codec.ErrDelimiterInValue)

	all, err := env.prefs.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	// The editor is usable again after a failed commit.
	require.NoError(t, e.PutString("ok", "fine").Commit(ctx))
	s, err := env.prefs.GetString(ctx, "ok", "")
	require.NoError(t, err)
	assert.Equal(t, "fine", s)
}

func TestEmptySet(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, env.prefs.Edit().PutStringSet("none", []string{}).Commit(ctx))

	set, err := env.prefs.GetStringSet(ctx, "none", []string{"default"})
	require.NoError(t, err)
	assert.Equal(t, []string{}, set)
}

func TestClear(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, env.prefs.Edit().PutInt("a", 1).PutInt("b", 2).Commit(ctx))
	require.NoError(t, env.prefs.Edit().Clear().PutInt("c", 3).Commit(ctx))

	all, err := env.prefs.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"c": int32(3)}, all)
}

func TestCommitFailure(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	boom := errors.New("disk full")
	env.provider.FailCommit(func(kv.Namespace) error { return boom })

	err := env.prefs.Edit().PutInt("count", 1).Commit(ctx)
	assert.ErrorIs(t, err, boom)

	env.provider.FailCommit(nil)
	ok, err := env.prefs.Contains(ctx, "count")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestApply(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	env.prefs.Edit().PutLong("ts", 99).Apply()

	assert.Eventually(t, func() bool {
		v, err := env.prefs.GetLong(ctx, "ts", 0)
		return err == nil && v == 99
	}, 2*time.Second, 10*time.Millisecond)

	// A failed background commit is dropped without panicking.
	env.prefs.Edit().PutStringSet("bad", []string{codec.SetDelimiter}).Apply()
}

func TestListeners(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	l := &recordingListener{}
	env.prefs.RegisterListener(l)
	env.prefs.RegisterListener(l)

	require.NoError(t, env.prefs.Edit().PutInt("volume", 3).Commit(ctx))
	assert.Equal(t, []string{"volume"}, l.Names())

	// Only the tag that actually existed produces a notification.
	require.NoError(t, env.prefs.Edit().Remove("volume").Commit(ctx))
	assert.Equal(t, []string{"volume", "volume"}, l.Names())

	env.prefs.UnregisterListener(l)
	require.NoError(t, env.prefs.Edit().PutInt("volume", 4).Commit(ctx))
	assert.Equal(t, []string{"volume", "volume"}, l.Names())

	// Unregistering an unknown listener is a no-op.
	env.prefs.UnregisterListener(&recordingListener{})
}

func TestListenersSeeWritesFromOtherFacades(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	l := &recordingListener{}
	env.prefs.RegisterListener(l)

	other := New(env.backing, env.codec, nil)
	defer other.Close()
	require.NoError(t, other.Edit().PutString("shared", "yes").Commit(ctx))

	assert.Equal(t, []string{"shared"}, l.Names())
}

func TestLookup(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	require.NoError(t, env.prefs.Edit().
		PutInt("volume", 3).
		PutString("volume", "loud").
		PutBoolean("muted", false).
		Commit(ctx))
	require.NoError(t, env.backing.Edit().PutString("not-a-stored-name", "junk").Commit(ctx))

	_, err := env.prefs.Entries(ctx)
	require.Error(t, err)

	entries, err := env.prefs.Lookup(ctx, "volume")
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "volume", Tag: codec.Int, Value: int32(3)},
		{Name: "volume", Tag: codec.String, Value: "loud"},
	}, entries)

	entries, err = env.prefs.Lookup(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type taggedListener struct {
	tags []string
}

func (taggedListener) PreferenceChanged(string) {}

func TestListenersMustBeComparable(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	l := taggedListener{tags: []string{"a"}}
	assert.NotPanics(t, func() {
		env.prefs.RegisterListener(l)
		require.NoError(t, env.prefs.Edit().PutInt("volume", 3).Commit(ctx))
		env.prefs.UnregisterListener(l)
	})
	assert.Empty(t, env.prefs.listeners)
}

func TestCloseUnregistersListeners(t *testing.T) {
	env := setupTestPrefs(t)
	ctx := context.Background()

	l := &recordingListener{}
	env.prefs.RegisterListener(l)
	require.NoError(t, env.prefs.Close())

	require.NoError(t, env.backing.Edit().PutString("raw", "x").Commit(ctx))
	assert.Empty(t, l.Names())
}
