// ABOUTME: Encrypted preference facade over a kv.Store with typed getters
// ABOUTME: Owns the listener registry and the decrypted-name cache

package prefs

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/2389/sealed-prefs/internal/codec"
	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/namecache"
)

// Listener is notified with the plaintext name of a changed preference.
// Listeners must be comparable (pointer types always are); registering one
// that is not logs a warning and has no effect.
type Listener interface {
	PreferenceChanged(name string)
}

// Entry is one decoded preference.
type Entry struct {
	Name  string
	Tag   codec.TypeTag
	Value any
}

// Preferences is the public contract of an encrypted preference store.
type Preferences interface {
	Contains(ctx context.Context, name string) (bool, error)
	GetBoolean(ctx context.Context, name string, def bool) (bool, error)
	GetInt(ctx context.Context, name string, def int32) (int32, error)
	GetLong(ctx context.Context, name string, def int64) (int64, error)
	GetFloat(ctx context.Context, name string, def float32) (float32, error)
	GetString(ctx context.Context, name string, def string) (string, error)
	GetStringSet(ctx context.Context, name string, def []string) ([]string, error)
	GetAll(ctx context.Context) (map[string]any, error)
	Lookup(ctx context.Context, name string) ([]Entry, error)
	Entries(ctx context.Context) ([]Entry, error)
	Edit() Editor
	RegisterListener(l Listener)
	UnregisterListener(l Listener)
	Close() error
}

// Store implements Preferences.
type Store struct {
	backing kv.Store
	codec   *codec.Codec
	names   *namecache.Cache
	logger  *slog.Logger

	mu        sync.Mutex
	listeners map[Listener]*listenerBridge
}

var _ Preferences = (*Store)(nil)

// New returns a Store over backing. names may be nil to disable name caching;
// the Store takes ownership of it and closes it in Close.
func New(backing kv.Store, c *codec.Codec, names *namecache.Cache) *Store {
	if names == nil {
		names = namecache.New(0, 0)
	}
	return &Store{
		backing:   backing,
		codec:     c,
		names:     names,
		logger:    slog.Default().With("component", "prefs"),
		listeners: make(map[Listener]*listenerBridge),
	}
}

// Contains reports whether name exists under any tag.
func (s *Store) Contains(ctx context.Context, name string) (bool, error) {
	for _, tag := range codec.Tags {
		stored, err := s.codec.EncodeName(tag, name)
		if err != nil {
			return false, err
		}
		ok, err := s.backing.Contains(ctx, stored)
		if err != nil {
			return false, fmt.Errorf("checking preference: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// lookup returns the decrypted raw value of (tag, name).
func (s *Store) lookup(ctx context.Context, tag codec.TypeTag, name string) (string, bool, error) {
	stored, err := s.codec.EncodeName(tag, name)
	if err != nil {
		return "", false, err
	}
	value, ok, err := s.backing.Get(ctx, stored)
	if err != nil {
		return "", false, fmt.Errorf("reading preference: %w", err)
	}
	if !ok {
		return "", false, nil
	}
	raw, err := s.codec.DecodeValue(value)
	if err != nil {
		return "", false, err
	}
	return raw, true, nil
}

func get[T any](ctx context.Context, s *Store, tag codec.TypeTag, name string, def T) (T, error) {
	var zero T
	raw, ok, err := s.lookup(ctx, tag, name)
	if err != nil {
		return zero, err
	}
	if !ok {
		return def, nil
	}
	v, err := codec.Parse(tag, raw)
	if err != nil {
		return zero, err
	}
	return v.(T), nil
}

// GetBoolean returns the boolean stored under name, or def if there is none.
func (s *Store) GetBoolean(ctx context.Context, name string, def bool) (bool, error) {
	return get(ctx, s, codec.Boolean, name, def)
}

// GetInt returns the int stored under name, or def if there is none.
func (s *Store) GetInt(ctx context.Context, name string, def int32) (int32, error) {
	return get(ctx, s, codec.Int, name, def)
}

// GetLong returns the long stored under name, or def if there is none.
func (s *Store) GetLong(ctx context.Context, name string, def int64) (int64, error) {
	return get(ctx, s, codec.Long, name, def)
}

// GetFloat returns the float stored under name, or def if there is none.
func (s *Store) GetFloat(ctx context.Context, name string, def float32) (float32, error) {
	return get(ctx, s, codec.Float, name, def)
}

// GetString returns the string stored under name, or def if there is none.
func (s *Store) GetString(ctx context.Context, name string, def string) (string, error) {
	return get(ctx, s, codec.String, name, def)
}

// GetStringSet returns the set stored under name, sorted, or def if there is none.
func (s *Store) GetStringSet(ctx context.Context, name string, def []string) ([]string, error) {
	return get(ctx, s, codec.StringSet, name, def)
}

// decodeName decrypts a stored name, consulting the name cache first.
func (s *Store) decodeName(stored string) (string, codec.TypeTag, error) {
	if e, ok := s.names.Get(stored); ok {
		return e.Name, e.Tag, nil
	}
	name, tag, err := s.codec.DecodeName(stored)
	if err != nil {
		return name, tag, err
	}
	s.names.Put(stored, namecache.Entry{Name: name, Tag: tag})
	return name, tag, nil
}

func skippable(err error) bool {
	return errors.Is(err, codec.ErrUnknownTag) || errors.Is(err, codec.ErrMalformedName)
}

// Entries returns every decodable entry, sorted by name and then by tag order.
func (s *Store) Entries(ctx context.Context) ([]Entry, error) {
	all, err := s.backing.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing preferences: %w", err)
	}

	entries := make([]Entry, 0, len(all))
	skipped := 0
	for storedName, storedValue := range all {
		name, tag, err := s.decodeName(storedName)
		if skippable(err) {
			skipped++
			continue
		}
		if err != nil {
			return nil, err
		}
		raw, err := s.codec.DecodeValue(storedValue)
		if err != nil {
			return nil, err
		}
		value, err := codec.Parse(tag, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Tag: tag, Value: value})
	}
	if skipped > 0 {
		s.logger.Warn("skipped entries with unknown type tags", "count", skipped)
	}

	slices.SortFunc(entries, func(a, b Entry) int {
		return cmp.Or(
			cmp.Compare(a.Name, b.Name),
			cmp.Compare(slices.Index(codec.Tags, a.Tag), slices.Index(codec.Tags, b.Tag)),
		)
	})
	return entries, nil
}

// Lookup returns the entries stored under name, one per tag, in codec.Tags
// order. Other entries are never read, so a corrupt entry elsewhere in the
// store does not affect it.
func (s *Store) Lookup(ctx context.Context, name string) ([]Entry, error) {
	var entries []Entry
	for _, tag := range codec.Tags {
		raw, ok, err := s.lookup(ctx, tag, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		value, err := codec.Parse(tag, raw)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Name: name, Tag: tag, Value: value})
	}
	return entries, nil
}

// GetAll returns every entry keyed by name. When a name exists under several
// tags, the value of the tag latest in codec.Tags is returned.
func (s *Store) GetAll(ctx context.Context) (map[string]any, error) {
	entries, err := s.Entries(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(entries))
	for _, e := range entries {
		out[e.Name] = e.Value
	}
	return out, nil
}

// Edit returns a new Editor.
func (s *Store) Edit() Editor {
	return &editor{store: s, kv: s.backing.Edit()}
}

// RegisterListener adds l. Registering the same listener twice has no effect.
func (s *Store) RegisterListener(l Listener) {
	if !kv.Comparable(l) {
		s.logger.Warn("ignoring listener that is not comparable", "type", fmt.Sprintf("%T", l))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.listeners[l]; ok {
		return
	}
	b := &listenerBridge{store: s, listener: l}
	s.listeners[l] = b
	s.backing.RegisterListener(b)
}

// UnregisterListener removes l if it is registered.
func (s *Store) UnregisterListener(l Listener) {
	if !kv.Comparable(l) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.listeners[l]
	if !ok {
		return
	}
	delete(s.listeners, l)
	s.backing.UnregisterListener(b)
}

// Close unregisters every listener and releases the name cache.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for l, b := range s.listeners {
		s.backing.UnregisterListener(b)
		delete(s.listeners, l)
	}
	s.names.Close()
	return nil
}

// listenerBridge translates stored-name notifications into plaintext names.
type listenerBridge struct {
	store    *Store
	listener Listener
}

func (b *listenerBridge) KeyChanged(stored string) {
	name, _, err := b.store.decodeName(stored)
	if err != nil {
		if !skippable(err) {
			b.store.logger.Warn("dropping change notification", "error", err)
		}
		return
	}
	b.listener.PreferenceChanged(name)
}
