// ABOUTME: Editor that encrypts typed puts and tag-wide removes before staging them
// ABOUTME: An encoding failure is sticky and makes the next Commit fail

package prefs

import (
	"context"
	"fmt"

	"github.com/2389/sealed-prefs/internal/codec"
	"github.com/2389/sealed-prefs/internal/kv"
)

// Editor stages typed changes. It is not safe for concurrent use.
type Editor interface {
	PutBoolean(name string, value bool) Editor
	PutInt(name string, value int32) Editor
	PutLong(name string, value int64) Editor
	PutFloat(name string, value float32) Editor
	PutString(name string, value string) Editor
	PutStringSet(name string, value []string) Editor
	// Remove stages removal of name under every tag.
	Remove(name string) Editor
	Clear() Editor
	// Commit writes the staged changes synchronously. nil means success.
	Commit(ctx context.Context) error
	// Apply commits in the background; failures are only logged.
	Apply()
}

type editor struct {
	store *Store
	kv    kv.Editor
	err   error
}

func (e *editor) put(name string, tag codec.TypeTag, value any) Editor {
	if e.err != nil {
		return e
	}
	raw, err := codec.Format(tag, value)
	if err != nil {
		e.err = fmt.Errorf("staging %s preference: %w", tag, err)
		return e
	}
	storedName, storedValue, err := e.store.codec.EncodeEntry(name, tag, raw)
	if err != nil {
		e.err = fmt.Errorf("staging %s preference: %w", tag, err)
		return e
	}
	e.kv.PutString(storedName, storedValue)
	return e
}

func (e *editor) PutBoolean(name string, value bool) Editor {
	return e.put(name, codec.Boolean, value)
}

func (e *editor) PutInt(name string, value int32) Editor {
	return e.put(name, codec.Int, value)
}

func (e *editor) PutLong(name string, value int64) Editor {
	return e.put(name, codec.Long, value)
}

func (e *editor) PutFloat(name string, value float32) Editor {
	return e.put(name, codec.Float, value)
}

func (e *editor) PutString(name string, value string) Editor {
	return e.put(name, codec.String, value)
}

func (e *editor) PutStringSet(name string, value []string) Editor {
	return e.put(name, codec.StringSet, value)
}

func (e *editor) Remove(name string) Editor {
	if e.err != nil {
		return e
	}
	for _, tag := range codec.Tags {
		stored, err := e.store.codec.EncodeName(tag, name)
		if err != nil {
			e.err = fmt.Errorf("staging removal: %w", err)
			return e
		}
		e.kv.Remove(stored)
	}
	return e
}

func (e *editor) Clear() Editor {
	e.kv.Clear()
	return e
}

// reset discards staged changes and any sticky error.
func (e *editor) reset() error {
	err := e.err
	e.err = nil
	e.kv = e.store.backing.Edit()
	return err
}

func (e *editor) Commit(ctx context.Context) error {
	if e.err != nil {
		return e.reset()
	}
	if err := e.kv.Commit(ctx); err != nil {
		return fmt.Errorf("committing preferences: %w", err)
	}
	return nil
}

func (e *editor) Apply() {
	if e.err != nil {
		e.store.logger.Error("discarding background commit", "error", e.reset())
		return
	}
	e.kv.Apply()
}
