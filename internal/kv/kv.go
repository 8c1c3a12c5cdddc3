// ABOUTME: Backing store contract: Store, Editor, Listener, Provider and Namespace
// ABOUTME: Every backend in this package implements these interfaces

package kv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
)

var (
	// ErrClosed is returned by operations on a closed provider.
	ErrClosed = errors.New("provider closed")

	// ErrInvalidNamespace is returned when a namespace has no name.
	ErrInvalidNamespace = errors.New("invalid namespace")
)

// Mode is the permission of a namespace. File backends apply it to the file;
// all backends fold it into the namespace identity.
type Mode uint32

const (
	// ModePrivate is readable and writable by the owner only.
	ModePrivate Mode = 0o600
	// ModeShared is additionally readable by everyone.
	ModeShared Mode = 0o644
)

// FileMode returns m as an os.FileMode.
func (m Mode) FileMode() os.FileMode {
	return os.FileMode(m) & os.ModePerm
}

// Namespace identifies one logical store inside a provider.
type Namespace struct {
	Name string
	Mode Mode
}

// ID returns the identity of the namespace, including its mode.
func (n Namespace) ID() string {
	return fmt.Sprintf("%s#%o", n.Name, n.mode())
}

func (n Namespace) mode() Mode {
	if n.Mode == 0 {
		return ModePrivate
	}
	return n.Mode
}

// Validate reports whether the namespace can be opened.
func (n Namespace) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidNamespace)
	}
	return nil
}

// Listener is notified after a commit changes a key. Listeners are kept in
// a set, so they must be comparable; pointer types always are. Registering a
// listener that is not comparable logs a warning and has no effect.
type Listener interface {
	KeyChanged(key string)
}

// Comparable reports whether l can be held in a listener set.
func Comparable(l any) bool {
	if l == nil {
		return false
	}
	return reflect.ValueOf(l).Comparable()
}

// Store is a flat string-keyed persistent map.
type Store interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Contains(ctx context.Context, key string) (bool, error)
	// All returns a copy of every entry.
	All(ctx context.Context) (map[string]string, error)
	Edit() Editor
	RegisterListener(l Listener)
	UnregisterListener(l Listener)
}

// Editor stages changes to a Store. An Editor is not safe for concurrent use.
type Editor interface {
	PutString(key, value string) Editor
	Remove(key string) Editor
	Clear() Editor
	// Commit applies the staged changes synchronously. A nil error means
	// every change was persisted.
	Commit(ctx context.Context) error
	// Apply commits in the background. Failures are logged, not reported.
	Apply()
}

// Provider opens stores by namespace.
type Provider interface {
	Open(ctx context.Context, ns Namespace) (Store, error)
	Close() error
}
