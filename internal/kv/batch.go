// ABOUTME: Shared editor, batch and listener registry used by every backend
// ABOUTME: Backends only implement the atomic write of a Batch

package kv

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Op is one staged change.
type Op struct {
	Key    string
	Value  string
	Delete bool
}

// Batch is the set of changes staged by an Editor.
type Batch struct {
	Clear bool
	Ops   []Op
}

// Empty reports whether the batch changes nothing.
func (b Batch) Empty() bool {
	return !b.Clear && len(b.Ops) == 0
}

// applyTo applies the batch to an in-memory map and returns the changed keys.
func (b Batch) applyTo(m map[string]string) []string {
	if b.Clear {
		clear(m)
	}
	changed := make([]string, 0, len(b.Ops))
	for _, op := range b.Ops {
		if op.Delete {
			if _, ok := m[op.Key]; !ok {
				continue
			}
			delete(m, op.Key)
		} else {
			m[op.Key] = op.Value
		}
		changed = append(changed, op.Key)
	}
	return changed
}

// writeFunc persists a batch atomically and returns the keys it changed:
// every put, and every remove of a key that existed.
type writeFunc func(ctx context.Context, b Batch) ([]string, error)

// editor is the Editor shared by all backends.
type editor struct {
	write     writeFunc
	listeners *listenerSet
	logger    *slog.Logger

	clear bool
	ops   []Op
	index map[string]int
}

func newEditor(write writeFunc, listeners *listenerSet, logger *slog.Logger) *editor {
	return &editor{
		write:     write,
		listeners: listeners,
		logger:    logger,
		index:     make(map[string]int),
	}
}

func (e *editor) stage(op Op) {
	if i, ok := e.index[op.Key]; ok {
		e.ops[i] = op
		return
	}
	e.index[op.Key] = len(e.ops)
	e.ops = append(e.ops, op)
}

func (e *editor) PutString(key, value string) Editor {
	e.stage(Op{Key: key, Value: value})
	return e
}

func (e *editor) Remove(key string) Editor {
	e.stage(Op{Key: key, Delete: true})
	return e
}

func (e *editor) Clear() Editor {
	e.clear = true
	return e
}

// take returns the staged batch and resets the editor for reuse.
func (e *editor) take() Batch {
	b := Batch{Clear: e.clear, Ops: e.ops}
	e.clear = false
	e.ops = nil
	e.index = make(map[string]int)
	return b
}

func (e *editor) Commit(ctx context.Context) error {
	return e.commit(ctx, e.take())
}

func (e *editor) Apply() {
	b := e.take()
	go func() {
		if err := e.commit(context.Background(), b); err != nil {
			e.logger.Error("background commit failed", "error", err, "changes", len(b.Ops))
		}
	}()
}

func (e *editor) commit(ctx context.Context, b Batch) error {
	if b.Empty() {
		return nil
	}
	changed, err := e.write(ctx, b)
	if err != nil {
		return err
	}
	e.logger.Debug("committed", "staged", len(b.Ops), "changed", len(changed), "clear", b.Clear)
	e.listeners.notify(changed)
	return nil
}

// listenerSet holds the listeners of one namespace.
type listenerSet struct {
	mu        sync.RWMutex
	listeners map[Listener]struct{}
}

func newListenerSet() *listenerSet {
	return &listenerSet{listeners: make(map[Listener]struct{})}
}

func (s *listenerSet) add(l Listener) {
	if !Comparable(l) {
		slog.Default().With("component", "kv").Warn("ignoring listener that is not comparable", "type", fmt.Sprintf("%T", l))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[l] = struct{}{}
}

func (s *listenerSet) remove(l Listener) {
	if !Comparable(l) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.listeners, l)
}

func (s *listenerSet) notify(keys []string) {
	s.mu.RLock()
	ls := make([]Listener, 0, len(s.listeners))
	for l := range s.listeners {
		ls = append(ls, l)
	}
	s.mu.RUnlock()

	for _, key := range keys {
		for _, l := range ls {
			l.KeyChanged(key)
		}
	}
}
