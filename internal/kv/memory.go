// ABOUTME: In-memory Provider for tests and ephemeral hosts
// ABOUTME: Supports injected open and commit failures

package kv

import (
	"context"
	"log/slog"
	"maps"
	"sync"
)

// MemoryProvider keeps every namespace in process memory. Reopening a
// namespace returns the same data.
type MemoryProvider struct {
	mu         sync.Mutex
	stores     map[string]*memoryStore
	failOpen   func(Namespace) error
	failCommit func(Namespace) error
	closed     bool
	logger     *slog.Logger
}

// NewMemoryProvider creates an empty MemoryProvider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		stores: make(map[string]*memoryStore),
		logger: slog.Default().With("component", "kv.memory"),
	}
}

// FailOpen makes Open return fn's error whenever fn returns non-nil.
// Passing nil removes the hook.
func (p *MemoryProvider) FailOpen(fn func(Namespace) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failOpen = fn
}

// FailCommit makes commits fail whenever fn returns non-nil.
// Passing nil removes the hook.
func (p *MemoryProvider) FailCommit(fn func(Namespace) error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCommit = fn
}

// Open returns the store for ns, creating it empty on first use.
func (p *MemoryProvider) Open(ctx context.Context, ns Namespace) (Store, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if p.failOpen != nil {
		if err := p.failOpen(ns); err != nil {
			return nil, err
		}
	}

	id := ns.ID()
	s, ok := p.stores[id]
	if !ok {
		s = &memoryStore{
			provider:  p,
			ns:        ns,
			data:      make(map[string]string),
			listeners: newListenerSet(),
			logger:    p.logger.With("namespace", id),
		}
		p.stores[id] = s
	}
	return s, nil
}

// Close marks the provider closed. Stores already opened keep working.
func (p *MemoryProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *MemoryProvider) commitHook() func(Namespace) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failCommit
}

type memoryStore struct {
	provider  *MemoryProvider
	ns        Namespace
	mu        sync.RWMutex
	data      map[string]string
	listeners *listenerSet
	logger    *slog.Logger
}

var _ Store = (*memoryStore)(nil)

func (s *memoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *memoryStore) Contains(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *memoryStore) All(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data), nil
}

func (s *memoryStore) Edit() Editor {
	return newEditor(s.write, s.listeners, s.logger)
}

func (s *memoryStore) RegisterListener(l Listener) {
	s.listeners.add(l)
}

func (s *memoryStore) UnregisterListener(l Listener) {
	s.listeners.remove(l)
}

func (s *memoryStore) write(ctx context.Context, b Batch) ([]string, error) {
	if hook := s.provider.commitHook(); hook != nil {
		if err := hook(s.ns); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return b.applyTo(s.data), nil
}
