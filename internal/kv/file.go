// ABOUTME: File Provider storing one TOML document per namespace
// ABOUTME: Commits rewrite the document atomically with the namespace's file mode

package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// FileProvider stores each namespace as <dir>/<escaped id>.toml.
type FileProvider struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	stores map[string]*fileStore
}

type fileDocument struct {
	Entries map[string]string `toml:"entries"`
}

// NewFileProvider creates dir if needed and returns a provider rooted there.
func NewFileProvider(dir string) (*FileProvider, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating preferences directory: %w", err)
	}
	return &FileProvider{
		dir:    dir,
		logger: slog.Default().With("component", "kv.file"),
		stores: make(map[string]*fileStore),
	}, nil
}

// Path returns the file backing ns.
func (p *FileProvider) Path(ns Namespace) string {
	return filepath.Join(p.dir, url.PathEscape(ns.ID())+".toml")
}

// Open loads the namespace document, or starts empty if none exists yet.
func (p *FileProvider) Open(ctx context.Context, ns Namespace) (Store, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := ns.ID()
	if s, ok := p.stores[id]; ok {
		return s, nil
	}

	path := p.Path(ns)
	data, err := readDocument(path)
	if err != nil {
		return nil, fmt.Errorf("opening namespace %s: %w", ns.Name, err)
	}

	s := &fileStore{
		path:      path,
		mode:      ns.mode().FileMode(),
		data:      data,
		listeners: newListenerSet(),
		logger:    p.logger.With("namespace", id),
	}
	p.stores[id] = s
	return s, nil
}

// Close is a no-op; every commit is already on disk.
func (p *FileProvider) Close() error {
	return nil
}

func readDocument(path string) (map[string]string, error) {
	var doc fileDocument
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]string), nil
		}
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	if doc.Entries == nil {
		doc.Entries = make(map[string]string)
	}
	return doc.Entries, nil
}

type fileStore struct {
	path      string
	mode      os.FileMode
	mu        sync.RWMutex
	data      map[string]string
	listeners *listenerSet
	logger    *slog.Logger
}

var _ Store = (*fileStore)(nil)

func (s *fileStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *fileStore) Contains(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *fileStore) All(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data), nil
}

func (s *fileStore) Edit() Editor {
	return newEditor(s.write, s.listeners, s.logger)
}

func (s *fileStore) RegisterListener(l Listener) {
	s.listeners.add(l)
}

func (s *fileStore) UnregisterListener(l Listener) {
	s.listeners.remove(l)
}

func (s *fileStore) write(ctx context.Context, b Batch) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.data)
	changed := b.applyTo(next)

	if err := writeDocument(s.path, s.mode, next); err != nil {
		return nil, err
	}
	s.data = next
	return changed, nil
}

// writeDocument writes to a temp file in the same directory and renames it
// over path.
func writeDocument(path string, mode os.FileMode, entries map[string]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".prefs-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := toml.NewEncoder(tmp).Encode(fileDocument{Entries: entries}); err != nil {
		tmp.Close()
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return fmt.Errorf("setting file mode: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replacing preferences file: %w", err)
	}
	return nil
}
