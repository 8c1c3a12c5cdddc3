// ABOUTME: Symmetric key lifecycle: generate, persist and reload per store
// ABOUTME: Key records live in a nested store obfuscated with an embedded key

package secret

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/2389/sealed-prefs/internal/cipher"
	"github.com/2389/sealed-prefs/internal/codec"
	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/prefs"
)

// KeySize is the length of a store key in bytes.
const KeySize = cipher.KeySize

// RecordName is the logical name of the key record inside its namespace.
const RecordName = "secret_key"

// DefaultNamespace prefixes the namespaces that hold key records.
const DefaultNamespace = "sealed-prefs.keys"

var (
	// ErrPersist is returned when a newly generated key could not be stored.
	ErrPersist = errors.New("failed to persist key material")

	// ErrCorruptKey is returned when a stored key record does not decode to KeySize bytes.
	ErrCorruptKey = errors.New("stored key is corrupt")
)

// ObfuscationKey encrypts the key-record namespaces. It is not a secret.
var ObfuscationKey = []byte{71, 250, 217, 122, 237, 170, 90, 14, 133, 86, 191, 221, 200, 252, 205, 161}

// Key is the symmetric key of one store.
type Key [KeySize]byte

// Bytes returns a copy of the key.
func (k Key) Bytes() []byte {
	b := make([]byte, KeySize)
	copy(b, k[:])
	return b
}

// Generate returns a new random key.
func Generate() (Key, error) {
	var k Key
	if _, err := rand.Read(k[:]); err != nil {
		return Key{}, fmt.Errorf("generating key: %w", err)
	}
	return k, nil
}

// Manager loads and creates store keys.
type Manager struct {
	provider  kv.Provider
	namespace string
	logger    *slog.Logger

	lockMu sync.Mutex
	locks  map[string]*storeLock
}

type storeLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager returns a Manager keeping key records under namespace in provider.
// An empty namespace uses DefaultNamespace.
func NewManager(provider kv.Provider, namespace string) *Manager {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Manager{
		provider:  provider,
		namespace: namespace,
		logger:    slog.Default().With("component", "secret"),
		locks:     make(map[string]*storeLock),
	}
}

// lock serializes key creation for storeID. The entry is dropped once no
// caller holds or waits for it.
func (m *Manager) lock(storeID string) (unlock func()) {
	m.lockMu.Lock()
	l, ok := m.locks[storeID]
	if !ok {
		l = &storeLock{}
		m.locks[storeID] = l
	}
	l.refs++
	m.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		m.lockMu.Lock()
		defer m.lockMu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(m.locks, storeID)
		}
	}
}

// Reserves reports whether name is the key namespace or one of the record
// namespaces below it.
func (m *Manager) Reserves(name string) bool {
	return name == m.namespace || strings.HasPrefix(name, m.namespace+"/")
}

// RecordNamespace returns the namespace holding the key record of storeID.
func (m *Manager) RecordNamespace(storeID string) kv.Namespace {
	return kv.Namespace{Name: m.namespace + "/" + storeID, Mode: kv.ModePrivate}
}

// openRecords opens the obfuscated store holding the key record of storeID.
func (m *Manager) openRecords(ctx context.Context, storeID string) (*prefs.Store, error) {
	ns := m.RecordNamespace(storeID)
	backing, err := m.provider.Open(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("opening key namespace: %w", err)
	}
	c, err := NewSymmetricCodec(ObfuscationKey, ns.ID())
	if err != nil {
		return nil, err
	}
	return prefs.New(backing, c, nil), nil
}

// NewSymmetricCodec returns the AES codec used by symmetric stores: names
// under a fixed IV derived from identity, values under random IVs.
func NewSymmetricCodec(key []byte, identity string) (*codec.Codec, error) {
	names, err := cipher.NewFixedIVText(key, cipher.DeriveNameIV(identity))
	if err != nil {
		return nil, fmt.Errorf("creating name cipher: %w", err)
	}
	values, err := cipher.NewRandomIVText(key)
	if err != nil {
		return nil, fmt.Errorf("creating value cipher: %w", err)
	}
	return codec.New(names, values), nil
}

// GetOrCreate returns the persisted key of storeID, generating and persisting
// one on first use.
func (m *Manager) GetOrCreate(ctx context.Context, storeID string) (Key, error) {
	defer m.lock(storeID)()

	records, err := m.openRecords(ctx, storeID)
	if err != nil {
		return Key{}, err
	}
	defer records.Close()

	encoded, err := records.GetString(ctx, RecordName, "")
	if err != nil {
		return Key{}, fmt.Errorf("reading key record: %w", err)
	}
	if encoded != "" {
		return decodeKey(encoded)
	}

	key, err := Generate()
	if err != nil {
		return Key{}, err
	}
	if err := records.Edit().PutString(RecordName, string(cipher.EncodeBase64(key[:]))).Commit(ctx); err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrPersist, err)
	}

	m.logger.Debug("created store key", "store", storeID)
	return key, nil
}

func decodeKey(encoded string) (Key, error) {
	raw, err := cipher.DecodeBase64([]byte(encoded))
	if err != nil {
		return Key{}, fmt.Errorf("%w: %w", ErrCorruptKey, err)
	}
	if len(raw) != KeySize {
		return Key{}, fmt.Errorf("%w: %d bytes", ErrCorruptKey, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}
