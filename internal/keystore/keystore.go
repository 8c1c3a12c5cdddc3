// ABOUTME: OS keyring access for per-store master keys
// ABOUTME: Generates a 32-byte key on first use and reloads it afterwards

package keystore

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/99designs/keyring"
)

// MasterKeySize is the length of a master key in bytes.
const MasterKeySize = 32

// DefaultService is the keyring service name used when none is configured.
const DefaultService = "sealed-prefs"

var (
	// ErrUnavailable is returned when no keyring backend can be opened.
	ErrUnavailable = errors.New("keystore unavailable")

	// ErrCorruptKey is returned when a keyring item is not a valid master key.
	ErrCorruptKey = errors.New("stored master key is corrupt")
)

// Config selects and configures keyring backends.
type Config struct {
	Service string
	// Backends restricts the keyring backends tried, e.g. "keychain",
	// "secret-service", "wincred", "file". Empty allows every backend.
	Backends []string
	// FileDir and FilePassword configure the "file" backend.
	FileDir      string
	FilePassword string
}

func (c Config) keyringConfig() keyring.Config {
	service := c.Service
	if service == "" {
		service = DefaultService
	}
	kc := keyring.Config{
		ServiceName:              service,
		KeychainName:             service,
		KeychainTrustApplication: true,
		LibSecretCollectionName:  service,
		WinCredPrefix:            service,
		FileDir:                  c.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(c.FilePassword),
	}
	for _, b := range c.Backends {
		kc.AllowedBackends = append(kc.AllowedBackends, keyring.BackendType(b))
	}
	return kc
}

// KnownBackends lists the backend names accepted in Config.Backends.
func KnownBackends() []string {
	return []string{
		string(keyring.KeychainBackend),
		string(keyring.SecretServiceBackend),
		string(keyring.KWalletBackend),
		string(keyring.WinCredBackend),
		string(keyring.FileBackend),
		string(keyring.PassBackend),
		string(keyring.KeyCtlBackend),
	}
}

// Keystore reads and creates master keys in a keyring.
type Keystore struct {
	ring   keyring.Keyring
	logger *slog.Logger

	mu sync.Mutex
}

// Open opens the configured keyring.
func Open(cfg Config) (*Keystore, error) {
	ring, err := keyring.Open(cfg.keyringConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return New(ring), nil
}

// New wraps an already opened keyring.
func New(ring keyring.Keyring) *Keystore {
	return &Keystore{
		ring:   ring,
		logger: slog.Default().With("component", "keystore"),
	}
}

// MasterKey returns the master key for storeID, creating it on first use.
func (k *Keystore) MasterKey(storeID string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	item, err := k.ring.Get(storeID)
	switch {
	case err == nil:
		if len(item.Data) != MasterKeySize {
			return nil, fmt.Errorf("%w: %d bytes", ErrCorruptKey, len(item.Data))
		}
		return item.Data, nil
	case !errors.Is(err, keyring.ErrKeyNotFound):
		return nil, fmt.Errorf("reading master key: %w", err)
	}

	key := make([]byte, MasterKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating master key: %w", err)
	}
	if err := k.ring.Set(keyring.Item{
		Key:         storeID,
		Data:        key,
		Label:       "sealed-prefs master key",
		Description: "Encryption key for preference store " + storeID,
	}); err != nil {
		return nil, fmt.Errorf("storing master key: %w", err)
	}

	k.logger.Debug("created master key", "store", storeID)
	return key, nil
}

// Remove deletes the master key for storeID. Missing keys are not an error.
func (k *Keystore) Remove(storeID string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if err := k.ring.Remove(storeID); err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("removing master key: %w", err)
	}
	return nil
}
