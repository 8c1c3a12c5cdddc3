// ABOUTME: Per-tier store constructors: keystore, symmetric and plaintext
// ABOUTME: Each builds the codec for its tier over a backing namespace

package tier

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/2389/sealed-prefs/internal/cipher"
	"github.com/2389/sealed-prefs/internal/codec"
	"github.com/2389/sealed-prefs/internal/keystore"
	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/namecache"
	"github.com/2389/sealed-prefs/internal/prefs"
	"github.com/2389/sealed-prefs/internal/secret"
)

// HKDF info strings for the keystore tier subkeys.
const (
	nameKeyInfo  = "sealed-prefs/v1/names"
	valueKeyInfo = "sealed-prefs/v1/values"
)

// Opener constructs a store at one tier.
type Opener interface {
	Open(ctx context.Context, ns kv.Namespace) (prefs.Preferences, error)
}

// CacheConfig sizes the decrypted-name cache of each opened store.
type CacheConfig struct {
	TTL time.Duration
	Max int
}

func (c CacheConfig) build() *namecache.Cache {
	return namecache.New(c.TTL, c.Max)
}

// PlaintextOpener opens stores without encryption.
type PlaintextOpener struct {
	Provider kv.Provider
	Cache    CacheConfig
}

// Open implements Opener.
func (o *PlaintextOpener) Open(ctx context.Context, ns kv.Namespace) (prefs.Preferences, error) {
	backing, err := o.Provider.Open(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("opening namespace: %w", err)
	}
	return prefs.New(backing, codec.New(cipher.Identity, cipher.Identity), o.Cache.build()), nil
}

// SymmetricOpener opens stores encrypted with AES-128 under a key from Keys.
type SymmetricOpener struct {
	Provider kv.Provider
	Keys     *secret.Manager
	Cache    CacheConfig
}

// Open implements Opener.
func (o *SymmetricOpener) Open(ctx context.Context, ns kv.Namespace) (prefs.Preferences, error) {
	backing, err := o.Provider.Open(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("opening namespace: %w", err)
	}
	key, err := o.Keys.GetOrCreate(ctx, ns.ID())
	if err != nil {
		return nil, fmt.Errorf("loading store key: %w", err)
	}
	c, err := secret.NewSymmetricCodec(key.Bytes(), ns.ID())
	if err != nil {
		return nil, err
	}
	return prefs.New(backing, c, o.Cache.build()), nil
}

// Reserves reports whether name is used for key records.
func (o *SymmetricOpener) Reserves(name string) bool {
	return o.Keys != nil && o.Keys.Reserves(name)
}

// KeystoreOpener opens stores whose keys derive from a master key in the OS
// keyring. Names use AES-128 with a fixed IV, values XChaCha20-Poly1305.
type KeystoreOpener struct {
	Provider kv.Provider
	// Keystore opens the keyring. A successful result is reused.
	Keystore func() (*keystore.Keystore, error)
	Cache    CacheConfig

	mu sync.Mutex
	ks *keystore.Keystore
}

func (o *KeystoreOpener) loadKeystore() (*keystore.Keystore, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ks != nil {
		return o.ks, nil
	}
	if o.Keystore == nil {
		return nil, keystore.ErrUnavailable
	}
	ks, err := o.Keystore()
	if err != nil {
		return nil, err
	}
	o.ks = ks
	return ks, nil
}

// Open implements Opener.
func (o *KeystoreOpener) Open(ctx context.Context, ns kv.Namespace) (prefs.Preferences, error) {
	ks, err := o.loadKeystore()
	if err != nil {
		return nil, err
	}
	// The backing namespace is opened first so a failed open leaves no key
	// behind in the keyring.
	backing, err := o.Provider.Open(ctx, ns)
	if err != nil {
		return nil, fmt.Errorf("opening namespace: %w", err)
	}
	master, err := ks.MasterKey(ns.ID())
	if err != nil {
		return nil, fmt.Errorf("loading master key: %w", err)
	}
	c, err := keystoreCodec(master, ns.ID())
	if err != nil {
		return nil, err
	}
	return prefs.New(backing, c, o.Cache.build()), nil
}

func keystoreCodec(master []byte, identity string) (*codec.Codec, error) {
	nameKey, err := cipher.DeriveSubkey(master, nameKeyInfo, cipher.KeySize)
	if err != nil {
		return nil, err
	}
	valueKey, err := cipher.DeriveSubkey(master, valueKeyInfo, cipher.AEADKeySize)
	if err != nil {
		return nil, err
	}
	names, err := cipher.NewFixedIVText(nameKey, cipher.DeriveNameIV(identity))
	if err != nil {
		return nil, fmt.Errorf("creating name cipher: %w", err)
	}
	values, err := cipher.NewAEADText(valueKey, identity)
	if err != nil {
		return nil, fmt.Errorf("creating value cipher: %w", err)
	}
	return codec.New(names, values), nil
}
