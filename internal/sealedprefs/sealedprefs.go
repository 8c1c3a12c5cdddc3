// ABOUTME: Wires configuration into a provider, key managers and tier selector
// ABOUTME: Host is the single entry point programs use to open stores

package sealedprefs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/sealed-prefs/internal/config"
	"github.com/2389/sealed-prefs/internal/keystore"
	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/prefs"
	"github.com/2389/sealed-prefs/internal/secret"
	"github.com/2389/sealed-prefs/internal/tier"
)

// Host owns the backing provider and the selector built from one Config.
type Host struct {
	provider kv.Provider
	selector *tier.Selector
	logger   *slog.Logger
}

// Options overrides parts of the wiring. Zero values use the configuration.
type Options struct {
	// Provider replaces the backend named in the configuration.
	Provider kv.Provider
	// Keystore replaces opening the OS keyring.
	Keystore func() (*keystore.Keystore, error)
}

// New builds a Host from cfg.
func New(ctx context.Context, cfg *config.Config, opts Options) (*Host, error) {
	top, err := tier.ParseTier(cfg.Security.TopTier)
	if err != nil {
		return nil, err
	}

	provider := opts.Provider
	if provider == nil {
		if provider, err = initProvider(ctx, cfg.Store); err != nil {
			return nil, err
		}
	}

	openKeystore := opts.Keystore
	if openKeystore == nil {
		ring := cfg.Security.Keyring
		openKeystore = func() (*keystore.Keystore, error) {
			return keystore.Open(keystore.Config{
				Service:      ring.Service,
				Backends:     ring.Backends,
				FileDir:      ring.FileDir,
				FilePassword: ring.FilePassword,
			})
		}
	}

	cache := tier.CacheConfig{TTL: cfg.Cache.NamesTTL, Max: cfg.Cache.NamesMax}
	selCfg := tier.SelectorConfig{
		Top: top,
		Openers: map[tier.Tier]tier.Opener{
			tier.HardwareKeystore: &tier.KeystoreOpener{
				Provider: provider,
				Keystore: openKeystore,
				Cache:    cache,
			},
			tier.SymmetricSoftware: &tier.SymmetricOpener{
				Provider: provider,
				Keys:     secret.NewManager(provider, cfg.Security.KeyNamespace),
				Cache:    cache,
			},
			tier.Plaintext: &tier.PlaintextOpener{
				Provider: provider,
				Cache:    cache,
			},
		},
		Record: tier.NewRecord(provider, cfg.Security.TierNamespace),
	}
	if cfg.Security.AliasNames {
		selCfg.Aliases = tier.NewAliases(provider, "")
	}

	return &Host{
		provider: provider,
		selector: tier.NewSelector(selCfg),
		logger:   slog.Default().With("component", "sealedprefs"),
	}, nil
}

func initProvider(ctx context.Context, cfg config.StoreConfig) (kv.Provider, error) {
	var (
		p   kv.Provider
		err error
	)
	switch cfg.Backend {
	case config.BackendMemory:
		p = kv.NewMemoryProvider()
	case config.BackendSQLite:
		p, err = kv.NewSQLiteProvider(kv.SQLiteConfig{
			Path:        cfg.Path,
			Driver:      cfg.Driver,
			BusyTimeout: cfg.BusyTimeout,
		})
	case config.BackendFile:
		p, err = kv.NewFileProvider(cfg.Path)
	case config.BackendRedis:
		p, err = kv.NewRedisProvider(ctx, kv.RedisConfig{URL: cfg.RedisURL, Prefix: cfg.RedisPrefix})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("initializing %s store: %w", cfg.Backend, err)
	}
	return p, nil
}

// Namespace returns the namespace for a store name. Shared stores use
// kv.ModeShared, all others kv.ModePrivate.
func Namespace(name string, shared bool) kv.Namespace {
	mode := kv.ModePrivate
	if shared {
		mode = kv.ModeShared
	}
	return kv.Namespace{Name: name, Mode: mode}
}

// Open opens the named store at its tier. A non-nil store may come back with
// an error wrapping tier.ErrPersist; it is usable but its tier was not
// recorded.
func (h *Host) Open(ctx context.Context, ns kv.Namespace) (prefs.Preferences, error) {
	return h.selector.Open(ctx, ns)
}

// Tier reports the recorded tier of ns.
func (h *Host) Tier(ctx context.Context, ns kv.Namespace) (tier.Tier, bool, error) {
	return h.selector.Tier(ctx, ns)
}

// Close releases the backing provider.
func (h *Host) Close() error {
	if err := h.provider.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	h.logger.Debug("closed")
	return nil
}
