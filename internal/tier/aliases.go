// ABOUTME: Maps logical namespaces to random backing names
// ABOUTME: Hides store names from the backing store behind UUIDs

package tier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/prefs"
	"github.com/2389/sealed-prefs/internal/secret"
)

// DefaultAliasNamespace holds the alias registry.
const DefaultAliasNamespace = "sealed-prefs.aliases"

// Aliases assigns each logical namespace a random backing name on first use.
// The registry is an obfuscated store keyed by the logical namespace ID.
type Aliases struct {
	provider kv.Provider
	ns       kv.Namespace
	logger   *slog.Logger
}

// NewAliases keeps the registry in namespace of provider. An empty namespace
// uses DefaultAliasNamespace.
func NewAliases(provider kv.Provider, namespace string) *Aliases {
	if namespace == "" {
		namespace = DefaultAliasNamespace
	}
	return &Aliases{
		provider: provider,
		ns:       kv.Namespace{Name: namespace, Mode: kv.ModePrivate},
		logger:   slog.Default().With("component", "tier.aliases"),
	}
}

// Namespace returns the name of the alias registry namespace.
func (a *Aliases) Namespace() string {
	return a.ns.Name
}

func (a *Aliases) registry(ctx context.Context) (*prefs.Store, error) {
	backing, err := a.provider.Open(ctx, a.ns)
	if err != nil {
		return nil, fmt.Errorf("opening alias registry: %w", err)
	}
	c, err := secret.NewSymmetricCodec(secret.ObfuscationKey, a.ns.ID())
	if err != nil {
		return nil, err
	}
	return prefs.New(backing, c, nil), nil
}

// Lookup returns the backing namespace of ns if one was assigned.
func (a *Aliases) Lookup(ctx context.Context, ns kv.Namespace) (kv.Namespace, bool, error) {
	reg, err := a.registry(ctx)
	if err != nil {
		return kv.Namespace{}, false, err
	}
	defer reg.Close()

	alias, err := reg.GetString(ctx, ns.ID(), "")
	if err != nil {
		return kv.Namespace{}, false, fmt.Errorf("reading alias: %w", err)
	}
	if alias == "" {
		return kv.Namespace{}, false, nil
	}
	return kv.Namespace{Name: alias, Mode: ns.Mode}, true, nil
}

// Resolve returns the backing namespace of ns, assigning a new UUID on first
// use. Callers serialize Resolve per namespace.
func (a *Aliases) Resolve(ctx context.Context, ns kv.Namespace) (kv.Namespace, error) {
	if backing, ok, err := a.Lookup(ctx, ns); err != nil || ok {
		return backing, err
	}

	reg, err := a.registry(ctx)
	if err != nil {
		return kv.Namespace{}, err
	}
	defer reg.Close()

	alias := uuid.NewString()
	if err := reg.Edit().PutString(ns.ID(), alias).Commit(ctx); err != nil {
		return kv.Namespace{}, fmt.Errorf("%w: writing alias: %w", ErrPersist, err)
	}
	a.logger.Debug("assigned namespace alias", "namespace", ns.Name)
	return kv.Namespace{Name: alias, Mode: ns.Mode}, nil
}
