// ABOUTME: Tier selection state machine: discover and record on first open,
// ABOUTME: reopen at the recorded tier afterwards with no downgrade

package tier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/prefs"
)

var (
	// ErrFixedTierUnavailable is returned when a store cannot be opened at its
	// recorded tier. No other tier is tried.
	ErrFixedTierUnavailable = errors.New("recorded encryption tier unavailable")

	// ErrNoOpener is returned when no Opener is configured for a tier.
	ErrNoOpener = errors.New("no opener for tier")

	// ErrReservedNamespace is returned for store names that collide with the
	// namespaces holding tier records, key records or aliases.
	ErrReservedNamespace = errors.New("namespace is reserved")
)

// reserver is implemented by openers that keep records in namespaces of
// their own.
type reserver interface {
	Reserves(name string) bool
}

// SelectorConfig configures a Selector.
type SelectorConfig struct {
	// Top is the first tier tried for a new store.
	Top     Tier
	Openers map[Tier]Opener
	Record  *Record
	// Aliases, when set, replaces each namespace name with a random alias
	// before it reaches the backing store.
	Aliases *Aliases
}

// Selector opens stores at the strongest available tier and keeps them there.
type Selector struct {
	top     Tier
	openers map[Tier]Opener
	record  *Record
	aliases *Aliases
	logger  *slog.Logger

	lockMu sync.Mutex
	locks  map[string]*namespaceLock
}

type namespaceLock struct {
	mu   sync.Mutex
	refs int
}

// NewSelector returns a Selector for cfg.
func NewSelector(cfg SelectorConfig) *Selector {
	return &Selector{
		top:     cfg.Top,
		openers: cfg.Openers,
		record:  cfg.Record,
		aliases: cfg.Aliases,
		logger:  slog.Default().With("component", "tier"),
		locks:   make(map[string]*namespaceLock),
	}
}

// lock serializes work on id. The entry is dropped once no caller holds or
// waits for it.
func (s *Selector) lock(id string) (unlock func()) {
	s.lockMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &namespaceLock{}
		s.locks[id] = l
	}
	l.refs++
	s.lockMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()

		s.lockMu.Lock()
		defer s.lockMu.Unlock()
		if l.refs--; l.refs == 0 {
			delete(s.locks, id)
		}
	}
}

// checkReserved rejects names that would share a backing namespace with the
// selector's own records.
func (s *Selector) checkReserved(ns kv.Namespace) error {
	reserved := ns.Name == s.record.Namespace() || ns.Name == DefaultAliasNamespace
	if s.aliases != nil && ns.Name == s.aliases.Namespace() {
		reserved = true
	}
	for _, o := range s.openers {
		if r, ok := o.(reserver); ok && r.Reserves(ns.Name) {
			reserved = true
		}
	}
	if reserved {
		return fmt.Errorf("%w: %q", ErrReservedNamespace, ns.Name)
	}
	return nil
}

func (s *Selector) openAt(ctx context.Context, t Tier, ns kv.Namespace) (prefs.Preferences, error) {
	o, ok := s.openers[t]
	if !ok || o == nil {
		return nil, fmt.Errorf("%w %s", ErrNoOpener, t)
	}
	return o.Open(ctx, ns)
}

// Open returns the store for ns.
//
// Names used for tier records, key records or aliases are rejected with
// ErrReservedNamespace. If a tier is recorded for ns the store is opened at
// that tier only, and any failure is returned wrapped in
// ErrFixedTierUnavailable. Otherwise tiers are
// tried from Top downwards until one opens; that tier is then recorded. If
// recording fails the opened store is returned together with an error
// wrapping ErrPersist.
func (s *Selector) Open(ctx context.Context, ns kv.Namespace) (prefs.Preferences, error) {
	if err := ns.Validate(); err != nil {
		return nil, err
	}
	if err := s.checkReserved(ns); err != nil {
		return nil, err
	}

	defer s.lock(ns.ID())()

	backing := ns
	if s.aliases != nil {
		var err error
		if backing, err = s.aliases.Resolve(ctx, ns); err != nil {
			return nil, err
		}
	}
	storeID := backing.ID()

	recorded, ok, err := s.record.Load(ctx, storeID)
	if err != nil {
		return nil, err
	}
	if ok {
		p, err := s.openAt(ctx, recorded, backing)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrFixedTierUnavailable, recorded, err)
		}
		return p, nil
	}

	t := s.top
	var p prefs.Preferences
	for {
		p, err = s.openAt(ctx, t, backing)
		if err == nil {
			break
		}
		if t == Plaintext {
			return nil, fmt.Errorf("opening %s store: %w", t, err)
		}
		s.logger.Warn("encryption tier unavailable, downgrading",
			"namespace", ns.Name, "tier", t, "next", Downgrade(t), "error", err)
		t = Downgrade(t)
	}

	s.logger.Info("selected encryption tier", "namespace", ns.Name, "tier", t)
	if err := s.record.Save(ctx, storeID, t); err != nil {
		return p, err
	}
	return p, nil
}

// Tier returns the recorded tier of ns and whether one exists. It never
// assigns aliases or records tiers.
func (s *Selector) Tier(ctx context.Context, ns kv.Namespace) (Tier, bool, error) {
	if err := s.checkReserved(ns); err != nil {
		return 0, false, err
	}
	backing := ns
	if s.aliases != nil {
		var (
			ok  bool
			err error
		)
		backing, ok, err = s.aliases.Lookup(ctx, ns)
		if err != nil || !ok {
			return 0, false, err
		}
	}
	return s.record.Load(ctx, backing.ID())
}
