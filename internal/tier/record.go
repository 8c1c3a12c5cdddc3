// ABOUTME: Persisted record of the tier chosen for each store
// ABOUTME: Stored unencrypted as encrypt_type/<store id> in the tier namespace

package tier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/2389/sealed-prefs/internal/kv"
	"github.com/2389/sealed-prefs/internal/secret"
)

// DefaultNamespace holds the tier records.
const DefaultNamespace = "sealed-prefs.tiers"

// RecordKey prefixes every tier record key.
const RecordKey = "encrypt_type"

// ErrPersist is returned when a tier record could not be written.
var ErrPersist = secret.ErrPersist

// Record reads and writes tier records.
type Record struct {
	provider kv.Provider
	ns       kv.Namespace
	logger   *slog.Logger
}

// NewRecord keeps tier records in namespace of provider. An empty namespace
// uses DefaultNamespace.
func NewRecord(provider kv.Provider, namespace string) *Record {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Record{
		provider: provider,
		ns:       kv.Namespace{Name: namespace, Mode: kv.ModePrivate},
		logger:   slog.Default().With("component", "tier.record"),
	}
}

// Namespace returns the name of the namespace holding the records.
func (r *Record) Namespace() string {
	return r.ns.Name
}

func recordKey(storeID string) string {
	return RecordKey + "/" + storeID
}

// Load returns the recorded tier of storeID and whether one exists.
func (r *Record) Load(ctx context.Context, storeID string) (Tier, bool, error) {
	store, err := r.provider.Open(ctx, r.ns)
	if err != nil {
		return 0, false, fmt.Errorf("opening tier records: %w", err)
	}
	v, ok, err := store.Get(ctx, recordKey(storeID))
	if err != nil {
		return 0, false, fmt.Errorf("reading tier record: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	t, err := ParseTier(v)
	if err != nil {
		return 0, false, fmt.Errorf("reading tier record: %w", err)
	}
	return t, true, nil
}

// Save records t for storeID synchronously. Failures wrap ErrPersist.
func (r *Record) Save(ctx context.Context, storeID string, t Tier) error {
	store, err := r.provider.Open(ctx, r.ns)
	if err != nil {
		return fmt.Errorf("%w: opening tier records: %w", ErrPersist, err)
	}
	if err := store.Edit().PutString(recordKey(storeID), t.String()).Commit(ctx); err != nil {
		return fmt.Errorf("%w: writing tier record: %w", ErrPersist, err)
	}
	r.logger.Debug("recorded tier", "store", storeID, "tier", t)
	return nil
}
