// Package tier picks and pins the encryption tier of each store.
//
// Three tiers exist, strongest first: KEYSTORE keeps a master key in the OS
// keyring, SYMMETRIC keeps an AES-128 key in an obfuscated key namespace, and
// NONE stores plaintext. A Selector opens a new store at the strongest tier
// that works, downgrading on failure, and records the tier it reached.
//
// Once recorded the tier is fixed. Reopening a store tries only the recorded
// tier and fails with ErrFixedTierUnavailable rather than downgrading, since a
// weaker tier could not read the existing entries and would silently write
// plaintext next to them.
//
// When recording the tier fails, Open still returns the usable store along
// with an error wrapping ErrPersist. The next Open rediscovers the tier.
//
// Aliases optionally replace namespace names with random UUIDs so that the
// backing store does not reveal which stores exist.
package tier
