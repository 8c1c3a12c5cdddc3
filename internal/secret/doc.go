// Package secret manages the symmetric key of each encrypted store.
//
// Manager.GetOrCreate returns the 16-byte key for a store identity. The key
// is kept in its own namespace, <key namespace>/<store id>, under the record
// name "secret_key" as base64. That namespace is itself an encrypted
// preference store, keyed with ObfuscationKey.
//
// ObfuscationKey is compiled into the binary. It keeps key records from being
// readable at a glance; it does not make them secret. Anyone with the binary
// and the backing store can recover every symmetric key.
//
// The read-generate-write sequence runs under a per-store lock, so concurrent
// first opens of one store all observe the same persisted key. A key that
// could not be persisted is never returned: the caller gets ErrPersist.
package secret
