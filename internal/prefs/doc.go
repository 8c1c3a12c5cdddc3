// Package prefs is the typed, encrypted preference facade.
//
// A Store wraps a kv.Store and a codec.Codec. Every read encrypts the
// requested name under the right tag and looks it up directly; every write
// goes through an Editor that encrypts names and values before staging them
// on the backing editor.
//
// # Reads
//
// Typed getters return the caller's default only when no entry exists. A
// stored value that fails to decrypt or parse is returned as an error, never
// replaced by the default.
//
// GetAll and Entries decrypt every stored entry. Entries with an unknown type
// tag are skipped so that older code can read stores written by newer code;
// all other failures abort the enumeration.
//
// # Writes
//
// Remove stages a delete under every tag in codec.Tags because the store does
// not record which tag a name was last written with. Commit is synchronous
// and returns nil on success. Apply commits on another goroutine and only
// logs failures.
//
// # Listeners
//
// Listeners receive plaintext names. Each registered Listener is wrapped in a
// bridge that decrypts the stored name reported by the backing store; the
// Store keeps the Listener-to-bridge registry so that UnregisterListener
// removes the right bridge.
package prefs
