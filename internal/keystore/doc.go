// Package keystore keeps per-store master keys in the operating system
// keyring (macOS Keychain, Secret Service, Windows Credential Manager, or an
// encrypted file keyring) through github.com/99designs/keyring.
//
// A master key is 32 random bytes stored as the keyring item named after the
// store identity. The keystore tier derives its name and value keys from it
// with HKDF, so the master key itself never leaves this package's callers.
package keystore
