// Package cipher provides the encryption primitives used by the preference stores.
//
// # Primitives
//
//   - AES-128-CBC with PKCS#7 padding and a fresh random IV per call
//     (EncryptRandomIV / DecryptRandomIV). The IV is prepended to the output.
//   - AES-128-CBC with a caller supplied IV (EncryptFixedIV / DecryptFixedIV).
//     Identical input always produces identical output, which is what allows
//     stored names to be looked up without decrypting every entry.
//   - XChaCha20-Poly1305 (NewAEADText) for values of keystore-backed stores.
//   - HKDF-SHA256 subkey derivation (DeriveSubkey).
//   - Standard base64 as the bridge between ciphertext and the string-only
//     backing stores (EncodeBase64 / DecodeBase64).
//
// # Composition
//
// Byte transformations have the type Func and can be chained with Compose:
//
//	encrypt := cipher.Compose(cipher.EncodeBase64Func, randomIV.Encrypt)
//	decrypt := cipher.Compose(randomIV.Decrypt, cipher.DecodeBase64)
//
// StringCipher adapts a pair of such pipelines to string input and output.
// NewRandomIVText and NewFixedIVText build the two pipelines used for values
// and names respectively.
//
// # Fixed IV
//
// The fixed IV for a store is derived from the store identity with
// DeriveNameIV, never from the individual entry. Reusing one (key, IV) pair
// across the names of a single store reveals common prefixes between names;
// that is accepted in exchange for deterministic lookups.
//
// # Concurrency
//
// None of the types in this package hold mutable cipher state. A block mode is
// created for every call on top of a stateless cipher.Block, so values may be
// shared between goroutines.
package cipher
