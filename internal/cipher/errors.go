// ABOUTME: Sentinel errors for cipher and encoding failures
// ABOUTME: Callers match these with errors.Is; they are never swallowed

package cipher

import "errors"

var (
	// ErrInvalidKeyLength is returned when a key is not KeySize bytes long.
	ErrInvalidKeyLength = errors.New("invalid key length: must be 16 bytes")

	// ErrInvalidIVLength is returned when an IV is missing or not BlockSize bytes long.
	ErrInvalidIVLength = errors.New("invalid IV length: must be 16 bytes")

	// ErrBlockSizeMismatch is returned when ciphertext is not a multiple of the block size.
	ErrBlockSizeMismatch = errors.New("ciphertext length must be a multiple of 16")

	// ErrDecryption is returned when ciphertext is malformed, has bad padding or fails authentication.
	ErrDecryption = errors.New("decryption failed: data may be corrupted")

	// ErrEncoding is returned when input is not valid base64.
	ErrEncoding = errors.New("invalid base64 encoding")
)
