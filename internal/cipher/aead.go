// ABOUTME: XChaCha20-Poly1305 value cipher and HKDF subkey derivation
// ABOUTME: Used by keystore-backed stores whose master key lives in the OS keyring

package cipher

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// AEADKeySize is the XChaCha20-Poly1305 key length in bytes.
const AEADKeySize = chacha20poly1305.KeySize

// DeriveSubkey expands master into an n-byte key bound to info.
func DeriveSubkey(master []byte, info string, n int) ([]byte, error) {
	if len(master) == 0 {
		return nil, ErrInvalidKeyLength
	}
	key := make([]byte, n)
	if _, err := io.ReadFull(hkdf.New(sha256.New, master, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving subkey %q: %w", info, err)
	}
	return key, nil
}

// NewAEADText returns a StringCipher producing base64(nonce || sealed) with
// XChaCha20-Poly1305 and a random 24-byte nonce per call. additional is bound
// to every ciphertext, typically the store identity.
func NewAEADText(key []byte, additional string) (*Text, error) {
	if len(key) != AEADKeySize {
		return nil, fmt.Errorf("%w: xchacha20 needs %d bytes", ErrInvalidKeyLength, AEADKeySize)
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("creating aead: %w", err)
	}
	ad := []byte(additional)

	seal := func(plaintext []byte) ([]byte, error) {
		nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
		if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
			return nil, fmt.Errorf("generating nonce: %w", err)
		}
		return aead.Seal(nonce, nonce, plaintext, ad), nil
	}
	open := func(blob []byte) ([]byte, error) {
		if len(blob) < aead.NonceSize() {
			return nil, ErrInvalidIVLength
		}
		plaintext, err := aead.Open(nil, blob[:aead.NonceSize()], blob[aead.NonceSize():], ad)
		if err != nil {
			return nil, ErrDecryption
		}
		return plaintext, nil
	}

	return NewText(
		Compose(EncodeBase64Func, seal),
		Compose(open, DecodeBase64),
	), nil
}
