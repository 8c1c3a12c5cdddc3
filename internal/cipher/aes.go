// ABOUTME: AES-128-CBC encryption with PKCS#7 padding, random or fixed IV
// ABOUTME: Random IV output is laid out as iv || ciphertext

package cipher

import (
	"bytes"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"fmt"
	"io"
)

const (
	// KeySize is the AES-128 key length in bytes.
	KeySize = 16
	// BlockSize is the AES block length, which is also the IV length.
	BlockSize = aes.BlockSize
)

// EncryptRandomIV encrypts plaintext under key with a freshly generated IV.
//
// The result is 16 bytes of IV followed by the ciphertext, whose length is the
// plaintext length rounded up to the next multiple of 16 (an empty plaintext
// still produces one block).
func EncryptRandomIV(plaintext, key []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, BlockSize, BlockSize+paddedLen(len(plaintext)))
	if _, err := io.ReadFull(rand.Reader, out); err != nil {
		return nil, fmt.Errorf("generating IV: %w", err)
	}

	return append(out, seal(block, out[:BlockSize], plaintext)...), nil
}

// DecryptRandomIV reverses EncryptRandomIV. The first 16 bytes of blob are the IV.
func DecryptRandomIV(blob, key []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < BlockSize {
		return nil, ErrInvalidIVLength
	}
	return open(block, blob[:BlockSize], blob[BlockSize:])
}

// EncryptFixedIV encrypts plaintext under key with the given IV. The IV is not
// included in the output.
func EncryptFixedIV(plaintext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, ErrInvalidIVLength
	}
	return seal(block, iv, plaintext), nil
}

// DecryptFixedIV reverses EncryptFixedIV.
func DecryptFixedIV(ciphertext, key, iv []byte) ([]byte, error) {
	block, err := newBlock(key)
	if err != nil {
		return nil, err
	}
	if len(iv) != BlockSize {
		return nil, ErrInvalidIVLength
	}
	return open(block, iv, ciphertext)
}

// DeriveNameIV returns the fixed IV used for the stored names of one store:
// the first 16 bytes of SHA-256 over the store identity.
func DeriveNameIV(identity string) []byte {
	sum := sha256.Sum256([]byte(identity))
	return sum[:BlockSize]
}

// RandomIV encrypts and decrypts with a per-call random IV under a fixed key.
type RandomIV struct {
	key []byte
}

// NewRandomIV validates key and returns a RandomIV cipher.
func NewRandomIV(key []byte) (*RandomIV, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	return &RandomIV{key: bytes.Clone(key)}, nil
}

// Encrypt implements Func semantics for EncryptRandomIV.
func (c *RandomIV) Encrypt(plaintext []byte) ([]byte, error) {
	return EncryptRandomIV(plaintext, c.key)
}

// Decrypt implements Func semantics for DecryptRandomIV.
func (c *RandomIV) Decrypt(blob []byte) ([]byte, error) {
	return DecryptRandomIV(blob, c.key)
}

// FixedIV encrypts and decrypts with one (key, IV) pair.
type FixedIV struct {
	key []byte
	iv  []byte
}

// NewFixedIV validates key and iv and returns a FixedIV cipher.
func NewFixedIV(key, iv []byte) (*FixedIV, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	if len(iv) != BlockSize {
		return nil, ErrInvalidIVLength
	}
	return &FixedIV{key: bytes.Clone(key), iv: bytes.Clone(iv)}, nil
}

// Encrypt implements Func semantics for EncryptFixedIV.
func (c *FixedIV) Encrypt(plaintext []byte) ([]byte, error) {
	return EncryptFixedIV(plaintext, c.key, c.iv)
}

// Decrypt implements Func semantics for DecryptFixedIV.
func (c *FixedIV) Decrypt(ciphertext []byte) ([]byte, error) {
	return DecryptFixedIV(ciphertext, c.key, c.iv)
}

func newBlock(key []byte) (stdcipher.Block, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKeyLength, err)
	}
	return block, nil
}

func seal(block stdcipher.Block, iv, plaintext []byte) []byte {
	padded := pad(plaintext)
	stdcipher.NewCBCEncrypter(block, iv).CryptBlocks(padded, padded)
	return padded
}

func open(block stdcipher.Block, iv, ciphertext []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%BlockSize != 0 {
		return nil, ErrBlockSizeMismatch
	}
	out := make([]byte, len(ciphertext))
	stdcipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return unpad(out)
}

func paddedLen(n int) int {
	return n + BlockSize - n%BlockSize
}

// pad applies PKCS#7 padding into a new slice.
func pad(b []byte) []byte {
	n := BlockSize - len(b)%BlockSize
	out := make([]byte, len(b), len(b)+n)
	copy(out, b)
	return append(out, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrDecryption
	}
	n := int(b[len(b)-1])
	if n == 0 || n > BlockSize || n > len(b) {
		return nil, ErrDecryption
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, ErrDecryption
		}
	}
	return b[:len(b)-n], nil
}
