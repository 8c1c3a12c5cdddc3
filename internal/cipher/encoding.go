// ABOUTME: Base64 bridge between ciphertext bytes and printable text
// ABOUTME: Uses standard padded base64 on a single line

package cipher

import (
	"encoding/base64"
	"fmt"
)

// EncodeBase64 returns the standard base64 encoding of data.
func EncodeBase64(data []byte) []byte {
	out := make([]byte, base64.StdEncoding.EncodedLen(len(data)))
	base64.StdEncoding.Encode(out, data)
	return out
}

// EncodeBase64Func is EncodeBase64 in Func form, for use with Compose.
func EncodeBase64Func(data []byte) ([]byte, error) {
	return EncodeBase64(data), nil
}

// DecodeBase64 decodes standard base64. Malformed input returns ErrEncoding.
func DecodeBase64(data []byte) ([]byte, error) {
	out := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(out, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncoding, err)
	}
	return out[:n], nil
}
