// ABOUTME: Function composition for byte pipelines and the StringCipher adapter
// ABOUTME: Builds encode-after-encrypt and decrypt-after-decode pipelines

package cipher

// Func is one step of a byte pipeline.
type Func func([]byte) ([]byte, error)

// Compose returns f after g: x -> f(g(x)). An error from g stops the pipeline.
func Compose(f, g Func) Func {
	return func(x []byte) ([]byte, error) {
		y, err := g(x)
		if err != nil {
			return nil, err
		}
		return f(y)
	}
}

// StringCipher encrypts and decrypts text. Implementations are safe for
// concurrent use.
type StringCipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Text is a StringCipher built from two byte pipelines. Strings are treated as
// UTF-8 bytes in both directions.
type Text struct {
	encrypt Func
	decrypt Func
}

// NewText returns a StringCipher running encrypt and decrypt over the string bytes.
func NewText(encrypt, decrypt Func) *Text {
	return &Text{encrypt: encrypt, decrypt: decrypt}
}

// Encrypt runs the encrypt pipeline.
func (t *Text) Encrypt(plaintext string) (string, error) {
	out, err := t.encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Decrypt runs the decrypt pipeline.
func (t *Text) Decrypt(ciphertext string) (string, error) {
	out, err := t.decrypt([]byte(ciphertext))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NewRandomIVText returns base64(EncryptRandomIV(text)) and its inverse.
func NewRandomIVText(key []byte) (*Text, error) {
	c, err := NewRandomIV(key)
	if err != nil {
		return nil, err
	}
	return NewText(
		Compose(EncodeBase64Func, c.Encrypt),
		Compose(c.Decrypt, DecodeBase64),
	), nil
}

// NewFixedIVText returns base64(EncryptFixedIV(text)) and its inverse.
func NewFixedIVText(key, iv []byte) (*Text, error) {
	c, err := NewFixedIV(key, iv)
	if err != nil {
		return nil, err
	}
	return NewText(
		Compose(EncodeBase64Func, c.Encrypt),
		Compose(c.Decrypt, DecodeBase64),
	), nil
}

type identity struct{}

func (identity) Encrypt(s string) (string, error) { return s, nil }
func (identity) Decrypt(s string) (string, error) { return s, nil }

// Identity passes text through unchanged. The plaintext tier uses it so that
// every tier shares one codec.
var Identity StringCipher = identity{}
