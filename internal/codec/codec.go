// ABOUTME: Type-tagged codec between logical entries and encrypted stored pairs
// ABOUTME: Stored names carry "<tag>_<name>" under a deterministic cipher

package codec

import (
	"errors"
	"fmt"
	"strings"

	"github.com/2389/sealed-prefs/internal/cipher"
)

// TypeTag identifies the value type of a stored entry.
type TypeTag string

const (
	Boolean   TypeTag = "boolean"
	Int       TypeTag = "int"
	Long      TypeTag = "long"
	Float     TypeTag = "float"
	String    TypeTag = "string"
	StringSet TypeTag = "stringset"
)

// Tags lists every known tag. Order matters for GetAll collisions: later tags win.
var Tags = []TypeTag{Boolean, Int, Long, Float, String, StringSet}

var (
	// ErrUnknownTag is returned when a stored name carries a tag this version does not know.
	ErrUnknownTag = errors.New("unknown type tag")

	// ErrMalformedName is returned when a decrypted stored name has no tag separator.
	ErrMalformedName = errors.New("malformed stored name")

	// ErrParse is returned when a stored value cannot be parsed as its tag's type.
	ErrParse = errors.New("parse failure")

	// ErrTypeMismatch is returned when a Go value does not match the tag it is formatted under.
	ErrTypeMismatch = errors.New("value type does not match tag")

	// ErrDelimiterInValue is returned when a set member contains SetDelimiter.
	ErrDelimiterInValue = errors.New("set member contains the set delimiter")
)

const tagSeparator = "_"

// ParseTag returns the TypeTag named s.
func ParseTag(s string) (TypeTag, error) {
	for _, t := range Tags {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTag, s)
}

// Codec encrypts stored names and values for one store.
type Codec struct {
	Names  cipher.StringCipher
	Values cipher.StringCipher
}

// New returns a Codec using names for stored names and values for stored values.
func New(names, values cipher.StringCipher) *Codec {
	return &Codec{Names: names, Values: values}
}

// EncodeName returns the stored name of (tag, name).
func (c *Codec) EncodeName(tag TypeTag, name string) (string, error) {
	stored, err := c.Names.Encrypt(string(tag) + tagSeparator + name)
	if err != nil {
		return "", fmt.Errorf("encrypting name: %w", err)
	}
	return stored, nil
}

// EncodeValue encrypts an already formatted value.
func (c *Codec) EncodeValue(raw string) (string, error) {
	stored, err := c.Values.Encrypt(raw)
	if err != nil {
		return "", fmt.Errorf("encrypting value: %w", err)
	}
	return stored, nil
}

// EncodeEntry returns the stored pair for a formatted value.
func (c *Codec) EncodeEntry(name string, tag TypeTag, raw string) (storedName, storedValue string, err error) {
	if storedName, err = c.EncodeName(tag, name); err != nil {
		return "", "", err
	}
	if storedValue, err = c.EncodeValue(raw); err != nil {
		return "", "", err
	}
	return storedName, storedValue, nil
}

// DecodeName decrypts a stored name and splits it at the first separator.
// An unrecognized tag returns the name together with ErrUnknownTag.
func (c *Codec) DecodeName(storedName string) (string, TypeTag, error) {
	plain, err := c.Names.Decrypt(storedName)
	if err != nil {
		return "", "", fmt.Errorf("decrypting name: %w", err)
	}
	tagStr, name, ok := strings.Cut(plain, tagSeparator)
	if !ok {
		return "", "", ErrMalformedName
	}
	tag, err := ParseTag(tagStr)
	if err != nil {
		return name, "", err
	}
	return name, tag, nil
}

// DecodeValue decrypts a stored value to its formatted string.
func (c *Codec) DecodeValue(storedValue string) (string, error) {
	raw, err := c.Values.Decrypt(storedValue)
	if err != nil {
		return "", fmt.Errorf("decrypting value: %w", err)
	}
	return raw, nil
}

// DecodeEntry reverses EncodeEntry. The formatted value is returned unparsed.
func (c *Codec) DecodeEntry(storedName, storedValue string) (string, TypeTag, string, error) {
	name, tag, err := c.DecodeName(storedName)
	if err != nil {
		return name, tag, "", err
	}
	raw, err := c.DecodeValue(storedValue)
	if err != nil {
		return name, tag, "", err
	}
	return name, tag, raw, nil
}
