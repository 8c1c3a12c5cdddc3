// ABOUTME: Encryption tiers, their persisted names and the downgrade table
// ABOUTME: Tiers are ordered strongest (keystore) to weakest (plaintext)

package tier

import (
	"errors"
	"fmt"
	"strings"
)

// Tier is the encryption strength of a store.
type Tier int

const (
	HardwareKeystore Tier = iota
	SymmetricSoftware
	Plaintext
)

// ErrUnknownTier is returned when a tier name cannot be parsed.
var ErrUnknownTier = errors.New("unknown encryption tier")

var names = map[Tier]string{
	HardwareKeystore:  "KEYSTORE",
	SymmetricSoftware: "SYMMETRIC",
	Plaintext:         "NONE",
}

var downgrades = map[Tier]Tier{
	HardwareKeystore:  SymmetricSoftware,
	SymmetricSoftware: Plaintext,
	Plaintext:         Plaintext,
}

// All lists every tier, strongest first.
func All() []Tier {
	return []Tier{HardwareKeystore, SymmetricSoftware, Plaintext}
}

// String returns the persisted name of t.
func (t Tier) String() string {
	if n, ok := names[t]; ok {
		return n
	}
	return fmt.Sprintf("Tier(%d)", int(t))
}

// Downgrade returns the next weaker tier. Plaintext downgrades to itself.
func Downgrade(t Tier) Tier {
	if next, ok := downgrades[t]; ok {
		return next
	}
	return Plaintext
}

// ParseTier parses a persisted tier name, ignoring case and surrounding space.
func ParseTier(s string) (Tier, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for t, n := range names {
		if n == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTier, s)
}
