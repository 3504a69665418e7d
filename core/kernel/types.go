package kernel

import (
	"encoding/hex"
	"fmt"

	cerrors "banyan/core/errors"
)

// Keycode is the opaque five-character identifier naming a module. The
// registry assigns no meaning to its contents beyond the character set.
type Keycode [5]byte

// ParseKeycode validates and converts a string keycode. Exactly five
// characters from [A-Z0-9_] are accepted.
func ParseKeycode(s string) (Keycode, error) {
	var k Keycode
	if len(s) != len(k) {
		return k, fmt.Errorf("keycode %q: must be %d characters: %w", s, len(k), cerrors.ErrInvalidKeycode)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') && c != '_' {
			return k, fmt.Errorf("keycode %q: character %q not allowed: %w", s, c, cerrors.ErrInvalidKeycode)
		}
		k[i] = c
	}
	return k, nil
}

// MustKeycode is ParseKeycode for static keycodes; it panics on invalid
// input.
func MustKeycode(s string) Keycode {
	k, err := ParseKeycode(s)
	if err != nil {
		panic(err)
	}
	return k
}

func (k Keycode) String() string {
	return string(k[:])
}

// Address is an opaque 32-byte principal identifier. The zero value is the
// null address and is rejected wherever an address is stored.
type Address [32]byte

// AddressOf builds an Address from raw bytes, truncating past 32.
func AddressOf(b []byte) Address {
	var a Address
	copy(a[:], b)
	return a
}

// IsZero reports whether the address is the null address.
func (a Address) IsZero() bool {
	return a == Address{}
}

// String renders the address as hex for logs and events.
func (a Address) String() string {
	return hex.EncodeToString(a[:])
}
