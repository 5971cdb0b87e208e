package insteon

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidAddress is returned when an address string cannot be parsed.
var ErrInvalidAddress = errors.New("insteon: invalid address")

// Address is a fixed three-byte Insteon device identifier.
//
// It is comparable and is used as the correlation key between outbound
// commands and the interleaved replies arriving from the network.
type Address [3]byte

// ParseAddress parses the canonical "aa.bb.cc" hex form.
// "aa:bb:cc" and "aabbcc" are accepted as well.
func ParseAddress(s string) (Address, error) {
	var a Address

	clean := strings.NewReplacer(".", "", ":", "").Replace(strings.TrimSpace(s))
	if len(clean) != 6 {
		return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}

	for i := 0; i < 3; i++ {
		b, err := parseHexByte(clean[i*2 : i*2+2])
		if err != nil {
			return a, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		a[i] = b
	}
	return a, nil
}

func parseHexByte(s string) (byte, error) {
	var v byte
	for i := 0; i < 2; i++ {
		c := s[i]
		var n byte
		switch {
		case c >= '0' && c <= '9':
			n = c - '0'
		case c >= 'a' && c <= 'f':
			n = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			n = c - 'A' + 10
		default:
			return 0, ErrInvalidAddress
		}
		v = v<<4 | n
	}
	return v, nil
}

// String returns the canonical "aa.bb.cc" form.
func (a Address) String() string {
	return fmt.Sprintf("%02x.%02x.%02x", a[0], a[1], a[2])
}

// IsZero reports whether the address is all zero bytes.
func (a Address) IsZero() bool {
	return a == Address{}
}
