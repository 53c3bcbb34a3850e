package radio

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxAddress is the largest value representable as a 48-bit MAC address.
const MaxAddress uint64 = 0xFFFFFFFFFFFF

// FormatAddress renders a 64-bit address as a colon separated MAC ("AA:BB:CC:DD:EE:FF").
// Addresses wider than 48 bits are rendered as plain hex.
func FormatAddress(address uint64) string {
	if address > MaxAddress {
		return fmt.Sprintf("0x%X", address)
	}

	var b strings.Builder
	for i := 5; i >= 0; i-- {
		fmt.Fprintf(&b, "%02X", byte(address>>(uint(i)*8)))
		if i > 0 {
			b.WriteByte(':')
		}
	}
	return b.String()
}

// ParseAddress accepts "AA:BB:CC:DD:EE:FF", "AA-BB-...", "0xAABBCC" or a decimal number.
func ParseAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty address")
	}

	if i := strings.IndexAny(s, ":-"); i >= 0 {
		parts := strings.Split(s, s[i:i+1])
		if len(parts) != 6 {
			return 0, fmt.Errorf("invalid MAC address %q: expected 6 octets", s)
		}
		var addr uint64
		for _, p := range parts {
			if p == "" {
				return 0, fmt.Errorf("invalid MAC address %q: empty octet", s)
			}
			octet, err := strconv.ParseUint(p, 16, 8)
			if err != nil {
				return 0, fmt.Errorf("invalid MAC address %q: %w", s, err)
			}
			addr = addr<<8 | octet
		}
		return addr, nil
	}

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		addr, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid hex address %q: %w", s, err)
		}
		return addr, nil
	}

	addr, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return addr, nil
}
