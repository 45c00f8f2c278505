package device

import (
	"fmt"
	"strings"
)

// MAC address format constants.
const (
	// macLength is the length of a separated MAC address string (six
	// two-character octets plus five separators).
	macLength = 17

	// macOctets is the number of octets in a MAC address.
	macOctets = 6
)

// NormalizeMAC validates a MAC address and converts it to canonical form:
// lower-case with colon separators.
//
// Accepted input uses either ":" or "-" between octets, matching what
// RouterOS controllers send. Anything else is rejected.
//
// Parameters:
//   - raw: MAC address as received (e.g., "AA-BB-CC-DD-EE-FF")
//
// Returns:
//   - string: Canonical MAC (e.g., "aa:bb:cc:dd:ee:ff")
//   - error: ErrInvalidMAC if the input is not a valid MAC address
func NormalizeMAC(raw string) (string, error) {
	mac := strings.ToLower(strings.TrimSpace(raw))

	if len(mac) != macLength {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, raw)
	}
	if strings.Count(mac, ":") != macOctets-1 {
		if strings.Count(mac, "-") != macOctets-1 {
			return "", fmt.Errorf("%w: %q", ErrInvalidMAC, raw)
		}
		mac = strings.ReplaceAll(mac, "-", ":")
	}

	for _, octet := range strings.Split(mac, ":") {
		if len(octet) != 2 || !isHex(octet[0]) || !isHex(octet[1]) {
			return "", fmt.Errorf("%w: %q", ErrInvalidMAC, raw)
		}
	}

	return mac, nil
}

// isHex reports whether b is a lower-case hexadecimal digit.
func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f')
}
