package device

import (
	"fmt"
	"time"
)

// LookupStatus is the persisted state of a device's manufacturer lookup.
//
// The status forms a small state machine:
//
//	pending ──▶ found    (a provider returned a vendor name)
//	        ──▶ unknown  (every provider answered, none matched)
//	        ──▶ error    (transport failure or provider rate limit)
//
// Found and unknown are terminal under normal operation. Error (and a
// pending left behind by a crashed lookup) becomes eligible again after
// a cooldown; see the manufacturer package.
type LookupStatus string

// Valid lookup status values, persisted as-is in the devices table.
const (
	LookupPending LookupStatus = "pending"
	LookupFound   LookupStatus = "found"
	LookupUnknown LookupStatus = "unknown"
	LookupError   LookupStatus = "error"
)

// ParseLookupStatus converts a stored string into a LookupStatus.
// An unrecognised value is a storage corruption and is reported as
// ErrInvalidStatus rather than silently defaulted.
func ParseLookupStatus(s string) (LookupStatus, error) {
	switch LookupStatus(s) {
	case LookupPending, LookupFound, LookupUnknown, LookupError:
		return LookupStatus(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Device is a network device observed via DHCP lease assignments.
//
// MAC is the primary key in canonical form (lower-case, colon-separated)
// and is immutable once created. Manufacturer is non-empty when
// ManufacturerStatus is found, and holds the literal "Unknown" when the
// status is unknown.
type Device struct {
	MAC                     string       `json:"mac"`
	Name                    *string      `json:"name"`
	Notify                  bool         `json:"notify"`
	Manufacturer            *string      `json:"manufacturer,omitempty"`
	ManufacturerStatus      LookupStatus `json:"manufacturer_status"`
	ManufacturerLastAttempt *time.Time   `json:"manufacturer_last_attempt,omitempty"`
	FirstSeen               time.Time    `json:"first_seen"`
	LastSeen                time.Time    `json:"last_seen"`
}

// DisplayName returns the stored name, or a fallback when none is set.
func (d *Device) DisplayName(fallback string) string {
	if d.Name != nil && *d.Name != "" {
		return *d.Name
	}
	return fallback
}
