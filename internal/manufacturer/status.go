package manufacturer

import (
	"time"

	"github.com/lanpulse/lanpulse/internal/device"
)

// DefaultCooldown is how long an error (or stalled pending) lookup must age
// before the device becomes eligible for another attempt.
const DefaultCooldown = 300 * time.Second

// Labels returned to API clients for the non-found states.
const (
	// PendingLabel is the placeholder returned while a lookup has not
	// completed yet.
	PendingLabel = "Looking up..."

	// UnknownLabel is stored and returned for devices no provider could
	// identify. The status column distinguishes it from "not yet looked up".
	UnknownLabel = "Unknown"
)

// Eligible reports whether a new lookup attempt is warranted for dev.
//
// Decision table:
//   - no record (nil)                  -> true, treat as new
//   - found with a non-empty label     -> false, terminal
//   - unknown                          -> false, terminal
//   - error or pending                 -> true once the last attempt is
//     strictly older than cooldown; an attempt with no timestamp is
//     immediately eligible
//
// Pending gets the same cooldown treatment as error: a worker that crashed
// mid-lookup leaves a pending record behind, and that record must not block
// lookups forever. Exactly cooldown elapsed is NOT eligible; eligibility
// requires strictly more.
func Eligible(dev *device.Device, now time.Time, cooldown time.Duration) bool {
	if dev == nil {
		return true
	}

	switch dev.ManufacturerStatus {
	case device.LookupFound:
		// A found status with no label violates the registry invariant;
		// treat it as unresolved rather than trusting it.
		return dev.Manufacturer == nil || *dev.Manufacturer == ""
	case device.LookupUnknown:
		return false
	case device.LookupError, device.LookupPending:
		if dev.ManufacturerLastAttempt == nil {
			return true
		}
		return now.Sub(*dev.ManufacturerLastAttempt) > cooldown
	default:
		return true
	}
}
