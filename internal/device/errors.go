package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a MAC address does not exist in the registry.
	ErrNotFound = errors.New("device: not found")

	// ErrInvalidMAC is returned when a MAC address fails validation.
	ErrInvalidMAC = errors.New("device: invalid mac address")

	// ErrInvalidStatus is returned when a stored manufacturer status is not
	// one of the recognised values. This indicates storage corruption and is
	// never silently defaulted.
	ErrInvalidStatus = errors.New("device: invalid manufacturer status")
)
