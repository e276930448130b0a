package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when registering a device with an ID that already exists.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrStatusNotFound is returned when a device has never reported a status.
	ErrStatusNotFound = errors.New("device: status not found")

	// ErrInvalidDeviceID is returned when a device ID fails format validation.
	ErrInvalidDeviceID = errors.New("device: invalid id")

	// ErrInvalidReading is returned when reading validation fails.
	ErrInvalidReading = errors.New("device: invalid reading")

	// ErrInvalidThreshold is returned when an auto-mode threshold is out of range.
	ErrInvalidThreshold = errors.New("device: invalid threshold")
)
