package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrNotFinalized) {
//	    // topology has not been built yet
//	}
var (
	// ErrAlreadyFinalized is returned by Finalize when called a second time,
	// and by Register or RegisterAndCreate after Finalize.
	ErrAlreadyFinalized = errors.New("device: registry already finalized")

	// ErrNotFinalized is returned by neighbour queries and Replace before Finalize.
	ErrNotFinalized = errors.New("device: registry not finalized")

	// ErrNotAMember is returned by Replace when the old device is not the
	// device currently registered under its ID.
	ErrNotAMember = errors.New("device: not a registry member")

	// ErrDuplicateID is returned by Replace when the replacement carries a
	// different ID that is already held by another device.
	ErrDuplicateID = errors.New("device: duplicate id")

	// ErrInvalidDevice is returned for a nil device, a negative ID, or a
	// factory that ignores the ID it was given.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidTopology is returned by Finalize for an unknown topology kind.
	ErrInvalidTopology = errors.New("device: invalid topology")

	// ErrInvalidMode is returned when a mode value is not recognised.
	ErrInvalidMode = errors.New("device: invalid mode")

	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrNoEndpoint is returned when a device has no endpoint to send through.
	ErrNoEndpoint = errors.New("device: no endpoint")

	// ErrNoExecutor is returned by Lightweight.Execute when no execution
	// adapter was supplied.
	ErrNoExecutor = errors.New("device: no executor")
)
