package mesh

import "errors"

// Domain-specific errors for the mesh.
var (
	// ErrInvalidTransition is returned when a mode transition is requested
	// for a device that is not in the required mode.
	ErrInvalidTransition = errors.New("mesh: invalid mode transition")

	// ErrMissingTransport is returned by New when no transport is supplied.
	ErrMissingTransport = errors.New("mesh: transport is required")

	// ErrMissingRegistry is returned by New when no registry is supplied.
	ErrMissingRegistry = errors.New("mesh: registry is required")
)
