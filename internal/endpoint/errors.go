package endpoint

import "errors"

// Domain-specific errors for endpoints.
var (
	// ErrSendFailed is returned when a message cannot be handed to the transport.
	ErrSendFailed = errors.New("endpoint: send failed")

	// ErrSenderMismatch is returned when an inbound message claims a sender
	// other than the device whose topic it arrived on.
	ErrSenderMismatch = errors.New("endpoint: sender does not match topic")

	// ErrWrongSimulation is returned when an inbound topic belongs to another simulation.
	ErrWrongSimulation = errors.New("endpoint: topic belongs to another simulation")
)
