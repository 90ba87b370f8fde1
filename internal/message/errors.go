package message

import "errors"

// Domain errors for the message package.
var (
	// ErrUnknownType is returned when a type tag is not part of the protocol.
	ErrUnknownType = errors.New("message: unknown type")

	// ErrInvalidPayload is returned when a payload does not match its type.
	ErrInvalidPayload = errors.New("message: invalid payload")

	// ErrMalformed is returned when wire data cannot be decoded.
	ErrMalformed = errors.New("message: malformed")
)
