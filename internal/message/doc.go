// Package message defines the typed messages exchanged between simulated
// devices and their physical counterparts.
//
// A Message carries the sender's device ID, a type tag drawn from a closed
// set, and an optional payload whose shape depends on the type:
//
//	Type              Payload
//	Execute           none
//	Result, Show      result value (any JSON-serialisable value)
//	Status, ID        Status
//	LeaveLightweight  none
//
// The package only defines valid type/payload combinations and the JSON wire
// form. Delivery is the job of a device endpoint (see package endpoint), and
// how a device reacts to each type is defined in package device.
//
// # Usage
//
//	msg := message.NewResult(3, 42.0)
//	data, err := message.Encode(msg)
//	...
//	decoded, err := message.Decode(data)
package message
