package message

import (
	"fmt"
	"strings"
)

// Type is the tag that determines how a receiving device reacts to a message.
type Type uint8

// Message types. The set is closed: Decode rejects anything else.
const (
	// TypeExecute asks the physical device to run one round of its program.
	TypeExecute Type = iota + 1

	// TypeResult carries a value computed by the physical device.
	TypeResult

	// TypeShow carries a locally computed value the physical device should display.
	TypeShow

	// TypeStatus carries the current status blob of a device.
	TypeStatus

	// TypeID announces a device's identity together with its status.
	TypeID

	// TypeLeaveLightweight asks a lightweight device to return to remote execution.
	TypeLeaveLightweight
)

var typeNames = map[Type]string{
	TypeExecute:          "execute",
	TypeResult:           "result",
	TypeShow:             "show",
	TypeStatus:           "status",
	TypeID:               "id",
	TypeLeaveLightweight: "leave_lightweight",
}

// String returns the wire name of the type.
func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(t))
}

// Valid reports whether t is a member of the protocol.
func (t Type) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseType converts a wire name to a Type.
func ParseType(s string) (Type, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownType, s)
}

// Status is the free-form status blob owned by a device.
// The registry never inspects it; it only moves it during replacement.
type Status map[string]any

// Clone returns a deep copy of the status.
func (s Status) Clone() Status {
	if s == nil {
		return nil
	}
	return Status(deepCopyMap(s))
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case Status:
		return Status(deepCopyMap(val))
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		return v
	}
}

// Message is an immutable value exchanged between devices.
//
// Construct messages with the New* helpers; they always produce a value that
// passes Validate.
type Message struct {
	Sender  int
	Type    Type
	Payload any
}

// NewExecute creates an Execute message.
func NewExecute(sender int) Message {
	return Message{Sender: sender, Type: TypeExecute}
}

// NewResult creates a Result message carrying value.
func NewResult(sender int, value any) Message {
	return Message{Sender: sender, Type: TypeResult, Payload: value}
}

// NewShow creates a Show message carrying value.
func NewShow(sender int, value any) Message {
	return Message{Sender: sender, Type: TypeShow, Payload: value}
}

// NewStatus creates a Status message. The status is copied.
func NewStatus(sender int, status Status) Message {
	return Message{Sender: sender, Type: TypeStatus, Payload: nonNilStatus(status)}
}

// NewIdentity creates an ID (identity announce) message. The status is copied.
func NewIdentity(sender int, status Status) Message {
	return Message{Sender: sender, Type: TypeID, Payload: nonNilStatus(status)}
}

// NewLeaveLightweight creates a LeaveLightweight message.
func NewLeaveLightweight(sender int) Message {
	return Message{Sender: sender, Type: TypeLeaveLightweight}
}

func nonNilStatus(status Status) Status {
	if status == nil {
		return Status{}
	}
	return status.Clone()
}

// Validate checks the type/payload combination.
func (m Message) Validate() error {
	switch m.Type {
	case TypeExecute, TypeLeaveLightweight:
		if m.Payload != nil {
			return fmt.Errorf("%w: %s carries no payload", ErrInvalidPayload, m.Type)
		}
	case TypeResult, TypeShow:
		if m.Payload == nil {
			return fmt.Errorf("%w: %s requires a result value", ErrInvalidPayload, m.Type)
		}
	case TypeStatus, TypeID:
		if _, ok := m.Payload.(Status); !ok {
			return fmt.Errorf("%w: %s requires a status payload, got %T", ErrInvalidPayload, m.Type, m.Payload)
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnknownType, uint8(m.Type))
	}
	return nil
}

// StatusPayload returns the status carried by a Status or ID message.
func (m Message) StatusPayload() (Status, bool) {
	s, ok := m.Payload.(Status)
	if !ok {
		return nil, false
	}
	return s.Clone(), true
}

// String returns a compact human-readable form for logs.
func (m Message) String() string {
	if m.Payload == nil {
		return fmt.Sprintf("%s from %d", m.Type, m.Sender)
	}
	return fmt.Sprintf("%s from %d: %v", m.Type, m.Sender, m.Payload)
}
