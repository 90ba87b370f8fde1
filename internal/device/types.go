package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/nerrad567/meshsim/internal/message"
)

// Mode is the execution variant of a device.
type Mode uint8

// Execution modes.
const (
	// ModeRemote devices are thin proxies; all execution happens on the
	// physical endpoint.
	ModeRemote Mode = iota + 1

	// ModeLightweight devices execute locally and forward results to the
	// physical endpoint for display.
	ModeLightweight

	// ModeStub devices are inert and ignore all messages. Used in tests and
	// for placeholder nodes.
	ModeStub
)

var modeNames = map[Mode]string{
	ModeRemote:      "remote",
	ModeLightweight: "lightweight",
	ModeStub:        "stub",
}

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if name, ok := modeNames[m]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", uint8(m))
}

// ParseMode converts a configuration name to a Mode.
// "local" and "emulated" are accepted as aliases for lightweight.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "remote":
		return ModeRemote, nil
	case "lightweight", "local", "emulated":
		return ModeLightweight, nil
	case "stub":
		return ModeStub, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMode, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Device is a simulated node with a stable ID, an opaque address, a status
// blob and an execution mode.
//
// Implementations must be pointer types: the registry compares devices by
// identity when checking membership.
type Device interface {
	// ID returns the device's unique, immutable identifier.
	ID() int

	// Address returns the opaque descriptor of the physical counterpart.
	Address() string

	// Mode returns the execution variant.
	Mode() Mode

	// Status returns a deep copy of the device status.
	Status() message.Status

	// SetStatus replaces the device status with a deep copy of s.
	SetStatus(s message.Status)

	// Send delivers msg to the device's physical endpoint.
	Send(ctx context.Context, msg message.Message) error

	// Tell delivers msg to the device and applies its reaction table.
	Tell(ctx context.Context, msg message.Message) error

	// Execute runs one execution step.
	Execute(ctx context.Context) error

	// ShowResult surfaces value through the device's output channel.
	ShowResult(ctx context.Context, value any) error
}

// Endpoint carries messages from a device to its physical counterpart.
type Endpoint interface {
	Send(ctx context.Context, msg message.Message) error
}

// EndpointFunc adapts a function to the Endpoint interface.
type EndpointFunc func(ctx context.Context, msg message.Message) error

// Send calls f(ctx, msg).
func (f EndpointFunc) Send(ctx context.Context, msg message.Message) error {
	return f(ctx, msg)
}

// Factory builds a device for a registry-assigned ID.
type Factory func(id int) Device

// Replacer swaps one registered device for another. *Registry implements it.
type Replacer interface {
	Replace(old, replacement Device) error
}

// Executor is the unit produced by an execution adapter. Each call runs
// the device's program once and returns the value to show.
type Executor interface {
	Execute(ctx context.Context) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context) (any, error)

// Execute calls f(ctx).
func (f ExecutorFunc) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// AdapterBuilder produces an Executor for a lightweight device.
type AdapterBuilder func(d Device) Executor

// Stats holds registry statistics.
type Stats struct {
	TotalDevices int          `json:"total_devices"`
	ByMode       map[Mode]int `json:"by_mode"`
	Edges        int          `json:"edges"`
	Finalized    bool         `json:"finalized"`
	Topology     string       `json:"topology,omitempty"`
}
