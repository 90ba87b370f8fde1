package mesh

import "time"

// Event types emitted by the Network.
const (
	EventTopologyFinalized = "topology.finalized"
	EventTopologyReset     = "topology.reset"
	EventDeviceReplaced    = "device.replaced"
	EventDeviceResult      = "device.result"
	EventDeviceStatus      = "device.status"
	EventRoundCompleted    = "round.completed"
)

// Event describes something that happened in the mesh.
//
// Fields beyond Type and Timestamp are filled in as relevant:
//   - topology.finalized: Topology, Devices
//   - topology.reset: none
//   - device.replaced: DeviceID, From, Mode
//   - device.result: DeviceID, Mode, Value
//   - device.status: DeviceID, Value (the new status)
//   - round.completed: Devices (executed count), Value (the RoundResult)
type Event struct {
	Type      string    `json:"type"`
	DeviceID  int       `json:"device_id"`
	Mode      string    `json:"mode,omitempty"`
	From      string    `json:"from,omitempty"`
	Value     any       `json:"value,omitempty"`
	Topology  string    `json:"topology,omitempty"`
	Devices   int       `json:"devices,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Observer receives events. Observers run synchronously on the goroutine
// that caused the event, never under a registry lock, and must not block.
type Observer func(Event)
