package mqtt

import (
	"fmt"
	"strconv"
	"strings"
)

// TopicPrefix is the root of every meshsim topic.
const TopicPrefix = "meshsim"

// Directions of a device topic, seen from the simulator.
const (
	// DirectionOut carries messages from a simulated device to its physical counterpart.
	DirectionOut = "out"

	// DirectionIn carries messages from the physical counterpart back into the mesh.
	DirectionIn = "in"
)

// Topics provides builders for meshsim MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Device topics are scoped by simulation ID so several simulations can share
// a broker:
//
//	topics := mqtt.Topics{}
//	out := topics.DeviceOut("lab", 3)
//	// Returns: "meshsim/lab/device/3/out"
type Topics struct{}

// DeviceOut returns the topic a device publishes to its physical counterpart on.
//
// Example: meshsim/lab/device/3/out
func (Topics) DeviceOut(simID string, deviceID int) string {
	return fmt.Sprintf("%s/%s/device/%d/%s", TopicPrefix, simID, deviceID, DirectionOut)
}

// DeviceIn returns the topic a physical device publishes into the mesh on.
//
// Example: meshsim/lab/device/3/in
func (Topics) DeviceIn(simID string, deviceID int) string {
	return fmt.Sprintf("%s/%s/device/%d/%s", TopicPrefix, simID, deviceID, DirectionIn)
}

// Event returns the topic for simulation events (finalized, replaced, reset).
//
// Example: meshsim/lab/event/replaced
func (Topics) Event(simID, event string) string {
	return fmt.Sprintf("%s/%s/event/%s", TopicPrefix, simID, event)
}

// SystemStatus returns the simulator's online/offline status topic.
//
// Example: meshsim/system/status
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// AllDeviceIn returns a pattern matching inbound traffic for every device.
//
// Pattern: meshsim/lab/device/+/in
func (Topics) AllDeviceIn(simID string) string {
	return fmt.Sprintf("%s/%s/device/+/%s", TopicPrefix, simID, DirectionIn)
}

// ParseDeviceTopic extracts the simulation ID, device ID and direction from
// a device topic built by DeviceOut or DeviceIn.
func ParseDeviceTopic(topic string) (simID string, deviceID int, direction string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 5 || parts[0] != TopicPrefix || parts[2] != "device" {
		return "", 0, "", fmt.Errorf("%w: %q is not a device topic", ErrInvalidTopic, topic)
	}
	if parts[4] != DirectionIn && parts[4] != DirectionOut {
		return "", 0, "", fmt.Errorf("%w: unknown direction %q", ErrInvalidTopic, parts[4])
	}
	id, convErr := strconv.Atoi(parts[3])
	if convErr != nil || id < 0 {
		return "", 0, "", fmt.Errorf("%w: bad device id %q", ErrInvalidTopic, parts[3])
	}
	return parts[1], id, parts[4], nil
}
