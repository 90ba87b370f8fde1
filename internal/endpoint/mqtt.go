package endpoint

import (
	"context"
	"fmt"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshsim/internal/message"
)

// Publisher is the subset of *mqtt.Client used to send device traffic.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Subscriber is the subset of *mqtt.Client used to receive device traffic.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// MQTT sends a device's messages to its physical counterpart over MQTT.
//
// Each message is JSON-encoded and published on the device's outbound topic:
//
//	meshsim/{simulation}/device/{id}/out
type MQTT struct {
	pub   Publisher
	topic string
	qos   byte
}

// NewMQTT creates an endpoint for deviceID within simulation simID.
func NewMQTT(pub Publisher, simID string, deviceID int, qos byte) *MQTT {
	return &MQTT{
		pub:   pub,
		topic: mqtt.Topics{}.DeviceOut(simID, deviceID),
		qos:   qos,
	}
}

// Topic returns the topic messages are published on.
func (e *MQTT) Topic() string { return e.topic }

// Send encodes msg and publishes it.
func (e *MQTT) Send(ctx context.Context, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := message.Encode(msg)
	if err != nil {
		return err
	}
	if err := e.pub.Publish(e.topic, payload, e.qos, false); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSendFailed, e.topic, err)
	}
	return nil
}

// MQTTTransport hands out MQTT endpoints for one simulation.
type MQTTTransport struct {
	pub   Publisher
	simID string
	qos   byte
}

// NewMQTTTransport creates a transport publishing through pub.
func NewMQTTTransport(pub Publisher, simID string, qos byte) *MQTTTransport {
	return &MQTTTransport{pub: pub, simID: simID, qos: qos}
}

// Endpoint returns the endpoint for deviceID.
func (t *MQTTTransport) Endpoint(deviceID int) device.Endpoint {
	return NewMQTT(t.pub, t.simID, deviceID, t.qos)
}
