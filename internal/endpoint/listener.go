package endpoint

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/meshsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshsim/internal/message"
)

// deliverTimeout bounds how long one inbound message may take to route.
const deliverTimeout = 5 * time.Second

// Deliverer routes a message that arrived from a physical device into the
// mesh. *mesh.Network implements it.
type Deliverer interface {
	Deliver(ctx context.Context, msg message.Message) error
}

// Logger is the logging interface used by the Listener.
type Logger interface {
	Debug(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}

// Listener subscribes to the inbound topics of every device in a simulation
// and hands decoded messages to a Deliverer.
//
// Inbound topic pattern:
//
//	meshsim/{simulation}/device/+/in
//
// A message whose sender differs from the device ID in its topic is rejected.
type Listener struct {
	sub    Subscriber
	simID  string
	qos    byte
	target Deliverer

	mu      sync.Mutex
	running bool
	logger  Logger
}

// NewListener creates a listener. Call Start to subscribe.
func NewListener(sub Subscriber, simID string, qos byte, target Deliverer) *Listener {
	return &Listener{
		sub:    sub,
		simID:  simID,
		qos:    qos,
		target: target,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the listener.
func (l *Listener) SetLogger(logger Logger) {
	l.mu.Lock()
	l.logger = logger
	l.mu.Unlock()
}

// Topic returns the subscription pattern.
func (l *Listener) Topic() string {
	return mqtt.Topics{}.AllDeviceIn(l.simID)
}

// Start subscribes to inbound device traffic. Starting twice is a no-op.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return nil
	}
	if err := l.sub.Subscribe(l.Topic(), l.qos, l.handle); err != nil {
		return fmt.Errorf("subscribing to %s: %w", l.Topic(), err)
	}
	l.running = true
	return nil
}

// Stop unsubscribes. Stopping a stopped listener is a no-op.
func (l *Listener) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return nil
	}
	l.running = false
	return l.sub.Unsubscribe(l.Topic())
}

func (l *Listener) getLogger() Logger {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.logger
}

// handle is the MQTT message handler. Returned errors are logged by the
// MQTT client.
func (l *Listener) handle(topic string, payload []byte) error {
	simID, deviceID, direction, err := mqtt.ParseDeviceTopic(topic)
	if err != nil {
		return err
	}
	if simID != l.simID || direction != mqtt.DirectionIn {
		return fmt.Errorf("%w: %s", ErrWrongSimulation, topic)
	}

	msg, err := message.Decode(payload)
	if err != nil {
		return fmt.Errorf("device %d: %w", deviceID, err)
	}
	if msg.Sender != deviceID {
		return fmt.Errorf("%w: topic device %d, sender %d", ErrSenderMismatch, deviceID, msg.Sender)
	}

	l.getLogger().Debug("inbound message", "device_id", deviceID, "type", msg.Type.String())

	ctx, cancel := context.WithTimeout(context.Background(), deliverTimeout)
	defer cancel()
	return l.target.Deliver(ctx, msg)
}
