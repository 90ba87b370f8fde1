package mqtt

import (
	"context"
	"fmt"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/meshsim/internal/infrastructure/config"
)

// Logger is the subset of logging.Logger the client reports through.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives one inbound message. paho runs handlers on its
// own goroutines; a returned error is logged and the message is still acked.
type MessageHandler func(topic string, payload []byte) error

// Client is the simulator's broker connection. Device transports publish
// through it and the listener subscribes through it.
//
// Subscriptions are remembered and replayed after every reconnect, and the
// client announces itself on the retained system status topic.
type Client struct {
	paho     pahomqtt.Client
	qos      byte
	clientID string

	mu        sync.RWMutex
	connected bool
	routes    map[string]route
	onUp      func()
	onDown    func(error)
	log       Logger
}

type route struct {
	qos     byte
	handler MessageHandler
}

// Connect dials the broker from cfg and blocks until the first CONNACK or
// the connect timeout. The broker sees cfg.Broker.ClientID plus a short
// random suffix so two simulator processes never evict each other.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	c := &Client{
		qos:      byte(cfg.QoS),
		clientID: uniqueClientID(cfg.Broker.ClientID),
		routes:   make(map[string]route),
	}

	opts := buildClientOptions(cfg, c.clientID)
	configureLWT(opts, c.clientID)
	opts.SetOnConnectHandler(func(pahomqtt.Client) { c.connectionUp() })
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) { c.connectionDown(err) })
	opts.SetReconnectingHandler(func(pahomqtt.Client, *pahomqtt.ClientOptions) {
		if log := c.logger(); log != nil {
			log.Warn("mqtt reconnecting", "client_id", c.clientID)
		}
	})

	c.paho = pahomqtt.NewClient(opts)
	if err := wait(c.paho.Connect(), defaultConnectTimeout); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The on-connect hook runs asynchronously; mark the state now so callers
	// can subscribe as soon as Connect returns.
	c.setConnected(true)
	return c, nil
}

func (c *Client) connectionUp() {
	c.mu.Lock()
	c.connected = true
	routes := make(map[string]route, len(c.routes))
	for topic, r := range c.routes {
		routes[topic] = r
	}
	up := c.onUp
	c.mu.Unlock()

	for topic, r := range routes {
		c.paho.Subscribe(topic, r.qos, c.dispatch(r.handler))
	}
	c.paho.Publish(Topics{}.SystemStatus(), c.qos, true, buildOnlinePayload(c.clientID))

	if up != nil {
		up()
	}
}

func (c *Client) connectionDown(err error) {
	c.mu.Lock()
	c.connected = false
	down := c.onDown
	c.mu.Unlock()

	if down != nil {
		down(err)
	}
}

func (c *Client) setConnected(v bool) {
	c.mu.Lock()
	c.connected = v
	c.mu.Unlock()
}

// Close announces a graceful offline status and disconnects.
// Closing a client that never connected is a no-op.
func (c *Client) Close() error {
	if c.paho == nil {
		return nil
	}
	if c.IsConnected() {
		tok := c.paho.Publish(Topics{}.SystemStatus(), c.qos, true, buildOfflinePayload(c.clientID))
		tok.WaitTimeout(defaultPublishTimeout)
	}
	c.paho.Disconnect(defaultDisconnectQuiesce)
	c.setConnected(false)
	return nil
}

// HealthCheck reports ErrNotConnected while the broker link is down.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("mqtt health check: %w", err)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected returns the last known connection state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.paho != nil && c.paho.IsConnected()
}

// ClientID returns the ID presented to the broker.
func (c *Client) ClientID() string { return c.clientID }

// QoS returns the configured default QoS.
func (c *Client) QoS() byte { return c.qos }

// SetOnConnect registers fn to run after the initial connect and every reconnect.
func (c *Client) SetOnConnect(fn func()) {
	c.mu.Lock()
	c.onUp = fn
	c.mu.Unlock()
}

// SetOnDisconnect registers fn to run when the connection drops.
func (c *Client) SetOnDisconnect(fn func(err error)) {
	c.mu.Lock()
	c.onDown = fn
	c.mu.Unlock()
}

// SetLogger sets where handler errors and recovered panics are reported.
func (c *Client) SetLogger(log Logger) {
	c.mu.Lock()
	c.log = log
	c.mu.Unlock()
}

func (c *Client) logger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.log
}

// dispatch adapts h to paho's callback shape. A panicking handler is
// recovered so one bad message cannot take down paho's router.
func (c *Client) dispatch(h MessageHandler) pahomqtt.MessageHandler {
	return func(_ pahomqtt.Client, msg pahomqtt.Message) {
		defer func() {
			if r := recover(); r != nil {
				if log := c.logger(); log != nil {
					log.Error("mqtt handler panicked", "topic", msg.Topic(), "panic", r)
				}
			}
		}()
		if err := h(msg.Topic(), msg.Payload()); err != nil {
			if log := c.logger(); log != nil {
				log.Warn("mqtt handler failed", "topic", msg.Topic(), "error", err)
			}
		}
	}
}

// wait blocks on tok for at most d and returns its error.
func wait(tok pahomqtt.Token, d time.Duration) error {
	if !tok.WaitTimeout(d) {
		return fmt.Errorf("timeout after %v", d)
	}
	return tok.Error()
}
