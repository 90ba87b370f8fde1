package endpoint

import (
	"context"
	"slices"
	"sync"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/message"
)

// Responder plays the physical counterpart of a device on the loopback
// transport. It receives every message the device sends and returns the
// messages the counterpart sends back, if any.
type Responder func(deviceID int, msg message.Message) []message.Message

// Loopback is an in-process transport. Outbound messages are recorded per
// device; replies produced by the Responder are delivered straight back into
// the mesh through the Deliverer.
//
// Thread Safety: all methods are safe for concurrent use. The responder and
// deliverer run without the loopback lock held.
type Loopback struct {
	mu        sync.RWMutex
	sent      map[int][]message.Message
	responder Responder
	target    Deliverer
}

// NewLoopback creates an empty loopback transport.
func NewLoopback() *Loopback {
	return &Loopback{sent: make(map[int][]message.Message)}
}

// SetResponder installs the simulated physical counterpart.
func (l *Loopback) SetResponder(fn Responder) {
	l.mu.Lock()
	l.responder = fn
	l.mu.Unlock()
}

// SetTarget sets where responder replies are delivered.
func (l *Loopback) SetTarget(target Deliverer) {
	l.mu.Lock()
	l.target = target
	l.mu.Unlock()
}

// Endpoint returns the endpoint for deviceID.
func (l *Loopback) Endpoint(deviceID int) device.Endpoint {
	return device.EndpointFunc(func(ctx context.Context, msg message.Message) error {
		return l.send(ctx, deviceID, msg)
	})
}

func (l *Loopback) send(ctx context.Context, deviceID int, msg message.Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	l.sent[deviceID] = append(l.sent[deviceID], msg)
	responder, target := l.responder, l.target
	l.mu.Unlock()

	if responder == nil || target == nil {
		return nil
	}
	for _, reply := range responder(deviceID, msg) {
		if err := target.Deliver(ctx, reply); err != nil {
			return err
		}
	}
	return nil
}

// Sent returns a copy of the messages sent by deviceID, oldest first.
func (l *Loopback) Sent(deviceID int) []message.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.sent[deviceID])
}

// Clear forgets all recorded traffic.
func (l *Loopback) Clear() {
	l.mu.Lock()
	l.sent = make(map[int][]message.Message)
	l.mu.Unlock()
}

// CounterResponder answers every Execute with a Result carrying the number
// of Execute messages that device has received so far.
func CounterResponder() Responder {
	var mu sync.Mutex
	rounds := make(map[int]int)
	return func(deviceID int, msg message.Message) []message.Message {
		if msg.Type != message.TypeExecute {
			return nil
		}
		mu.Lock()
		rounds[deviceID]++
		n := rounds[deviceID]
		mu.Unlock()
		return []message.Message{message.NewResult(deviceID, n)}
	}
}
