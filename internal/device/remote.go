package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/meshsim/internal/message"
)

// Remote is a thin proxy for a physical device. Everything it is told is
// forwarded to the endpoint, where the real execution happens.
type Remote struct {
	base
	endpoint Endpoint
}

// NewRemote creates a remote device that talks to its counterpart through ep.
func NewRemote(id int, address string, ep Endpoint) *Remote {
	return &Remote{base: base{id: id, address: address, status: message.Status{}}, endpoint: ep}
}

// Mode returns ModeRemote.
func (r *Remote) Mode() Mode { return ModeRemote }

// Endpoint returns the endpoint the device sends through.
func (r *Remote) Endpoint() Endpoint { return r.endpoint }

// Send forwards msg to the physical endpoint.
func (r *Remote) Send(ctx context.Context, msg message.Message) error {
	return sendTo(ctx, r.endpoint, msg)
}

// Tell forwards every message except LeaveLightweight, which does not apply
// to a device that is already remote.
func (r *Remote) Tell(ctx context.Context, msg message.Message) error {
	if msg.Type == message.TypeLeaveLightweight {
		return nil
	}
	return r.Send(ctx, msg)
}

// Execute asks the physical device to run one step.
func (r *Remote) Execute(ctx context.Context) error {
	return r.Send(ctx, message.NewExecute(r.id))
}

// ShowResult sends value to the physical device as a Result message.
func (r *Remote) ShowResult(ctx context.Context, value any) error {
	return r.Send(ctx, message.NewResult(r.id, value))
}

// GoLightweight replaces r in reg with a Lightweight device that keeps r's
// ID, address and endpoint and executes through an adapter from build.
// The status is carried over by the registry.
func (r *Remote) GoLightweight(reg Replacer, build AdapterBuilder) (*Lightweight, error) {
	lw := NewLightweight(r.id, r.address, r.endpoint, reg, build)
	if err := reg.Replace(r, lw); err != nil {
		return nil, fmt.Errorf("going lightweight: %w", err)
	}
	return lw, nil
}
