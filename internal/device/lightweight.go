package device

import (
	"context"
	"fmt"

	"github.com/nerrad567/meshsim/internal/message"
)

// Lightweight executes its program locally and forwards what it produces to
// the physical endpoint for display.
//
// A LeaveLightweight message makes it hand its place in the registry back to
// a Remote device with the same ID, address and endpoint.
type Lightweight struct {
	base
	endpoint Endpoint
	registry Replacer
	executor Executor
}

// NewLightweight creates a lightweight device. reg is the registry the
// device will replace itself in on LeaveLightweight. If build is nil the
// device cannot Execute.
func NewLightweight(id int, address string, ep Endpoint, reg Replacer, build AdapterBuilder) *Lightweight {
	lw := &Lightweight{
		base:     base{id: id, address: address, status: message.Status{}},
		endpoint: ep,
		registry: reg,
	}
	if build != nil {
		lw.executor = build(lw)
	}
	return lw
}

// Mode returns ModeLightweight.
func (l *Lightweight) Mode() Mode { return ModeLightweight }

// Endpoint returns the endpoint the device sends through.
func (l *Lightweight) Endpoint() Endpoint { return l.endpoint }

// Send forwards msg to the physical endpoint.
func (l *Lightweight) Send(ctx context.Context, msg message.Message) error {
	return sendTo(ctx, l.endpoint, msg)
}

// Tell forwards Result and Show, handles LeaveLightweight, and ignores the rest.
//
// Tell must not be called while holding the registry lock, since
// LeaveLightweight calls back into Replace.
func (l *Lightweight) Tell(ctx context.Context, msg message.Message) error {
	switch msg.Type {
	case message.TypeResult, message.TypeShow:
		return l.Send(ctx, msg)
	case message.TypeLeaveLightweight:
		_, err := l.LeaveLightweight()
		return err
	default:
		return nil
	}
}

// Execute runs the local program once and shows the value it returns.
// A nil value is not shown.
func (l *Lightweight) Execute(ctx context.Context) error {
	if l.executor == nil {
		return ErrNoExecutor
	}
	value, err := l.executor.Execute(ctx)
	if err != nil {
		return fmt.Errorf("executing device %d: %w", l.id, err)
	}
	if value == nil {
		return nil
	}
	return l.ShowResult(ctx, value)
}

// ShowResult sends value to the physical device as a Show message.
func (l *Lightweight) ShowResult(ctx context.Context, value any) error {
	return l.Send(ctx, message.NewShow(l.id, value))
}

// LeaveLightweight replaces l in its registry with a Remote device that
// keeps l's ID, address and endpoint.
func (l *Lightweight) LeaveLightweight() (*Remote, error) {
	if l.registry == nil {
		return nil, fmt.Errorf("leaving lightweight: %w", ErrNotAMember)
	}
	remote := NewRemote(l.id, l.address, l.endpoint)
	if err := l.registry.Replace(l, remote); err != nil {
		return nil, fmt.Errorf("leaving lightweight: %w", err)
	}
	return remote, nil
}
