package device

import (
	"context"
	"sync"

	"github.com/nerrad567/meshsim/internal/message"
)

// base holds the fields every variant shares.
type base struct {
	id      int
	address string

	mu     sync.RWMutex
	status message.Status
}

func (b *base) ID() int { return b.id }

func (b *base) Address() string { return b.address }

func (b *base) Status() message.Status {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.status.Clone()
}

func (b *base) SetStatus(s message.Status) {
	cpy := s.Clone()
	if cpy == nil {
		cpy = message.Status{}
	}
	b.mu.Lock()
	b.status = cpy
	b.mu.Unlock()
}

// sendTo validates msg and hands it to ep.
func sendTo(ctx context.Context, ep Endpoint, msg message.Message) error {
	if ep == nil {
		return ErrNoEndpoint
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	return ep.Send(ctx, msg)
}
