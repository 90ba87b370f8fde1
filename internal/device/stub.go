package device

import (
	"context"
	"sync"

	"github.com/nerrad567/meshsim/internal/message"
)

// Stub is an inert device. It has no endpoint and ignores every message;
// values passed to ShowResult are kept in memory for inspection.
type Stub struct {
	base

	resultsMu sync.Mutex
	results   []any
}

// NewStub creates a stub device.
func NewStub(id int, address string) *Stub {
	return &Stub{base: base{id: id, address: address, status: message.Status{}}}
}

// StubFactory is a Factory that creates stubs with an empty address.
func StubFactory(id int) Device {
	return NewStub(id, "")
}

// Mode returns ModeStub.
func (s *Stub) Mode() Mode { return ModeStub }

// Send discards msg.
func (s *Stub) Send(context.Context, message.Message) error { return nil }

// Tell discards msg.
func (s *Stub) Tell(context.Context, message.Message) error { return nil }

// Execute does nothing.
func (s *Stub) Execute(context.Context) error { return nil }

// ShowResult records value.
func (s *Stub) ShowResult(_ context.Context, value any) error {
	s.resultsMu.Lock()
	s.results = append(s.results, value)
	s.resultsMu.Unlock()
	return nil
}

// Results returns the values shown so far, oldest first.
func (s *Stub) Results() []any {
	s.resultsMu.Lock()
	defer s.resultsMu.Unlock()
	out := make([]any, len(s.results))
	copy(out, s.results)
	return out
}
