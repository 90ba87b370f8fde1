package device

import (
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"

	"github.com/nerrad567/meshsim/internal/message"
	"github.com/nerrad567/meshsim/internal/topology"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ReplaceFunc is called after a successful Replace, outside the registry lock.
type ReplaceFunc func(old, replacement Device)

// Registry owns device membership and the neighbour relation.
//
// Devices are registered during setup. Finalize builds the neighbour
// relation once from the registration order; after that the only mutation
// is Replace, which swaps one device for another in place.
//
// The relation is keyed by device ID with a separate ID to Device lookup,
// so Replace rebinds one lookup entry and rewrites only the edges of the
// replaced device.
//
// All public methods are thread-safe. Neighbour queries take a read lock
// and never observe a half-completed Replace.
type Registry struct {
	mu        sync.RWMutex
	order     []int          // Device IDs in registration order
	devices   map[int]Device // Current device for each ID
	adj       topology.Adjacency
	kind      topology.Kind
	finalized bool

	logger    Logger
	onReplace ReplaceFunc
}

// NewRegistry creates an empty, unfinalized registry.
func NewRegistry() *Registry {
	return &Registry{
		devices: make(map[int]Device),
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetOnReplace registers a callback fired after every successful Replace.
// It runs on the caller's goroutine after the lock is released, so it may
// query the registry.
func (r *Registry) SetOnReplace(fn ReplaceFunc) {
	r.mu.Lock()
	r.onReplace = fn
	r.mu.Unlock()
}

// GenerateID returns the smallest non-negative ID not held by a registered device.
func (r *Registry) GenerateID() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.generateIDLocked()
}

func (r *Registry) generateIDLocked() int {
	id := 0
	for {
		if _, taken := r.devices[id]; !taken {
			return id
		}
		id++
	}
}

// CreateDevice builds a device for the next free ID without registering it.
// Two calls without a Register in between return devices with the same ID.
func (r *Registry) CreateDevice(factory Factory) Device {
	return factory(r.GenerateID())
}

// RegisterAndCreate reserves the next free ID, builds the device and
// registers it as one step. The factory runs under the registry lock and
// must not call back into the registry.
func (r *Registry) RegisterAndCreate(factory Factory) (Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return nil, ErrAlreadyFinalized
	}

	id := r.generateIDLocked()
	d := factory(id)
	if d == nil {
		return nil, fmt.Errorf("%w: factory returned nil for id %d", ErrInvalidDevice, id)
	}
	if d.ID() != id {
		return nil, fmt.Errorf("%w: factory returned id %d, want %d", ErrInvalidDevice, d.ID(), id)
	}

	r.registerLocked(d)
	return d, nil
}

// Register adds d to the membership.
// Registering an ID that is already present is a no-op.
// Returns ErrAlreadyFinalized after Finalize.
func (r *Registry) Register(d Device) error {
	if d == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	if d.ID() < 0 {
		return fmt.Errorf("%w: negative id %d", ErrInvalidDevice, d.ID())
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrAlreadyFinalized
	}
	r.registerLocked(d)
	return nil
}

func (r *Registry) registerLocked(d Device) {
	id := d.ID()
	if existing, ok := r.devices[id]; ok {
		if existing != d {
			r.logger.Warn("device id already registered, ignoring", "device_id", id)
		}
		return
	}
	r.devices[id] = d
	r.order = append(r.order, id)
	r.logger.Debug("device registered", "device_id", id, "mode", d.Mode().String())
}

// Finalize builds the neighbour relation from the current membership in
// registration order and freezes membership.
// Returns ErrAlreadyFinalized if called twice.
func (r *Registry) Finalize(kind topology.Kind) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidTopology, kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.finalized {
		return ErrAlreadyFinalized
	}

	r.adj = topology.Build(slices.Clone(r.order), kind)
	r.kind = kind
	r.finalized = true

	r.logger.Info("topology finalized",
		"topology", kind.String(),
		"devices", len(r.order),
		"edges", len(r.adj.Edges()),
	)
	return nil
}

// Neighbours returns the neighbours of the device with the given ID,
// sorted by ID. With includeSelf the device itself is included.
//
// An ID with no registered device yields an empty result and a nil error.
// Returns ErrNotFinalized before Finalize.
func (r *Registry) Neighbours(id int, includeSelf bool) ([]Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.finalized {
		return nil, ErrNotFinalized
	}

	ids := r.adj.Neighbours(id)
	out := make([]Device, 0, len(ids)+1)
	for _, n := range ids {
		out = append(out, r.devices[n])
	}
	if includeSelf {
		if self, ok := r.devices[id]; ok {
			out = append(out, self)
			sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
		}
	}
	return out, nil
}

// NeighboursOf is Neighbours keyed by d's ID.
func (r *Registry) NeighboursOf(d Device, includeSelf bool) ([]Device, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}
	return r.Neighbours(d.ID(), includeSelf)
}

// Replace swaps old for replacement in one step.
//
// The replacement takes over old's status and every edge old had; every
// device that listed old as a neighbour lists the replacement instead.
// A replacement with a different ID is re-keyed in place and keeps old's
// position in registration order.
//
// Errors:
//   - ErrNotFinalized before Finalize
//   - ErrNotAMember if old is not the device currently registered under its ID
//   - ErrDuplicateID if replacement has a different ID that is already taken
func (r *Registry) Replace(old, replacement Device) error {
	if old == nil || replacement == nil {
		return fmt.Errorf("%w: nil device", ErrInvalidDevice)
	}

	r.mu.Lock()
	err := r.replaceLocked(old, replacement)
	onReplace := r.onReplace
	r.mu.Unlock()

	if err != nil {
		return err
	}

	r.logger.Info("device replaced",
		"device_id", old.ID(),
		"replacement_id", replacement.ID(),
		"from", old.Mode().String(),
		"to", replacement.Mode().String(),
	)
	if onReplace != nil {
		onReplace(old, replacement)
	}
	return nil
}

func (r *Registry) replaceLocked(old, replacement Device) error {
	if !r.finalized {
		return ErrNotFinalized
	}

	oldID := old.ID()
	if current, ok := r.devices[oldID]; !ok || current != old {
		return fmt.Errorf("%w: device %d", ErrNotAMember, oldID)
	}

	newID := replacement.ID()
	if newID < 0 {
		return fmt.Errorf("%w: negative id %d", ErrInvalidDevice, newID)
	}
	if newID != oldID {
		if _, taken := r.devices[newID]; taken {
			return fmt.Errorf("%w: %d", ErrDuplicateID, newID)
		}
	}

	replacement.SetStatus(old.Status())

	if newID != oldID {
		delete(r.devices, oldID)
		r.adj.Rekey(oldID, newID)
		if i := slices.Index(r.order, oldID); i >= 0 {
			r.order[i] = newID
		}
	}
	r.devices[newID] = replacement
	return nil
}

// Reset clears membership and the neighbour relation and un-finalizes the
// registry. IDs are handed out from 0 again.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.order = nil
	r.devices = make(map[int]Device)
	r.adj = nil
	r.kind = 0
	r.finalized = false

	r.logger.Info("registry reset")
}

// Devices returns all registered devices in registration order.
func (r *Registry) Devices() []Device {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Device, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.devices[id])
	}
	return out
}

// Device returns the device registered under id.
// Returns ErrDeviceNotFound if there is none.
func (r *Registry) Device(id int) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
	}
	return d, nil
}

// UpdateStatus sets the status of the device registered under id and
// returns that device. The write holds the registry read lock, so it lands
// either before a concurrent Replace copies the status or on the replacement.
func (r *Registry) UpdateStatus(id int, s message.Status) (Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	d, ok := r.devices[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDeviceNotFound, id)
	}
	d.SetStatus(s)
	return d, nil
}

// Count returns the number of registered devices.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.devices)
}

// Finalized reports whether Finalize has been called since the last Reset.
func (r *Registry) Finalized() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.finalized
}

// Topology returns the kind passed to Finalize, or 0 before Finalize.
func (r *Registry) Topology() topology.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.kind
}

// Edges returns each unordered neighbour pair once.
// Returns ErrNotFinalized before Finalize.
func (r *Registry) Edges() ([]topology.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.finalized {
		return nil, ErrNotFinalized
	}
	return r.adj.Edges(), nil
}

// PrintNeighbours writes each unordered edge once as "a <-> b", one per line.
// Returns ErrNotFinalized before Finalize.
func (r *Registry) PrintNeighbours(w io.Writer) error {
	edges, err := r.Edges()
	if err != nil {
		return err
	}
	for _, e := range edges {
		if _, err := fmt.Fprintln(w, e.String()); err != nil {
			return fmt.Errorf("writing edge: %w", err)
		}
	}
	return nil
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.devices),
		ByMode:       make(map[Mode]int),
		Finalized:    r.finalized,
	}
	for _, d := range r.devices {
		stats.ByMode[d.Mode()]++
	}
	if r.finalized {
		stats.Edges = len(r.adj.Edges())
		stats.Topology = r.kind.String()
	}
	return stats
}
