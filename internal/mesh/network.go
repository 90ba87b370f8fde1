package mesh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/message"
	"github.com/nerrad567/meshsim/internal/topology"
)

const (
	// defaultConcurrency bounds parallel Execute calls in a round.
	defaultConcurrency = 8

	// recordTimeout bounds status history writes triggered by a replace.
	recordTimeout = 5 * time.Second
)

// Logger defines the logging interface used by the Network.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Transport hands out the endpoint for a device ID.
// *endpoint.MQTTTransport and *endpoint.Loopback implement it.
type Transport interface {
	Endpoint(deviceID int) device.Endpoint
}

// StatusRecorder persists status snapshots.
// *device.SQLiteStatusHistoryRepository implements it.
type StatusRecorder interface {
	RecordStatus(ctx context.Context, deviceID int, status message.Status, source string) error
}

// Options configures a Network.
type Options struct {
	// Transport connects devices to their physical counterparts. Required.
	Transport Transport

	// Adapter builds executors for lightweight devices. Lightweight devices
	// created without one fail to Execute with device.ErrNoExecutor.
	Adapter device.AdapterBuilder

	// History records status updates. Optional.
	History StatusRecorder

	// Concurrency bounds parallel Execute calls in a round. Defaults to 8.
	Concurrency int

	// Logger defaults to a no-op logger.
	Logger Logger
}

// ExecutionFailure records one device that failed during a round.
type ExecutionFailure struct {
	DeviceID int    `json:"device_id"`
	Mode     string `json:"mode"`
	Error    string `json:"error"`
}

// RoundResult summarises an execution round.
type RoundResult struct {
	Executed int                `json:"executed"`
	Failures []ExecutionFailure `json:"failures,omitempty"`
	Duration time.Duration      `json:"duration"`
}

// Network drives a device registry: it builds devices on a transport,
// routes inbound traffic, relays messages between neighbours, triggers mode
// transitions and runs execution rounds.
//
// Every message is delivered to devices outside the registry lock, so a
// device reacting to a message may replace itself in the registry.
//
// Thread Safety: all methods are safe for concurrent use.
type Network struct {
	reg         *device.Registry
	transport   Transport
	adapter     device.AdapterBuilder
	history     StatusRecorder
	concurrency int
	logger      Logger

	obsMu     sync.RWMutex
	observers []Observer
}

// New creates a Network around reg. It takes over reg's replace callback.
func New(reg *device.Registry, opts Options) (*Network, error) {
	if reg == nil {
		return nil, ErrMissingRegistry
	}
	if opts.Transport == nil {
		return nil, ErrMissingTransport
	}
	n := &Network{
		reg:         reg,
		transport:   opts.Transport,
		adapter:     opts.Adapter,
		history:     opts.History,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
	}
	if n.concurrency <= 0 {
		n.concurrency = defaultConcurrency
	}
	if n.logger == nil {
		n.logger = noopLogger{}
	}
	reg.SetOnReplace(n.handleReplace)
	return n, nil
}

// Registry returns the underlying registry.
func (n *Network) Registry() *device.Registry { return n.reg }

// AddObserver registers fn to receive every subsequent event.
func (n *Network) AddObserver(fn Observer) {
	n.obsMu.Lock()
	n.observers = append(n.observers, fn)
	n.obsMu.Unlock()
}

func (n *Network) emit(e Event) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	n.obsMu.RLock()
	observers := n.observers
	n.obsMu.RUnlock()
	for _, fn := range observers {
		fn(e)
	}
}

// AddDevice creates a device of the given mode at address and registers it
// under the next free ID.
func (n *Network) AddDevice(address string, mode device.Mode) (device.Device, error) {
	switch mode {
	case device.ModeRemote, device.ModeLightweight, device.ModeStub:
	default:
		return nil, fmt.Errorf("%w: %d", device.ErrInvalidMode, uint8(mode))
	}

	d, err := n.reg.RegisterAndCreate(func(id int) device.Device {
		return n.newDevice(id, address, mode)
	})
	if err != nil {
		return nil, err
	}
	n.logger.Debug("device added", "device_id", d.ID(), "address", address, "mode", mode.String())
	return d, nil
}

func (n *Network) newDevice(id int, address string, mode device.Mode) device.Device {
	switch mode {
	case device.ModeLightweight:
		return device.NewLightweight(id, address, n.endpointFor(id), n.reg, n.adapter)
	case device.ModeStub:
		return device.NewStub(id, address)
	default:
		return device.NewRemote(id, address, n.endpointFor(id))
	}
}

// endpointFor wraps the transport endpoint so values a lightweight device
// shows are reported as device.result events.
func (n *Network) endpointFor(id int) device.Endpoint {
	ep := n.transport.Endpoint(id)
	return device.EndpointFunc(func(ctx context.Context, msg message.Message) error {
		if err := ep.Send(ctx, msg); err != nil {
			return err
		}
		if msg.Type == message.TypeShow && msg.Sender == id {
			n.emit(Event{
				Type:     EventDeviceResult,
				DeviceID: id,
				Mode:     device.ModeLightweight.String(),
				Value:    msg.Payload,
			})
		}
		return nil
	})
}

// Finalize builds the neighbour relation.
func (n *Network) Finalize(kind topology.Kind) error {
	if err := n.reg.Finalize(kind); err != nil {
		return err
	}
	stats := n.reg.GetStats()
	n.emit(Event{
		Type:     EventTopologyFinalized,
		Topology: kind.String(),
		Devices:  stats.TotalDevices,
	})
	return nil
}

// Reset clears the registry.
func (n *Network) Reset() {
	n.reg.Reset()
	n.emit(Event{Type: EventTopologyReset})
}

// Deliver routes a message that arrived from the physical counterpart of
// msg.Sender:
//   - Status and ID update the sender's status, are recorded, and are
//     relayed to its neighbours.
//   - Result and Show are relayed to the sender's neighbours.
//   - Execute runs one step on the sender.
//   - LeaveLightweight is told to the sender.
//
// Relays before finalize are dropped without error.
func (n *Network) Deliver(ctx context.Context, msg message.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if msg.Type == message.TypeStatus || msg.Type == message.TypeID {
		status, _ := msg.StatusPayload()
		d, err := n.reg.UpdateStatus(msg.Sender, status)
		if err != nil {
			return err
		}
		n.record(ctx, d.ID(), status, device.StatusSourceEndpoint)
		n.emit(Event{Type: EventDeviceStatus, DeviceID: d.ID(), Mode: d.Mode().String(), Value: status})
		return n.relay(ctx, msg)
	}

	d, err := n.reg.Device(msg.Sender)
	if err != nil {
		return err
	}
	switch msg.Type {
	case message.TypeResult, message.TypeShow:
		if msg.Type == message.TypeResult {
			n.emit(Event{Type: EventDeviceResult, DeviceID: d.ID(), Mode: d.Mode().String(), Value: msg.Payload})
		}
		return n.relay(ctx, msg)

	case message.TypeExecute:
		return d.Execute(ctx)

	default:
		return d.Tell(ctx, msg)
	}
}

// relay broadcasts msg once the topology is finalized. Before that a device
// has no neighbours and the relay is dropped.
func (n *Network) relay(ctx context.Context, msg message.Message) error {
	if !n.reg.Finalized() {
		return nil
	}
	return n.Broadcast(ctx, msg)
}

// Broadcast tells msg to every neighbour of msg.Sender. Delivery continues
// past individual failures; all failures are returned joined.
func (n *Network) Broadcast(ctx context.Context, msg message.Message) error {
	neighbours, err := n.reg.Neighbours(msg.Sender, false)
	if err != nil {
		return err
	}

	var errs []error
	for _, nb := range neighbours {
		if err := nb.Tell(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("telling device %d: %w", nb.ID(), err))
		}
	}
	return errors.Join(errs...)
}

// SetStatus overwrites the status of device id and records it under source.
func (n *Network) SetStatus(ctx context.Context, id int, status message.Status, source string) error {
	d, err := n.reg.UpdateStatus(id, status)
	if err != nil {
		return err
	}
	current := d.Status()
	n.record(ctx, id, current, source)
	n.emit(Event{Type: EventDeviceStatus, DeviceID: id, Mode: d.Mode().String(), Value: current})
	return nil
}

func (n *Network) record(ctx context.Context, id int, status message.Status, source string) {
	if n.history == nil {
		return
	}
	if err := n.history.RecordStatus(ctx, id, status, source); err != nil {
		n.logger.Warn("failed to record status", "device_id", id, "error", err)
	}
}

// GoLightweight switches remote device id to local execution.
func (n *Network) GoLightweight(_ context.Context, id int) (device.Device, error) {
	d, err := n.reg.Device(id)
	if err != nil {
		return nil, err
	}
	remote, ok := d.(*device.Remote)
	if !ok {
		return nil, fmt.Errorf("%w: device %d is %s, not remote", ErrInvalidTransition, id, d.Mode())
	}
	lw, err := remote.GoLightweight(n.reg, n.adapter)
	if err != nil {
		return nil, err
	}
	return lw, nil
}

// LeaveLightweight sends a LeaveLightweight message to lightweight device
// id, which hands its place back to a remote device.
func (n *Network) LeaveLightweight(ctx context.Context, id int) (device.Device, error) {
	d, err := n.reg.Device(id)
	if err != nil {
		return nil, err
	}
	if d.Mode() != device.ModeLightweight {
		return nil, fmt.Errorf("%w: device %d is %s, not lightweight", ErrInvalidTransition, id, d.Mode())
	}
	if err := d.Tell(ctx, message.NewLeaveLightweight(id)); err != nil {
		return nil, err
	}
	return n.reg.Device(id)
}

// handleReplace runs after every successful registry Replace.
func (n *Network) handleReplace(old, replacement device.Device) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()
	n.record(ctx, replacement.ID(), replacement.Status(), device.StatusSourceReplace)

	n.emit(Event{
		Type:     EventDeviceReplaced,
		DeviceID: replacement.ID(),
		From:     old.Mode().String(),
		Mode:     replacement.Mode().String(),
	})
}

// Execute runs one step on device id.
func (n *Network) Execute(ctx context.Context, id int) error {
	d, err := n.reg.Device(id)
	if err != nil {
		return err
	}
	return d.Execute(ctx)
}

// ExecuteRound runs one step on every device, at most Concurrency at a time.
// Individual failures are collected in the result rather than aborting the
// round. The error is non-nil only if the round could not start.
func (n *Network) ExecuteRound(ctx context.Context) (RoundResult, error) {
	if !n.reg.Finalized() {
		return RoundResult{}, device.ErrNotFinalized
	}

	start := time.Now()
	devices := n.reg.Devices()

	var (
		mu       sync.Mutex
		failures []ExecutionFailure
		executed int
		g        errgroup.Group
	)
	g.SetLimit(n.concurrency)

	for _, d := range devices {
		if ctx.Err() != nil {
			break
		}
		d := d
		g.Go(func() error {
			err := d.Execute(ctx)
			mu.Lock()
			defer mu.Unlock()
			executed++
			if err != nil {
				failures = append(failures, ExecutionFailure{
					DeviceID: d.ID(),
					Mode:     d.Mode().String(),
					Error:    err.Error(),
				})
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return an error

	if err := ctx.Err(); err != nil {
		return RoundResult{}, fmt.Errorf("execution round: %w", err)
	}
	result := RoundResult{
		Executed: executed,
		Failures: failures,
		Duration: time.Since(start),
	}
	n.emit(Event{Type: EventRoundCompleted, Devices: executed, Value: result})
	return result, nil
}

// Run executes a round every interval until ctx is cancelled. A
// non-positive interval disables periodic rounds and Run just waits.
func (n *Network) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			result, err := n.ExecuteRound(ctx)
			switch {
			case errors.Is(err, device.ErrNotFinalized):
				n.logger.Debug("skipping execution round, topology not finalized")
			case err != nil:
				if ctx.Err() != nil {
					return nil
				}
				n.logger.Warn("execution round failed", "error", err)
			case len(result.Failures) > 0:
				n.logger.Warn("execution round completed with failures",
					"executed", result.Executed,
					"failed", len(result.Failures),
				)
			default:
				n.logger.Debug("execution round completed",
					"executed", result.Executed,
					"duration", result.Duration,
				)
			}
		}
	}
}
