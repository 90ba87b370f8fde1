package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/infrastructure/config"
	"github.com/nerrad567/meshsim/internal/infrastructure/logging"
	"github.com/nerrad567/meshsim/internal/mesh"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("MESHSIM_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_InvalidTopology verifies validation errors stop startup.
func TestRun_InvalidTopology(t *testing.T) {
	t.Setenv("MESHSIM_CONFIG", writeConfig(t, `
simulation:
  id: test
  topology: star
database:
  path: ":memory:"
api:
  enabled: false
`))

	if err := run(context.Background()); err == nil {
		t.Fatal("run() should fail with an unknown topology")
	}
}

// TestRun_Loopback runs a complete simulation over the loopback transport
// until the context expires.
func TestRun_Loopback(t *testing.T) {
	t.Setenv("MESHSIM_CONFIG", writeConfig(t, `
simulation:
  id: test
  topology: ring
  transport: loopback
  program: average
  field: value
  execution_interval: 10ms
  history_retention: 1h
  devices:
    - {address: "a", mode: remote}
    - {address: "b", mode: lightweight}
    - {address: "c", mode: stub}
database:
  path: ":memory:"
api:
  enabled: false
influxdb:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
`))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Fatalf("run() error = %v", err)
	}
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("MESHSIM_CONFIG", "")
	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}

	t.Setenv("MESHSIM_CONFIG", "/custom/path/config.yaml")
	if path := getConfigPath(); path != "/custom/path/config.yaml" {
		t.Errorf("getConfigPath() = %q, want override", path)
	}
}

func TestBuildMesh_BadMode(t *testing.T) {
	network, err := mesh.New(device.NewRegistry(), mesh.Options{Transport: nopTransport{}})
	if err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{Simulation: config.SimulationConfig{
		Topology: "line",
		Devices:  []config.DeviceConfig{{Address: "a", Mode: "remote"}, {Address: "b", Mode: "ghost"}},
	}}

	if err := buildMesh(network, cfg); !errors.Is(err, device.ErrInvalidMode) {
		t.Errorf("buildMesh() error = %v, want ErrInvalidMode", err)
	}
}

type nopTransport struct{}

func (nopTransport) Endpoint(int) device.Endpoint { return nil }

// recordingWriter implements telemetryWriter.
type recordingWriter struct {
	calls []string
}

func (w *recordingWriter) WriteResult(_ string, id int, mode string, value float64) {
	w.calls = append(w.calls, "result")
}

func (w *recordingWriter) WriteTransition(_ string, _ int, from, to string) {
	w.calls = append(w.calls, "transition:"+from+">"+to)
}

func (w *recordingWriter) WriteRound(_ string, executed, failed int, _ time.Duration) {
	if executed == 3 && failed == 1 {
		w.calls = append(w.calls, "round")
	}
}

func (w *recordingWriter) WriteTopologyStats(_, kind string, devices, edges int) {
	if devices == 4 && edges == 4 {
		w.calls = append(w.calls, "topology:"+kind)
	}
}

func TestTelemetryObserver(t *testing.T) {
	w := &recordingWriter{}
	stats := func() device.Stats { return device.Stats{TotalDevices: 4, Edges: 4} }
	observe := telemetryObserver(w, "test", stats)

	observe(mesh.Event{Type: mesh.EventTopologyFinalized, Topology: "ring"})
	observe(mesh.Event{Type: mesh.EventDeviceResult, Value: 2})
	observe(mesh.Event{Type: mesh.EventDeviceResult, Value: "not a number"})
	observe(mesh.Event{Type: mesh.EventDeviceReplaced, From: "remote", Mode: "lightweight"})
	observe(mesh.Event{Type: mesh.EventRoundCompleted, Value: mesh.RoundResult{
		Executed: 3, Failures: []mesh.ExecutionFailure{{DeviceID: 1}},
	}})
	observe(mesh.Event{Type: mesh.EventDeviceStatus})

	want := []string{"topology:ring", "result", "transition:remote>lightweight", "round"}
	if len(w.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", w.calls, want)
	}
	for i := range want {
		if w.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, w.calls[i], want[i])
		}
	}
}

// fakePublisher implements endpoint.Publisher.
type fakePublisher struct {
	mu     sync.Mutex
	topics []string
	err    error
}

func (p *fakePublisher) Publish(topic string, _ []byte, _ byte, _ bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	return p.err
}

type countingLogger struct{ warns int }

func (l *countingLogger) Warn(string, ...any) { l.warns++ }

func TestEventPublisher(t *testing.T) {
	pub := &fakePublisher{}
	log := &countingLogger{}
	observe := eventPublisher(pub, "lab", log)

	observe(mesh.Event{Type: mesh.EventTopologyFinalized})
	observe(mesh.Event{Type: mesh.EventDeviceResult})
	observe(mesh.Event{Type: mesh.EventDeviceReplaced})
	observe(mesh.Event{Type: mesh.EventTopologyReset})

	want := []string{"meshsim/lab/event/finalized", "meshsim/lab/event/replaced", "meshsim/lab/event/reset"}
	if len(pub.topics) != len(want) {
		t.Fatalf("topics = %v, want %v", pub.topics, want)
	}
	for i := range want {
		if pub.topics[i] != want[i] {
			t.Errorf("topic %d = %q, want %q", i, pub.topics[i], want[i])
		}
	}

	pub.err = errors.New("not connected")
	observe(mesh.Event{Type: mesh.EventTopologyReset})
	if log.warns != 1 {
		t.Errorf("warns = %d, want 1", log.warns)
	}
}

type fakePruner struct {
	mu    sync.Mutex
	calls int
}

func (p *fakePruner) PruneHistory(context.Context, time.Duration) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return 1, nil
}

func (p *fakePruner) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

func TestPruneLoop(t *testing.T) {
	pruner := &fakePruner{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		pruneLoop(ctx, pruner, 5*time.Millisecond, logging.Discard())
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for pruner.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("pruneLoop never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
