package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/nerrad567/meshsim/internal/mesh"
)

// SourceMesh marks entries written from mesh events.
const SourceMesh = "mesh"

// writeTimeout bounds a single audit insert.
const writeTimeout = 5 * time.Second

// Logger is the logging interface used by the Recorder.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// Recorder turns mesh lifecycle events into audit entries.
// Register Observe with mesh.Network.AddObserver.
type Recorder struct {
	repo         Repository
	simulationID string
	logger       Logger
}

// NewRecorder creates a recorder writing to repo. logger may be nil.
func NewRecorder(repo Repository, simulationID string, logger Logger) *Recorder {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Recorder{repo: repo, simulationID: simulationID, logger: logger}
}

// Observe records finalize, replace and reset events and ignores the rest.
func (r *Recorder) Observe(e mesh.Event) {
	entry := r.entryFor(e)
	if entry == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.repo.Create(ctx, entry); err != nil {
		r.logger.Warn("failed to write audit log", "action", entry.Action, "error", err)
	}
}

func (r *Recorder) entryFor(e mesh.Event) *AuditLog {
	entry := &AuditLog{
		SimulationID: r.simulationID,
		Source:       SourceMesh,
		CreatedAt:    e.Timestamp,
	}

	switch e.Type {
	case mesh.EventTopologyFinalized:
		entry.Action = ActionFinalize
		entry.EntityType = EntityTopology
		entry.Details = map[string]any{"topology": e.Topology, "devices": e.Devices}
	case mesh.EventDeviceReplaced:
		entry.Action = ActionReplace
		entry.EntityType = EntityDevice
		entry.EntityID = strconv.Itoa(e.DeviceID)
		entry.Details = map[string]any{"from": e.From, "to": e.Mode}
	case mesh.EventTopologyReset:
		entry.Action = ActionReset
		entry.EntityType = EntityTopology
	default:
		return nil
	}
	return entry
}
