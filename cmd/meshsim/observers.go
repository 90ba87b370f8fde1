package main

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nerrad567/meshsim/internal/device"
	"github.com/nerrad567/meshsim/internal/endpoint"
	"github.com/nerrad567/meshsim/internal/execution"
	"github.com/nerrad567/meshsim/internal/infrastructure/mqtt"
	"github.com/nerrad567/meshsim/internal/mesh"
)

// telemetryWriter is the subset of *influxdb.Client the telemetry observer uses.
type telemetryWriter interface {
	WriteResult(simID string, deviceID int, mode string, value float64)
	WriteTransition(simID string, deviceID int, from, to string)
	WriteRound(simID string, executed, failed int, duration time.Duration)
	WriteTopologyStats(simID, kind string, devices, edges int)
}

// telemetryObserver writes results, mode transitions, rounds and topology
// stats as InfluxDB points. Non-numeric results are skipped.
func telemetryObserver(w telemetryWriter, simID string, stats func() device.Stats) mesh.Observer {
	return func(e mesh.Event) {
		switch e.Type {
		case mesh.EventDeviceResult:
			if v, ok := execution.Numeric(e.Value); ok {
				w.WriteResult(simID, e.DeviceID, e.Mode, v)
			}
		case mesh.EventDeviceReplaced:
			w.WriteTransition(simID, e.DeviceID, e.From, e.Mode)
		case mesh.EventRoundCompleted:
			if r, ok := e.Value.(mesh.RoundResult); ok {
				w.WriteRound(simID, r.Executed, len(r.Failures), r.Duration)
			}
		case mesh.EventTopologyFinalized:
			s := stats()
			w.WriteTopologyStats(simID, e.Topology, s.TotalDevices, s.Edges)
		}
	}
}

// eventLogger is the logging interface used by eventPublisher.
type eventLogger interface {
	Warn(msg string, args ...any)
}

// eventPublisher mirrors topology lifecycle events onto
// meshsim/{sim}/event/{finalized|reset|replaced}.
func eventPublisher(pub endpoint.Publisher, simID string, log eventLogger) mesh.Observer {
	topics := mqtt.Topics{}
	return func(e mesh.Event) {
		switch e.Type {
		case mesh.EventTopologyFinalized, mesh.EventTopologyReset, mesh.EventDeviceReplaced:
		default:
			return
		}

		payload, err := json.Marshal(e)
		if err != nil {
			log.Warn("failed to encode mesh event", "type", e.Type, "error", err)
			return
		}
		name := e.Type[strings.LastIndex(e.Type, ".")+1:]
		if err := pub.Publish(topics.Event(simID, name), payload, 1, false); err != nil {
			log.Warn("failed to publish mesh event", "type", e.Type, "error", err)
		}
	}
}
