package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by meshsim.
const (
	MeasurementResult     = "device_result"
	MeasurementTransition = "mode_transition"
	MeasurementRound      = "execution_round"
	MeasurementTopology   = "topology"
)

// WriteResult records a value produced by a device.
//
// Tags: simulation, device_id, mode. Field: value.
func (c *Client) WriteResult(simID string, deviceID int, mode string, value float64) {
	c.write(resultPoint(simID, deviceID, mode, value, time.Now()))
}

// WriteTransition records a device switching execution mode.
//
// Tags: simulation, device_id, from, to. Field: count (always 1, for sums).
func (c *Client) WriteTransition(simID string, deviceID int, from, to string) {
	c.write(transitionPoint(simID, deviceID, from, to, time.Now()))
}

// WriteRound records the outcome of an execution round.
func (c *Client) WriteRound(simID string, executed, failed int, duration time.Duration) {
	c.write(roundPoint(simID, executed, failed, duration, time.Now()))
}

// WriteTopologyStats records the shape of a finalized topology.
func (c *Client) WriteTopologyStats(simID, kind string, devices, edges int) {
	c.write(topologyPoint(simID, kind, devices, edges, time.Now()))
}

// write queues p unless the client is closed.
func (c *Client) write(p *write.Point) {
	if !c.IsConnected() {
		return
	}
	c.points.WritePoint(p)
}

func resultPoint(simID string, deviceID int, mode string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementResult,
		map[string]string{
			"simulation": simID,
			"device_id":  strconv.Itoa(deviceID),
			"mode":       mode,
		},
		map[string]any{"value": value},
		ts,
	)
}

func transitionPoint(simID string, deviceID int, from, to string, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementTransition,
		map[string]string{
			"simulation": simID,
			"device_id":  strconv.Itoa(deviceID),
			"from":       from,
			"to":         to,
		},
		map[string]any{"count": 1},
		ts,
	)
}

func roundPoint(simID string, executed, failed int, duration time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementRound,
		map[string]string{"simulation": simID},
		map[string]any{
			"executed":    executed,
			"failed":      failed,
			"duration_ms": float64(duration) / float64(time.Millisecond),
		},
		ts,
	)
}

func topologyPoint(simID, kind string, devices, edges int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementTopology,
		map[string]string{
			"simulation": simID,
			"kind":       kind,
		},
		map[string]any{
			"devices": devices,
			"edges":   edges,
		},
		ts,
	)
}
