// Package influxdb writes simulation telemetry to InfluxDB.
//
// It wraps the official influxdb-client-go v2 library with connection
// management, batched non-blocking writes and health checks.
//
// Measurements:
//   - device_result: values produced by devices (tags simulation, device_id, mode)
//   - mode_transition: remote/lightweight switches (tags simulation, device_id, from, to)
//   - execution_round: executed and failed counts plus duration per round
//   - topology: device and edge counts when a topology is finalized
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteResult("lab", 3, "lightweight", 21.5)
//
// Write failures are reported asynchronously through SetOnError.
// Connection and health check errors are returned directly.
package influxdb
