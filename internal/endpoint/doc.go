// Package endpoint connects simulated devices to their physical counterparts.
//
// Two transports are provided, both handing out device.Endpoint values per
// device ID:
//
//   - MQTTTransport publishes JSON-encoded messages on
//     meshsim/{simulation}/device/{id}/out. Listener subscribes to
//     meshsim/{simulation}/device/+/in and routes what arrives into the mesh.
//   - Loopback keeps traffic in process. A Responder stands in for the
//     physical devices; useful for tests and for running without a broker.
//
// Usage:
//
//	transport := endpoint.NewMQTTTransport(mqttClient, "lab", 1)
//	listener := endpoint.NewListener(mqttClient, "lab", 1, network)
//	if err := listener.Start(); err != nil {
//	    return err
//	}
//	defer listener.Stop()
package endpoint
