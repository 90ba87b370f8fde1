// Package mqtt provides MQTT client connectivity for meshsim.
//
// MQTT is the transport between simulated devices and their physical
// counterparts. Each device has an outbound and an inbound topic:
//
//	meshsim/{sim}/device/{id}/out   simulator → physical device
//	meshsim/{sim}/device/{id}/in    physical device → simulator
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and a 1MB payload limit
//   - Subscriptions with wildcard support, restored after reconnect
//   - Last Will and Testament on meshsim/system/status
//   - Handler panic recovery
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceIn("lab"), 1,
//	    func(topic string, payload []byte) error {
//	        _, id, _, err := mqtt.ParseDeviceTopic(topic)
//	        ...
//	    })
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) when the broker is not on localhost
//   - Message payloads are not encrypted beyond TLS transport
package mqtt
