// Package mqtt provides MQTT client connectivity for Farlink Core.
//
// This package manages:
//   - Connection to Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// Farlink uses MQTT as an optional presence bridge: device status
// transitions are mirrored onto the broker as retained messages, and
// devices that cannot hold a signaling connection may publish heartbeats
// over the broker instead.
//
//	Farlink Core ↔ MQTT Broker ↔ Remote Devices / Monitoring
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Performance Characteristics
//
//   - Connection: <1 second to local broker
//   - Publish latency: <10ms for QoS 1 to local broker
//   - Reconnect: Exponential backoff 1s-60s with jitter
//   - Message throughput: Broker-limited (typically 10K+ msg/sec)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Feed broker-side heartbeats into the device registry
//	err = client.SubscribeHeartbeats(func(deviceID string) {
//	    registry.QueueHeartbeat(deviceID)
//	})
//
//	// Mirror a status transition
//	client.PublishPresence("workstation-01", device.StatusOnline, time.Now())
package mqtt
