// Package mqtt provides MQTT client connectivity for SoundMesh Core.
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
// SoundMesh uses MQTT as its provisioning boundary. The coordinator
// publishes missing-speaker notices for the provisioning system and
// subscribes to refreshed speaker addresses published back by it. The
// broker (Mosquitto) decouples the coordinator from whatever discovery
// mechanism the installation runs.
//
//	SoundMesh Core ↔ MQTT Broker ↔ Provisioning System
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
//	// Subscribe to provisioning address updates
//	err = client.Subscribe(mqtt.Topics{}.ProvisioningAddress(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a missing-speaker notice
//	topic := mqtt.Topics{}.ProvisioningMissing()
//	client.Publish(topic, []byte(`{"speaker_id":"spk-kitchen"}`), 1, false)
package mqtt
