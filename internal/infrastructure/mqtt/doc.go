// Package mqtt provides MQTT client connectivity for the AirCore backend.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is an optional ingest path alongside HTTP. Purifiers on flaky
// links publish status payloads to aircore/readings/{device_id}; the
// backend subscribes with a wildcard and feeds each payload through the
// same ingest pipeline as POST /api/readings. The backend also announces
// its own availability on aircore/system/status.
//
//	Purifiers -> MQTT Broker -> AirCore backend
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to readings from every purifier
//	err = client.Subscribe(mqtt.Topics{}.AllDeviceReadings(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
package mqtt
