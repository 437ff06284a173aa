// Package mqtt provides MQTT client connectivity for the pet tracker core.
//
// This package manages:
//   - A reconnect supervisor that owns the connection state
//   - Message publishing with QoS guarantees
//   - Topic subscriptions, re-applied on every connection
//   - Last Will and Testament (LWT) for offline detection
//   - Building and parsing device topics
//
// # Architecture
//
// Door nodes publish telemetry under <base>/<customer>/<device>@<seq>/<subtopic>
// and receive their settings as retained messages on sibling subtopics.
//
//	Door nodes ↔ MQTT Broker ↔ Pet Tracker Core
//
// # Connection supervision
//
// Paho's auto-reconnect is disabled. One goroutine started by Start dials the
// broker immediately and then on a fixed interval while disconnected. Paho's
// connection-lost callback and each dial result are sent to it over a
// channel; IsConnected asks it over another. Cancelling the Start context (or
// calling Close) publishes a graceful offline status and disconnects.
//
// # Usage
//
//	client := mqtt.New(cfg.MQTT)
//	client.SetLogger(log)
//	if err := client.Start(ctx); err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err := client.Subscribe(client.Topics().Telemetry(mqtt.SubtopicPassingBy), 1,
//	    func(topic string, payload []byte) error {
//	        return handler.HandleMessage(ctx, topic, payload)
//	    })
package mqtt
