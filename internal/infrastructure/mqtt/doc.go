// Package mqtt provides MQTT client connectivity for the exporter.
//
// The exporter uses the broker in three ways:
//   - Subscribing to the platform's event stream to learn about entity
//     registry changes
//   - Publishing the export notification and export events for dashboards
//   - Accepting manual export commands on autoexpose/command/export
//
// The client reconnects automatically and restores its subscriptions.
// A retained Last Will on autoexpose/system/status lets other services see
// when the exporter goes away.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(cfg.Events.MQTT.Topic, 1,
//	    func(topic string, payload []byte) error {
//	        return handleEvent(payload)
//	    })
package mqtt
