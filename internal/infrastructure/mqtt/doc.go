// Package mqtt provides the MQTT transport for Growcore.
//
// Hardware adapters publish actuator commands through this client and
// the typed event bus mirrors state-change events to external
// subscribers over the same connection.
//
// # Features
//
//   - Connection management with auto-reconnect and exponential backoff
//   - Last Will and Testament for offline detection
//   - Subscription tracking with automatic restoration on reconnect
//   - Bounded-payload publish with acknowledgement timeout
//   - Panic recovery around message handlers
//
// # Topic scheme
//
//	growcore/command/{unit_id}/{actuator_id}   commands to hardware
//	growcore/ack/{unit_id}/{actuator_id}       command acknowledgements
//	growcore/event/{event_type}                core events for subscribers
//	growcore/system/status                     online/offline status (retained)
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.Command("unit-1", "act-light-1")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
