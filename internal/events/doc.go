// Package events provides the typed in-process event bus.
//
// Components publish a fixed set of event variants (actuator state
// changes, registrations, health degradation, execution outcomes,
// schedule changes) and subscribers receive them synchronously.
// An optional publisher mirror forwards every event to MQTT for
// external subscribers.
package events
