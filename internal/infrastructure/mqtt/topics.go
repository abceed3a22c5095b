package mqtt

import "fmt"

// Topic prefixes for the Growcore MQTT hierarchy.
//
// Command and acknowledgement topics are keyed by unit and actuator so a
// hardware gateway can subscribe per growth unit.
const (
	// TopicPrefix is the base for all Growcore topics.
	TopicPrefix = "growcore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "growcore/system"
)

// Topics provides builders for Growcore MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	cmdTopic := topics.Command("unit-1", "act-pump-2")
//	// Returns: "growcore/command/unit-1/act-pump-2"
type Topics struct{}

// Command returns the topic for actuator commands to a hardware gateway.
//
// Example: growcore/command/unit-1/act-light-1
func (Topics) Command(unitID, actuatorID string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, unitID, actuatorID)
}

// Ack returns the topic for command acknowledgements from a gateway.
//
// Example: growcore/ack/unit-1/act-light-1
func (Topics) Ack(unitID, actuatorID string) string {
	return fmt.Sprintf("%s/ack/%s/%s", TopicPrefix, unitID, actuatorID)
}

// Event returns the topic for core events.
//
// Example: growcore/event/actuator_state_changed
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// ActuatorState returns the canonical actuator state topic.
// This is the authoritative state published after a confirmed transition.
//
// Example: growcore/actuator/act-light-1/state
func (Topics) ActuatorState(actuatorID string) string {
	return fmt.Sprintf("%s/actuator/%s/state", TopicPrefix, actuatorID)
}

// SensorLux returns the topic a unit's light sensor publishes on.
//
// Example: growcore/sensor/unit-1/lux
func (Topics) SensorLux(unitID string) string {
	return fmt.Sprintf("%s/sensor/%s/lux", TopicPrefix, unitID)
}

// SystemStatus returns the system status topic.
//
// Example: growcore/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllCommands returns a pattern matching all actuator commands.
//
// Pattern: growcore/command/+/+
func (Topics) AllCommands() string {
	return fmt.Sprintf("%s/command/+/+", TopicPrefix)
}

// AllAcks returns a pattern matching all command acknowledgements.
//
// Pattern: growcore/ack/+/+
func (Topics) AllAcks() string {
	return fmt.Sprintf("%s/ack/+/+", TopicPrefix)
}

// AllSensorLux returns a pattern matching all unit light sensors.
//
// Pattern: growcore/sensor/+/lux
func (Topics) AllSensorLux() string {
	return fmt.Sprintf("%s/sensor/+/lux", TopicPrefix)
}

// AllEvents returns a pattern matching all core events.
//
// Pattern: growcore/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Growcore topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: growcore/#
func (Topics) AllTopics() string {
	return "growcore/#"
}
