package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fernlea/grow-core/internal/infrastructure/mqtt"
)

// Hardware commands on the wire.
const (
	commandTurnOn   = "turn_on"
	commandTurnOff  = "turn_off"
	commandSetLevel = "set_level"
)

// CommandPublisher is the transport the MQTT adapter publishes on.
// The mqtt client satisfies it.
type CommandPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
}

// commandPayload is the JSON command sent to a hardware gateway.
type commandPayload struct {
	Command    string    `json:"command"`
	ActuatorID string    `json:"actuator_id"`
	UnitID     string    `json:"unit_id"`
	Level      *float64  `json:"level,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// statePayload is the retained canonical state published after a
// delivered command.
type statePayload struct {
	State     State     `json:"state"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// MQTTAdapter drives actuators through an MQTT hardware gateway.
//
// Commands publish to growcore/command/{unit}/{actuator} at the
// configured QoS; delivery to the broker counts as success, and the
// canonical state is mirrored retained on the actuator state topic.
// Gateways that cannot honour a command report back on the ack topic,
// which the next evaluation tick reconciles.
type MQTTAdapter struct {
	publisher CommandPublisher
	topics    mqtt.Topics
	qos       byte
}

// NewMQTTAdapter creates an MQTT hardware adapter.
func NewMQTTAdapter(publisher CommandPublisher, qos byte) *MQTTAdapter {
	return &MQTTAdapter{publisher: publisher, qos: qos}
}

// TurnOn publishes a turn_on command.
func (m *MQTTAdapter) TurnOn(ctx context.Context, a *Entity) (Reading, error) {
	return m.send(ctx, a, commandTurnOn, nil, StateOn, 100)
}

// TurnOff publishes a turn_off command.
func (m *MQTTAdapter) TurnOff(ctx context.Context, a *Entity) (Reading, error) {
	return m.send(ctx, a, commandTurnOff, nil, StateOff, 0)
}

// SetLevel publishes a set_level command.
func (m *MQTTAdapter) SetLevel(ctx context.Context, a *Entity, level float64) (Reading, error) {
	state := StateOn
	if level == 0 {
		state = StateOff
	}
	return m.send(ctx, a, commandSetLevel, &level, state, level)
}

func (m *MQTTAdapter) send(ctx context.Context, a *Entity, command string, level *float64, resultState State, resultValue float64) (Reading, error) {
	if err := ctx.Err(); err != nil {
		return Reading{}, err
	}

	now := time.Now().UTC()
	payload, err := json.Marshal(commandPayload{
		Command:    command,
		ActuatorID: a.ID,
		UnitID:     a.UnitID,
		Level:      level,
		Timestamp:  now,
	})
	if err != nil {
		return Reading{}, fmt.Errorf("marshalling %s command: %w", command, err)
	}

	topic := m.topics.Command(a.UnitID, a.ID)
	if err := m.publisher.Publish(topic, payload, m.qos, false); err != nil {
		return Reading{}, fmt.Errorf("publishing %s to %s: %w", command, topic, err)
	}

	reading := Reading{State: resultState, Value: resultValue, Timestamp: now}

	// Retained state mirror is best-effort; the command already landed.
	if stateJSON, err := json.Marshal(statePayload{State: reading.State, Value: reading.Value, Timestamp: now}); err == nil {
		_ = m.publisher.PublishRetained(m.topics.ActuatorState(a.ID), stateJSON)
	}

	return reading, nil
}
