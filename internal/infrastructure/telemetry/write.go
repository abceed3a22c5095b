package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteActuatorState records an actuator state transition.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - actuatorID: Actuator identifier (e.g., "act-light-1")
//   - unitID: Growth unit the actuator belongs to
//   - state: New state ("off", "on", "error")
//   - powerWatts: Rated power draw while in the new state (0 when off)
//
// Example:
//
//	client.WriteActuatorState("act-light-1", "unit-1", "on", 240)
func (c *Client) WriteActuatorState(actuatorID, unitID, state string, powerWatts float64) {
	if !c.IsConnected() {
		return
	}

	stateValue := 0.0
	if state == "on" {
		stateValue = 1.0
	}

	point := write.NewPoint(
		"actuator_state",
		map[string]string{
			"actuator_id": actuatorID,
			"unit_id":     unitID,
			"state":       state,
		},
		map[string]interface{}{
			"value":       stateValue,
			"power_watts": powerWatts,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteExecutionLatency records the duration of a command execution,
// including any retry attempts.
//
// Parameters:
//   - actuatorID: Actuator identifier
//   - command: The command executed (e.g., "turn_on", "set_level")
//   - durationMs: Total execution time in milliseconds
//   - retries: Number of retry attempts before success/failure
//   - success: Whether the execution ultimately succeeded
func (c *Client) WriteExecutionLatency(actuatorID, command string, durationMs float64, retries int, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"execution",
		map[string]string{
			"actuator_id": actuatorID,
			"command":     command,
		},
		map[string]interface{}{
			"duration_ms": durationMs,
			"retries":     retries,
			"success":     success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteHealthScore records an actuator health snapshot score.
//
// Used for tracking actuator reliability over time. Scores range
// from 0 (all operations failing) to 100 (no errors).
//
// Parameters:
//   - actuatorID: Actuator identifier
//   - score: Health score (0-100)
//   - operations: Total operations in the snapshot window
//   - errors: Error count in the snapshot window
func (c *Client) WriteHealthScore(actuatorID string, score float64, operations, errors int64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"actuator_health",
		map[string]string{
			"actuator_id": actuatorID,
		},
		map[string]interface{}{
			"score":      score,
			"operations": operations,
			"errors":     errors,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
