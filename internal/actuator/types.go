package actuator

import (
	"fmt"
	"time"
)

// State is the actuator state machine position.
type State string

const (
	// StateOff means the actuator is confirmed off.
	StateOff State = "off"

	// StateOn means the actuator is confirmed on.
	StateOn State = "on"

	// StateError means the last command failed. The state clears on the
	// next successful command.
	StateError State = "error"
)

// Entity is the runtime-owned record for one hardware actuator.
//
// Entities are created at registration (from configuration rows) and
// destroyed at unregistration. Only the Runtime mutates them; other
// components receive deep copies.
type Entity struct {
	ID         string `json:"id"`
	UnitID     string `json:"unit_id"`
	Name       string `json:"name"`
	DeviceType string `json:"device_type"`

	State State   `json:"state"`
	Level float64 `json:"level"` // 0-100 analog level, 0 when off

	LastOn  *time.Time `json:"last_on,omitempty"`
	LastOff *time.Time `json:"last_off,omitempty"`

	// Interlocks lists actuator IDs that must not be on while this one
	// is. Interlocks are bidirectional; listing B on A blocks both
	// directions.
	Interlocks []string `json:"interlocks,omitempty"`

	// MaxRuntimeSeconds limits continuous on-time. 0 disables the limit.
	MaxRuntimeSeconds int `json:"max_runtime_seconds"`

	// CooldownSeconds is the minimum off-time before re-activation.
	CooldownSeconds int `json:"cooldown_seconds"`

	// PowerWatts is the rated draw counted against the power budget.
	PowerWatts float64 `json:"power_watts"`

	Operations int64 `json:"operations"`
	Errors     int64 `json:"errors"`

	RegisteredAt time.Time `json:"registered_at"`
}

// DeepCopy creates a completely independent copy of the entity.
func (e *Entity) DeepCopy() *Entity {
	if e == nil {
		return nil
	}

	clone := *e

	if e.LastOn != nil {
		t := *e.LastOn
		clone.LastOn = &t
	}
	if e.LastOff != nil {
		t := *e.LastOff
		clone.LastOff = &t
	}
	if e.Interlocks != nil {
		clone.Interlocks = make([]string, len(e.Interlocks))
		copy(clone.Interlocks, e.Interlocks)
	}

	return &clone
}

// HasInterlock reports whether otherID appears in this entity's
// interlock set.
func (e *Entity) HasInterlock(otherID string) bool {
	for _, id := range e.Interlocks {
		if id == otherID {
			return true
		}
	}
	return false
}

// Validate checks an entity before registration.
func Validate(e *Entity) error {
	if e == nil {
		return fmt.Errorf("%w: entity is nil", ErrInvalid)
	}
	if e.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if e.UnitID == "" {
		return fmt.Errorf("%w: unit_id is required", ErrInvalid)
	}
	if e.PowerWatts < 0 {
		return fmt.Errorf("%w: power_watts must not be negative", ErrInvalid)
	}
	if e.MaxRuntimeSeconds < 0 || e.CooldownSeconds < 0 {
		return fmt.Errorf("%w: runtime limits must not be negative", ErrInvalid)
	}
	for _, other := range e.Interlocks {
		if other == e.ID {
			return fmt.Errorf("%w: actuator cannot interlock with itself", ErrInvalid)
		}
	}
	return nil
}
