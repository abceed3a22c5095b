package actuator

import (
	"context"
	"time"
)

// Reading is the hardware adapter's view of an actuator after a command.
type Reading struct {
	State     State     `json:"state"`
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// HardwareAdapter executes physical transitions. The adapter owns all
// wire-protocol concerns, including per-call timeouts; the Runtime
// treats any returned error as a command failure.
//
// Adapters receive an entity snapshot and must not retain it.
type HardwareAdapter interface {
	TurnOn(ctx context.Context, a *Entity) (Reading, error)
	TurnOff(ctx context.Context, a *Entity) (Reading, error)
	SetLevel(ctx context.Context, a *Entity, level float64) (Reading, error)
}
