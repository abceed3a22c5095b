package actuator

import (
	"fmt"
	"time"
)

// StateReader exposes the actuator state the Guard inspects. The
// Runtime satisfies it.
type StateReader interface {
	Snapshot() []Entity
}

// Guard evaluates the safety gates before an activation: bidirectional
// interlocks, cooldown since last-off, and the fleet power budget.
//
// The checks run against a point-in-time snapshot and no lock is held
// across the check-then-act window, so two interlocked actuators could
// both pass in a tight race. This is an accepted trade-off: commands
// are infrequent relative to lock hold time, and the next evaluation
// tick re-checks and corrects.
type Guard struct {
	states StateReader
	logger Logger

	// powerBudgetWatts is the ceiling for the summed rated draw of
	// simultaneously-on actuators. 0 disables the budget check.
	powerBudgetWatts float64
}

// NewGuard creates a safety guard over the given state source.
func NewGuard(states StateReader, powerBudgetWatts float64) *Guard {
	return &Guard{
		states:           states,
		powerBudgetWatts: powerBudgetWatts,
		logger:           noopLogger{},
	}
}

// SetLogger sets the logger for the guard.
func (g *Guard) SetLogger(logger Logger) {
	g.logger = logger
}

// CanActivate reports whether the actuator may turn on. When refused,
// the reason describes the failed gate. A refusal is advisory, not an
// error; the guard never retries.
func (g *Guard) CanActivate(id string) (bool, string) {
	now := time.Now().UTC()
	entities := g.states.Snapshot()

	var target *Entity
	for i := range entities {
		if entities[i].ID == id {
			target = &entities[i]
			break
		}
	}
	if target == nil {
		return false, fmt.Sprintf("unknown actuator %s", id)
	}

	for i := range entities {
		other := &entities[i]
		if other.ID == id || other.State != StateOn {
			continue
		}
		if target.HasInterlock(other.ID) || other.HasInterlock(target.ID) {
			return false, fmt.Sprintf("interlocked actuator %s is on", other.ID)
		}
	}

	if target.CooldownSeconds > 0 && target.LastOff != nil {
		cooldown := time.Duration(target.CooldownSeconds) * time.Second
		if elapsed := now.Sub(*target.LastOff); elapsed < cooldown {
			return false, fmt.Sprintf("cooldown: %s remaining", (cooldown - elapsed).Round(time.Second))
		}
	}

	if g.powerBudgetWatts > 0 && target.State != StateOn {
		var drawing float64
		for i := range entities {
			if entities[i].State == StateOn {
				drawing += entities[i].PowerWatts
			}
		}
		if drawing+target.PowerWatts > g.powerBudgetWatts {
			return false, fmt.Sprintf("power budget: %.0fW in use, %.0fW requested, %.0fW ceiling",
				drawing, target.PowerWatts, g.powerBudgetWatts)
		}
	}

	return true, ""
}
