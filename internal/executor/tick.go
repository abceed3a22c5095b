package executor

import (
	"context"
	"time"

	"github.com/fernlea/grow-core/internal/actuator"
	"github.com/fernlea/grow-core/internal/schedule"
)

// EvaluateUnit is one evaluation tick for a growth unit: for every
// actuator with schedules, resolve the effective rule and execute only
// the transitions needed to converge hardware with the decision.
// Actuators without schedules are left alone.
//
// reading is the unit's latest light-sensor value, nil when unknown.
// Returned results cover only the transitions that were executed.
func (e *Executor) EvaluateUnit(ctx context.Context, unitID string, now time.Time, reading *float64) []ExecutionResult {
	schedules, err := e.store.ListForUnit(ctx, unitID, schedule.ListFilter{EnabledOnly: true})
	if err != nil {
		e.logger.Error("listing schedules for tick failed", "unit", unitID, "error", err)
		return nil
	}

	byActuator := make(map[string][]schedule.Schedule)
	for _, s := range schedules {
		if s.ActuatorID == nil || *s.ActuatorID == "" {
			continue
		}
		byActuator[*s.ActuatorID] = append(byActuator[*s.ActuatorID], s)
	}

	var results []ExecutionResult
	for _, act := range e.runtime.ListForUnit(unitID) {
		candidates, ok := byActuator[act.ID]
		if !ok {
			continue
		}

		winner := e.evaluator.SelectEffective(candidates, now, reading)
		if r, executed := e.converge(ctx, &act, winner); executed {
			results = append(results, r)
		}
	}

	return results
}

// converge compares the actuator's current state with the winning
// schedule's desired state and executes a transition when they differ.
// An ERROR actuator is always re-driven so it can recover.
func (e *Executor) converge(ctx context.Context, act *actuator.Entity, winner *schedule.Schedule) (ExecutionResult, bool) {
	if winner == nil {
		if act.State == actuator.StateOff {
			return ExecutionResult{}, false
		}
		return e.run(ctx, "", act.ID, false, nil), true
	}

	turnOn := winner.StateWhenActive
	var level *float64
	if turnOn {
		level = winner.Value
	}

	if act.State != actuator.StateError {
		if !turnOn && act.State == actuator.StateOff {
			return ExecutionResult{}, false
		}
		if turnOn && act.State == actuator.StateOn {
			if level == nil || act.Level == *level {
				return ExecutionResult{}, false
			}
		}
	}

	return e.run(ctx, winner.ID, act.ID, turnOn, level), true
}
