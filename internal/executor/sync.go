package executor

import (
	"context"
	"time"
)

// SyncAtStartup hydrates each unit's schedules and applies the
// effective state to hardware immediately, so a process restart
// reaches correct physical state without waiting for the first tick.
//
// Per-unit and per-actuator failures are logged and collected in the
// returned results; they never abort the pass for the remaining fleet.
func (e *Executor) SyncAtStartup(ctx context.Context, units []string) []ExecutionResult {
	now := time.Now()
	var results []ExecutionResult

	for _, unitID := range units {
		if err := e.store.Load(ctx, unitID); err != nil {
			e.logger.Error("startup sync: loading unit failed", "unit", unitID, "error", err)
			continue
		}
		results = append(results, e.EvaluateUnit(ctx, unitID, now, nil)...)
	}

	applied, failed := 0, 0
	for _, r := range results {
		if r.Success {
			applied++
		} else {
			failed++
		}
	}
	e.logger.Info("startup synchronization complete",
		"units", len(units), "applied", applied, "failed", failed)

	return results
}
