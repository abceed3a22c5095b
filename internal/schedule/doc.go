// Package schedule implements the rule engine for growth-unit automation.
//
// A Schedule is a persisted rule describing when an actuator or device
// class should be active: a simple daily interval, or a photoperiod
// (day/night) rule resolved from one of four evidence sources.
//
// The package is organised around five collaborating pieces:
//
//   - Store: per-unit memory-first table of rules, lazily hydrated from
//     a Repository. Mutations touch memory first, then persistence, and
//     roll back on persistence failure so the two never diverge.
//   - Conflict detection: expands rules into day-stamped minute segments
//     (overnight rules contribute two segments) and reports pairwise
//     overlaps. Advisory only; run-time resolution is by priority.
//   - PhotoperiodResolver: decides day/night from the schedule window,
//     a light sensor with hysteresis, a hybrid of both, or a solar
//     ephemeris collaborator.
//   - Evaluator: picks the single effective rule among active candidates
//     using (-priority, created_at, id) ordering.
//   - Repository: the persistence contract, with a SQLite implementation.
//
// # Thread Safety
//
// Store and PhotoperiodResolver are safe for concurrent use. Locks are
// held only across map operations, never across persistence or hardware
// calls.
package schedule
