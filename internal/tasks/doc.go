// Package tasks runs named background jobs on fixed intervals.
//
// The engine registers its periodic work here instead of owning timer
// loops: evaluation ticks, health-snapshot flushes, and pulse turn-off
// timers are all interval or one-shot jobs on a single Scheduler.
//
// Each job runs in its own goroutine with panic isolation: a panicking
// job is logged and skipped, never allowed to kill the scheduler or
// the process.
package tasks
