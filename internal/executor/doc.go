// Package executor applies decided schedule outcomes to hardware.
//
// ExecuteWithRetry drives one transition through the actuator runtime
// with bounded retries and exponential backoff, recording every outcome
// as an EXECUTED or FAILED history entry. EvaluateUnit is the periodic
// tick: it resolves the effective schedule per actuator and executes
// only the transitions needed to converge. SyncAtStartup runs the same
// resolution once at boot so a restart reaches correct physical state
// without waiting for the first tick.
package executor
