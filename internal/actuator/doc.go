// Package actuator owns the runtime state of every registered hardware
// actuator and the safety gates guarding activation.
//
// The Runtime holds the authoritative in-memory entity per actuator
// (state machine OFF / ON / ERROR) and delegates physical transitions
// to a HardwareAdapter collaborator. The Guard evaluates interlocks,
// cooldowns, and the fleet power budget immediately before an
// activation. Per-actuator operation and error counters feed periodic
// health snapshots.
//
// Schedule and executor code never mutate actuator entities directly;
// all transitions go through the Runtime's API.
package actuator
