package executor

import (
	"context"
	"time"

	"github.com/fernlea/grow-core/internal/actuator"
	"github.com/fernlea/grow-core/internal/events"
	"github.com/fernlea/grow-core/internal/history"
	"github.com/fernlea/grow-core/internal/schedule"
)

// Execution actions.
const (
	ActionActivate   = "activate"
	ActionDeactivate = "deactivate"
)

// Retry policy: up to maxAttempts tries with backoffBase x 2^attempt
// between failures.
const (
	maxAttempts = 3
	backoffBase = 1000 * time.Millisecond
)

// Logger defines the logging interface for the executor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runtime is the actuator surface the executor drives.
type Runtime interface {
	TurnOn(ctx context.Context, id string) error
	TurnOff(ctx context.Context, id string) error
	SetLevel(ctx context.Context, id string, level float64) error
	Get(id string) (*actuator.Entity, error)
	ListForUnit(unitID string) []actuator.Entity
}

// HistoryRecorder receives one entry per execution outcome.
type HistoryRecorder interface {
	LogExecution(ctx context.Context, entry history.ExecutionEntry) error
}

// Telemetry receives execution latency measurements. Nil disables it.
type Telemetry interface {
	WriteExecutionLatency(actuatorID, command string, durationMs float64, retries int, success bool)
}

// ExecutionResult is the immutable outcome of one attempted transition.
type ExecutionResult struct {
	ScheduleID string `json:"schedule_id"`
	ActuatorID string `json:"actuator_id,omitempty"`
	Action     string `json:"action"`
	Success    bool   `json:"success"`
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	LatencyMS  int64  `json:"latency_ms"`
}

// Executor drives schedule outcomes into the actuator runtime.
type Executor struct {
	runtime   Runtime
	store     *schedule.Store
	evaluator *schedule.Evaluator
	recorder  HistoryRecorder
	logger    Logger

	bus       *events.Bus
	telemetry Telemetry

	// sleep is swapped out in tests.
	sleep func(time.Duration)
}

// New creates an executor over the runtime, store, and evaluator.
func New(runtime Runtime, store *schedule.Store, evaluator *schedule.Evaluator, recorder HistoryRecorder) *Executor {
	return &Executor{
		runtime:   runtime,
		store:     store,
		evaluator: evaluator,
		recorder:  recorder,
		logger:    noopLogger{},
		sleep:     time.Sleep,
	}
}

// SetLogger sets the logger for the executor.
func (e *Executor) SetLogger(logger Logger) {
	e.logger = logger
}

// SetEvents wires the event bus for execution-completed notifications.
func (e *Executor) SetEvents(bus *events.Bus) {
	e.bus = bus
}

// SetTelemetry wires the telemetry sink.
func (e *Executor) SetTelemetry(t Telemetry) {
	e.telemetry = t
}

// ExecuteWithRetry applies one decided outcome for a schedule. When
// activate is true the actuator is driven to the schedule's
// state-when-active (and analog value, if any); otherwise it is turned
// off. Hardware failures retry up to three attempts with exponential
// backoff; safety vetoes are not retried, the next tick re-checks.
//
// A schedule without a linked actuator is advisory-only and succeeds
// as a no-op. Every outcome lands in history.
func (e *Executor) ExecuteWithRetry(ctx context.Context, s *schedule.Schedule, activate bool) ExecutionResult {
	turnOn := activate && s.StateWhenActive

	if s.ActuatorID == nil || *s.ActuatorID == "" {
		action := ActionDeactivate
		if turnOn {
			action = ActionActivate
		}
		result := ExecutionResult{ScheduleID: s.ID, Action: action, Success: true}
		e.record(ctx, result)
		return result
	}

	var level *float64
	if turnOn {
		level = s.Value
	}
	return e.run(ctx, s.ID, *s.ActuatorID, turnOn, level)
}

// run drives one hardware transition with the retry policy and records
// the outcome. An empty scheduleID marks a convergence transition not
// owned by any rule (no active winner means off).
func (e *Executor) run(ctx context.Context, scheduleID, actuatorID string, turnOn bool, level *float64) ExecutionResult {
	action := ActionDeactivate
	if turnOn {
		action = ActionActivate
	}

	result := ExecutionResult{
		ScheduleID: scheduleID,
		ActuatorID: actuatorID,
		Action:     action,
	}

	apply := func() error {
		if !turnOn {
			return e.runtime.TurnOff(ctx, actuatorID)
		}
		if level != nil {
			return e.runtime.SetLevel(ctx, actuatorID, *level)
		}
		return e.runtime.TurnOn(ctx, actuatorID)
	}

	start := time.Now()
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		result.RetryCount = attempt
		lastErr = apply()
		if lastErr == nil {
			break
		}
		if actuator.IsVeto(lastErr) {
			break
		}
		if attempt < maxAttempts-1 {
			e.logger.Warn("execution attempt failed, backing off",
				"schedule", scheduleID, "actuator", actuatorID,
				"attempt", attempt, "error", lastErr)
			e.sleep(backoffBase * (1 << attempt))
		}
	}
	result.LatencyMS = time.Since(start).Milliseconds()

	if lastErr != nil {
		result.Error = lastErr.Error()
		e.logger.Error("execution failed",
			"schedule", scheduleID, "actuator", actuatorID,
			"action", action, "retries", result.RetryCount, "error", lastErr)
	} else {
		result.Success = true
		e.logger.Debug("execution completed",
			"schedule", scheduleID, "actuator", actuatorID,
			"action", action, "latency_ms", result.LatencyMS)
	}

	if e.telemetry != nil {
		e.telemetry.WriteExecutionLatency(actuatorID, action,
			float64(result.LatencyMS), result.RetryCount, result.Success)
	}
	e.record(ctx, result)
	return result
}

// record writes the outcome to history and mirrors it on the bus.
// Recording failures are logged, never fatal.
func (e *Executor) record(ctx context.Context, r ExecutionResult) {
	status := history.StatusExecuted
	if !r.Success {
		status = history.StatusFailed
	}

	if e.recorder != nil {
		entry := history.ExecutionEntry{
			ScheduleID: r.ScheduleID,
			ActuatorID: r.ActuatorID,
			Action:     r.Action,
			Status:     status,
			Error:      r.Error,
			RetryCount: r.RetryCount,
			LatencyMS:  r.LatencyMS,
		}
		if err := e.recorder.LogExecution(ctx, entry); err != nil {
			e.logger.Warn("recording execution failed", "schedule", r.ScheduleID, "error", err)
		}
	}

	if e.bus != nil {
		e.bus.Publish(events.Event{
			Type:       events.TypeExecutionCompleted,
			ScheduleID: r.ScheduleID,
			ActuatorID: r.ActuatorID,
			Action:     r.Action,
			Success:    r.Success,
		})
	}
}
