package actuator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fernlea/grow-core/internal/events"
	"github.com/fernlea/grow-core/internal/tasks"
)

// Logger defines the logging interface used by the actuator package.
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

// Gate approves or vetoes activations. The Guard satisfies it.
type Gate interface {
	CanActivate(id string) (bool, string)
}

// OnceScheduler runs deferred one-shot work. The tasks scheduler
// satisfies it; Pulse uses it for the delayed turn-off.
type OnceScheduler interface {
	RegisterOnce(name string, fn tasks.Func, delay time.Duration, jobID string) error
	Cancel(jobID string) error
}

// Telemetry receives actuator measurements. The telemetry client
// satisfies it; nil disables telemetry.
type Telemetry interface {
	WriteActuatorState(actuatorID, unitID, state string, powerWatts float64)
	WriteHealthScore(actuatorID string, score float64, operations, errors int64)
}

// Runtime holds the authoritative entity for every registered actuator
// and executes state transitions through the hardware adapter.
//
// The internal map lock is held only across map operations, never
// across an adapter or repository call.
type Runtime struct {
	adapter HardwareAdapter
	repo    Repository
	logger  Logger

	guard     Gate
	bus       *events.Bus
	telemetry Telemetry
	scheduler OnceScheduler

	mu       sync.RWMutex
	entities map[string]*Entity

	healthMu sync.Mutex
	health   map[string]*healthWindow
}

// NewRuntime creates an actuator runtime over the given adapter and
// repository. Guard, events, telemetry, and scheduler are wired with
// setters before use.
func NewRuntime(adapter HardwareAdapter, repo Repository) *Runtime {
	return &Runtime{
		adapter:  adapter,
		repo:     repo,
		logger:   noopLogger{},
		entities: make(map[string]*Entity),
		health:   make(map[string]*healthWindow),
	}
}

// SetLogger sets the logger for the runtime.
func (r *Runtime) SetLogger(logger Logger) {
	r.logger = logger
}

// SetGuard wires the safety gate checked before activations.
func (r *Runtime) SetGuard(g Gate) {
	r.guard = g
}

// SetEvents wires the event bus for state-change notifications.
func (r *Runtime) SetEvents(bus *events.Bus) {
	r.bus = bus
}

// SetTelemetry wires the telemetry sink.
func (r *Runtime) SetTelemetry(t Telemetry) {
	r.telemetry = t
}

// SetScheduler wires the one-shot scheduler used by Pulse.
func (r *Runtime) SetScheduler(s OnceScheduler) {
	r.scheduler = s
}

// Register adds an actuator to the runtime and persists its
// configuration row. New actuators start OFF.
func (r *Runtime) Register(ctx context.Context, e *Entity) error {
	if err := Validate(e); err != nil {
		return err
	}

	r.mu.RLock()
	_, exists := r.entities[e.ID]
	r.mu.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrExists, e.ID)
	}

	entity := e.DeepCopy()
	entity.State = StateOff
	entity.Level = 0
	if entity.RegisteredAt.IsZero() {
		entity.RegisteredAt = time.Now().UTC()
	}

	if r.repo != nil {
		if err := r.repo.Save(ctx, entity); err != nil {
			return fmt.Errorf("persisting actuator %s: %w", entity.ID, err)
		}
	}

	r.mu.Lock()
	r.entities[entity.ID] = entity
	r.mu.Unlock()

	r.healthMu.Lock()
	r.health[entity.ID] = &healthWindow{lastAt: entity.RegisteredAt}
	r.healthMu.Unlock()

	r.publish(events.Event{
		Type:       events.TypeActuatorRegistered,
		ActuatorID: entity.ID,
		UnitID:     entity.UnitID,
		State:      string(entity.State),
	})
	r.logger.Info("actuator registered", "id", entity.ID, "unit", entity.UnitID, "type", entity.DeviceType)
	return nil
}

// Unregister removes an actuator. An ON actuator is turned off
// defensively first; a turn-off failure is logged but does not block
// removal.
func (r *Runtime) Unregister(ctx context.Context, id string) error {
	snap, err := r.Get(id)
	if err != nil {
		return err
	}

	if snap.State == StateOn {
		if err := r.TurnOff(ctx, id); err != nil {
			r.logger.Warn("defensive turn-off before unregister failed", "id", id, "error", err)
		}
	}

	if r.repo != nil {
		if err := r.repo.Delete(ctx, id); err != nil {
			return fmt.Errorf("deleting actuator %s: %w", id, err)
		}
	}

	r.mu.Lock()
	delete(r.entities, id)
	r.mu.Unlock()

	r.healthMu.Lock()
	delete(r.health, id)
	r.healthMu.Unlock()

	r.publish(events.Event{
		Type:       events.TypeActuatorUnregistered,
		ActuatorID: id,
		UnitID:     snap.UnitID,
	})
	r.logger.Info("actuator unregistered", "id", id)
	return nil
}

// Get retrieves an actuator by ID. The returned entity is a deep copy.
func (r *Runtime) Get(id string) (*Entity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entities[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.DeepCopy(), nil
}

// Snapshot returns deep copies of every registered entity.
func (r *Runtime) Snapshot() []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entity, 0, len(r.entities))
	for _, e := range r.entities {
		out = append(out, *e.DeepCopy())
	}
	return out
}

// ListForUnit returns deep copies of the unit's entities.
func (r *Runtime) ListForUnit(unitID string) []Entity {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entity
	for _, e := range r.entities {
		if e.UnitID == unitID {
			out = append(out, *e.DeepCopy())
		}
	}
	return out
}

// Count returns the number of registered actuators.
func (r *Runtime) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entities)
}

// TurnOn activates an actuator. The safety gate is consulted first;
// a veto returns ErrSafetyVeto. Already-on actuators are a no-op.
func (r *Runtime) TurnOn(ctx context.Context, id string) error {
	snap, err := r.Get(id)
	if err != nil {
		return err
	}
	if snap.State == StateOn {
		return nil
	}

	if r.guard != nil {
		if ok, reason := r.guard.CanActivate(id); !ok {
			r.logger.Info("activation vetoed", "id", id, "reason", reason)
			return fmt.Errorf("%w: %s", ErrSafetyVeto, reason)
		}
	}

	reading, hwErr := r.adapter.TurnOn(ctx, snap)
	return r.applyResult(ctx, id, reading, hwErr, func(e *Entity, now time.Time) {
		e.State = StateOn
		e.LastOn = &now
		if reading.Value > 0 {
			e.Level = reading.Value
		}
	})
}

// TurnOff deactivates an actuator. Already-off actuators are a no-op;
// an ERROR actuator is still commanded off so hardware and entity
// reconverge.
func (r *Runtime) TurnOff(ctx context.Context, id string) error {
	snap, err := r.Get(id)
	if err != nil {
		return err
	}
	if snap.State == StateOff {
		return nil
	}

	reading, hwErr := r.adapter.TurnOff(ctx, snap)
	return r.applyResult(ctx, id, reading, hwErr, func(e *Entity, now time.Time) {
		e.State = StateOff
		e.Level = 0
		e.LastOff = &now
	})
}

// Toggle flips the actuator between on and off.
func (r *Runtime) Toggle(ctx context.Context, id string) error {
	snap, err := r.Get(id)
	if err != nil {
		return err
	}
	if snap.State == StateOn {
		return r.TurnOff(ctx, id)
	}
	return r.TurnOn(ctx, id)
}

// SetLevel drives the actuator to an analog level between 0 and 100.
// A level above zero counts as an activation and passes through the
// safety gate when the actuator is not already on; zero turns it off.
func (r *Runtime) SetLevel(ctx context.Context, id string, level float64) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("%w: %.2f", ErrInvalidLevel, level)
	}

	snap, err := r.Get(id)
	if err != nil {
		return err
	}

	if level > 0 && snap.State != StateOn && r.guard != nil {
		if ok, reason := r.guard.CanActivate(id); !ok {
			r.logger.Info("activation vetoed", "id", id, "reason", reason)
			return fmt.Errorf("%w: %s", ErrSafetyVeto, reason)
		}
	}

	reading, hwErr := r.adapter.SetLevel(ctx, snap, level)
	return r.applyResult(ctx, id, reading, hwErr, func(e *Entity, now time.Time) {
		e.Level = level
		if level > 0 {
			if e.State != StateOn {
				e.LastOn = &now
			}
			e.State = StateOn
		} else {
			if e.State == StateOn {
				e.LastOff = &now
			}
			e.State = StateOff
		}
	})
}

// Pulse turns the actuator on and schedules a turn-off after the given
// duration. The turn-off is a deferred one-shot task, not a blocking
// sleep; re-pulsing resets the pending turn-off.
func (r *Runtime) Pulse(ctx context.Context, id string, duration time.Duration) error {
	if r.scheduler == nil {
		return ErrNoScheduler
	}

	if err := r.TurnOn(ctx, id); err != nil {
		return err
	}

	jobID := "pulse-" + id
	_ = r.scheduler.Cancel(jobID)
	err := r.scheduler.RegisterOnce("pulse turn-off "+id, func(taskCtx context.Context) {
		if err := r.TurnOff(taskCtx, id); err != nil {
			r.logger.Error("pulse turn-off failed", "id", id, "error", err)
		}
	}, duration, jobID)
	if err != nil {
		return fmt.Errorf("scheduling pulse turn-off for %s: %w", id, err)
	}

	r.logger.Debug("pulse started", "id", id, "duration", duration)
	return nil
}

// applyResult folds one adapter outcome into the entity under the map
// lock, then emits events and telemetry from the updated copy.
func (r *Runtime) applyResult(ctx context.Context, id string, reading Reading, hwErr error, apply func(*Entity, time.Time)) error {
	now := time.Now().UTC()
	if !reading.Timestamp.IsZero() {
		now = reading.Timestamp.UTC()
	}

	r.mu.Lock()
	e, ok := r.entities[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	e.Operations++
	if hwErr != nil {
		e.Errors++
		e.State = StateError
	} else {
		apply(e, now)
	}
	updated := e.DeepCopy()
	r.mu.Unlock()

	r.publish(events.Event{
		Type:       events.TypeStateChanged,
		Timestamp:  now,
		ActuatorID: updated.ID,
		UnitID:     updated.UnitID,
		State:      string(updated.State),
		Value:      updated.Level,
	})
	if r.telemetry != nil {
		draw := 0.0
		if updated.State == StateOn {
			draw = updated.PowerWatts
		}
		r.telemetry.WriteActuatorState(updated.ID, updated.UnitID, string(updated.State), draw)
	}

	r.recordHealth(ctx, updated.ID, hwErr != nil)

	if hwErr != nil {
		r.logger.Error("hardware command failed", "id", id, "error", hwErr)
		return fmt.Errorf("%w: %s", ErrHardware, hwErr)
	}
	r.logger.Debug("actuator transitioned", "id", id, "state", updated.State, "level", updated.Level)
	return nil
}

// recordHealth accumulates one operation into the actuator's snapshot
// window and cuts a snapshot when the window fills or ages out.
func (r *Runtime) recordHealth(ctx context.Context, id string, isError bool) {
	now := time.Now().UTC()

	r.healthMu.Lock()
	w, ok := r.health[id]
	if !ok {
		w = &healthWindow{lastAt: now}
		r.health[id] = w
	}
	w.ops++
	if isError {
		w.errs++
	}

	var due *HealthSnapshot
	if w.ops >= snapshotOperations || now.Sub(w.lastAt) >= snapshotInterval {
		due = r.cutSnapshotLocked(id, w, now)
	}
	r.healthMu.Unlock()

	if due != nil {
		r.persistSnapshot(ctx, due)
	}
}

// FlushHealth cuts a snapshot for every actuator with activity since
// its last snapshot. The periodic health task calls this so idle hours
// still produce samples.
func (r *Runtime) FlushHealth(ctx context.Context) {
	now := time.Now().UTC()

	r.healthMu.Lock()
	var due []*HealthSnapshot
	for id, w := range r.health {
		if w.ops == 0 {
			continue
		}
		due = append(due, r.cutSnapshotLocked(id, w, now))
	}
	r.healthMu.Unlock()

	for _, s := range due {
		r.persistSnapshot(ctx, s)
	}
}

// cutSnapshotLocked builds a snapshot from the window and resets it.
// Caller holds healthMu.
func (r *Runtime) cutSnapshotLocked(id string, w *healthWindow, now time.Time) *HealthSnapshot {
	score := healthScore(w.ops, w.errs)
	snapshot := &HealthSnapshot{
		ActuatorID: id,
		Score:      score,
		Rating:     Rating(score),
		Operations: w.ops,
		Errors:     w.errs,
		CreatedAt:  now,
	}
	w.ops = 0
	w.errs = 0
	w.lastAt = now
	return snapshot
}

// persistSnapshot writes a snapshot outside any lock and emits the
// degradation event when the score drops below the good threshold.
func (r *Runtime) persistSnapshot(ctx context.Context, s *HealthSnapshot) {
	if r.repo != nil {
		if err := r.repo.CreateHealthSnapshot(ctx, s); err != nil {
			r.logger.Warn("persisting health snapshot failed", "actuator", s.ActuatorID, "error", err)
		}
	}
	if r.telemetry != nil {
		r.telemetry.WriteHealthScore(s.ActuatorID, s.Score, s.Operations, s.Errors)
	}
	if s.Score < 70 {
		unitID := ""
		if e, err := r.Get(s.ActuatorID); err == nil {
			unitID = e.UnitID
		}
		r.publish(events.Event{
			Type:         events.TypeHealthDegraded,
			ActuatorID:   s.ActuatorID,
			UnitID:       unitID,
			HealthScore:  s.Score,
			HealthBucket: s.Rating,
		})
		r.logger.Warn("actuator health degraded", "id", s.ActuatorID, "score", s.Score, "rating", s.Rating)
	}
}

func (r *Runtime) publish(e events.Event) {
	if r.bus != nil {
		r.bus.Publish(e)
	}
}

// IsVeto reports whether an error from a transition was a safety veto
// rather than a hardware fault.
func IsVeto(err error) bool {
	return errors.Is(err, ErrSafetyVeto)
}
