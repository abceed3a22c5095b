package schedule

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"
)

// Logger defines the logging interface used by this package.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ChangeRecorder mirrors successful schedule mutations to an audit
// trail. Recording failures are logged, never propagated: the mutation
// itself already succeeded.
type ChangeRecorder interface {
	LogChange(ctx context.Context, action ChangeAction, before, after *Schedule, changedFields []string, source, reason string) error
}

// ListFilter narrows ListForUnit results.
type ListFilter struct {
	DeviceType  string // empty matches all
	EnabledOnly bool
}

// changeSource identifies this component in audit entries.
const changeSource = "schedule_store"

// Store is the per-unit, memory-first table of schedule rules.
//
// Units are hydrated lazily via Load; once loaded, all reads for that
// unit are served from memory. Reads for unloaded units fall through to
// the repository transparently.
//
// Every mutation performs the memory change first, then persists, and
// reverts the memory change if persistence fails, so memory and
// database never diverge. The lock is held only across map operations,
// never across a repository call.
type Store struct {
	repo     Repository
	recorder ChangeRecorder
	logger   Logger

	mu        sync.RWMutex
	schedules map[string]*Schedule // by schedule ID
	loaded    map[string]bool      // by unit ID
}

// NewStore creates a schedule store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{
		repo:      repo,
		schedules: make(map[string]*Schedule),
		loaded:    make(map[string]bool),
		logger:    noopLogger{},
	}
}

// SetLogger sets the logger for the store.
func (st *Store) SetLogger(logger Logger) {
	st.logger = logger
}

// SetRecorder sets the audit recorder for the store.
func (st *Store) SetRecorder(recorder ChangeRecorder) {
	st.recorder = recorder
}

// Load hydrates a unit's schedules from the repository and marks the
// unit as loaded. Idempotent: loading an already-loaded unit is a no-op.
func (st *Store) Load(ctx context.Context, unitID string) error {
	st.mu.RLock()
	already := st.loaded[unitID]
	st.mu.RUnlock()
	if already {
		return nil
	}

	schedules, err := st.repo.GetByUnit(ctx, unitID)
	if err != nil {
		return fmt.Errorf("hydrating unit %s: %w", unitID, err)
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	// Re-check under the write lock; a concurrent Load may have won.
	if st.loaded[unitID] {
		return nil
	}
	for i := range schedules {
		s := schedules[i]
		st.schedules[s.ID] = s.DeepCopy()
	}
	st.loaded[unitID] = true

	st.logger.Info("unit schedules loaded", "unit_id", unitID, "count", len(schedules))
	return nil
}

// IsLoaded reports whether a unit has been hydrated into memory.
func (st *Store) IsLoaded(unitID string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.loaded[unitID]
}

// Create validates and persists a new schedule.
//
// An empty ID is generated; CreatedAt defaults to now. On persistence
// failure the in-memory insert is undone and the caller receives
// ErrPersistence.
func (st *Store) Create(ctx context.Context, s *Schedule) error {
	if err := Validate(s); err != nil {
		return err
	}

	if s.ID == "" {
		s.ID = GenerateID()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	st.mu.Lock()
	if _, exists := st.schedules[s.ID]; exists {
		st.mu.Unlock()
		return ErrExists
	}
	inMemory := st.loaded[s.UnitID]
	if inMemory {
		st.schedules[s.ID] = s.DeepCopy()
	}
	st.mu.Unlock()

	if err := st.repo.Create(ctx, s); err != nil {
		if inMemory {
			st.mu.Lock()
			delete(st.schedules, s.ID)
			st.mu.Unlock()
		}
		st.logger.Error("schedule create rolled back", "schedule_id", s.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	st.record(ctx, ActionCreated, nil, s, nil)
	st.logger.Info("schedule created", "schedule_id", s.ID, "unit_id", s.UnitID, "name", s.Name)
	st.warnConflicts(ctx, s, "")
	return nil
}

// Update validates and persists changes to an existing schedule.
// ID, UnitID and CreatedAt are immutable; the stored values win.
//
// On persistence failure the in-memory copy is restored to the exact
// pre-change snapshot.
func (st *Store) Update(ctx context.Context, s *Schedule) error {
	if s == nil || s.ID == "" {
		return ErrInvalid
	}

	before, err := st.Get(ctx, s.ID)
	if err != nil {
		return err
	}

	s.UnitID = before.UnitID
	s.CreatedAt = before.CreatedAt
	if err := Validate(s); err != nil {
		return err
	}

	st.mu.Lock()
	inMemory := st.loaded[s.UnitID]
	if inMemory {
		st.schedules[s.ID] = s.DeepCopy()
	}
	st.mu.Unlock()

	if err := st.repo.Update(ctx, s); err != nil {
		if inMemory {
			st.mu.Lock()
			st.schedules[s.ID] = before.DeepCopy()
			st.mu.Unlock()
		}
		st.logger.Error("schedule update rolled back", "schedule_id", s.ID, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	st.record(ctx, ActionUpdated, before, s, diffFields(before, s))
	st.logger.Info("schedule updated", "schedule_id", s.ID, "unit_id", s.UnitID)
	st.warnConflicts(ctx, s, s.ID)
	return nil
}

// Delete removes a schedule.
func (st *Store) Delete(ctx context.Context, id string) error {
	before, err := st.Get(ctx, id)
	if err != nil {
		return err
	}

	st.mu.Lock()
	inMemory := st.loaded[before.UnitID]
	if inMemory {
		delete(st.schedules, id)
	}
	st.mu.Unlock()

	if err := st.repo.Delete(ctx, id); err != nil {
		if inMemory {
			st.mu.Lock()
			st.schedules[id] = before.DeepCopy()
			st.mu.Unlock()
		}
		st.logger.Error("schedule delete rolled back", "schedule_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	st.record(ctx, ActionDeleted, before, nil, nil)
	st.logger.Info("schedule deleted", "schedule_id", id, "unit_id", before.UnitID)
	return nil
}

// SetEnabled flips a schedule's enabled flag.
func (st *Store) SetEnabled(ctx context.Context, id string, enabled bool) error {
	before, err := st.Get(ctx, id)
	if err != nil {
		return err
	}
	if before.Enabled == enabled {
		return nil
	}

	after := before.DeepCopy()
	after.Enabled = enabled

	st.mu.Lock()
	inMemory := st.loaded[before.UnitID]
	if inMemory {
		st.schedules[id] = after.DeepCopy()
	}
	st.mu.Unlock()

	if err := st.repo.SetEnabled(ctx, id, enabled); err != nil {
		if inMemory {
			st.mu.Lock()
			st.schedules[id] = before.DeepCopy()
			st.mu.Unlock()
		}
		st.logger.Error("schedule enable toggle rolled back", "schedule_id", id, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	action := ActionEnabled
	if !enabled {
		action = ActionDisabled
	}
	st.record(ctx, action, before, after, []string{"enabled"})
	st.logger.Info("schedule enabled flag set", "schedule_id", id, "enabled", enabled)
	return nil
}

// Get retrieves a schedule by ID. Memory is checked first; misses fall
// through to the repository. The result is a deep copy.
func (st *Store) Get(ctx context.Context, id string) (*Schedule, error) {
	st.mu.RLock()
	cached, ok := st.schedules[id]
	st.mu.RUnlock()
	if ok {
		return cached.DeepCopy(), nil
	}

	return st.repo.GetByID(ctx, id)
}

// ListForUnit retrieves a unit's schedules, optionally filtered.
// Loaded units are served from memory; unloaded units from the
// repository. Results are ordered by (-priority, created_at, id).
func (st *Store) ListForUnit(ctx context.Context, unitID string, filter ListFilter) ([]Schedule, error) {
	st.mu.RLock()
	if st.loaded[unitID] {
		var out []Schedule
		for _, s := range st.schedules {
			if s.UnitID == unitID && matchesFilter(s, filter) {
				out = append(out, *s.DeepCopy())
			}
		}
		st.mu.RUnlock()
		sortSchedules(out)
		return out, nil
	}
	st.mu.RUnlock()

	all, err := st.repo.GetByUnit(ctx, unitID)
	if err != nil {
		return nil, err
	}
	var out []Schedule
	for i := range all {
		if matchesFilter(&all[i], filter) {
			out = append(out, all[i])
		}
	}
	sortSchedules(out)
	return out, nil
}

// ListForActuator retrieves all in-memory schedules bound to a specific
// actuator, across every loaded unit.
func (st *Store) ListForActuator(_ context.Context, actuatorID string) ([]Schedule, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	var out []Schedule
	for _, s := range st.schedules {
		if s.ActuatorID != nil && *s.ActuatorID == actuatorID {
			out = append(out, *s.DeepCopy())
		}
	}
	sortSchedules(out)
	return out, nil
}

// Clear evicts a unit's schedules from memory and marks it unloaded.
// Persistence is untouched; a later Load re-hydrates.
func (st *Store) Clear(unitID string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	for id, s := range st.schedules {
		if s.UnitID == unitID {
			delete(st.schedules, id)
		}
	}
	delete(st.loaded, unitID)

	st.logger.Debug("unit schedules cleared", "unit_id", unitID)
}

// record mirrors a successful mutation to the audit trail.
func (st *Store) record(ctx context.Context, action ChangeAction, before, after *Schedule, changedFields []string) {
	if st.recorder == nil {
		return
	}
	if err := st.recorder.LogChange(ctx, action, before, after, changedFields, changeSource, ""); err != nil {
		id := ""
		if after != nil {
			id = after.ID
		} else if before != nil {
			id = before.ID
		}
		st.logger.Warn("recording schedule change failed", "schedule_id", id, "action", action, "error", err)
	}
}

// warnConflicts surfaces advisory overlaps after a mutation. Conflicts
// never block a create or update; the evaluator resolves them by
// priority at run time.
func (st *Store) warnConflicts(ctx context.Context, s *Schedule, excludeID string) {
	conflicts, err := st.DetectConflicts(ctx, s, excludeID)
	if err != nil {
		st.logger.Warn("conflict detection failed", "schedule_id", s.ID, "error", err)
		return
	}
	for _, c := range conflicts {
		st.logger.Warn("schedule overlap detected",
			"schedule_id", c.ScheduleID,
			"other_id", c.OtherID,
			"overlap_start", c.OverlapStart,
			"overlap_end", c.OverlapEnd,
			"resolution", c.Resolution,
		)
	}
}

func matchesFilter(s *Schedule, f ListFilter) bool {
	if f.DeviceType != "" && s.DeviceType != f.DeviceType {
		return false
	}
	if f.EnabledOnly && !s.Enabled {
		return false
	}
	return true
}

// sortSchedules orders by the evaluator's run-time precedence so lists
// read in winner-first order.
func sortSchedules(schedules []Schedule) {
	sort.Slice(schedules, func(i, j int) bool {
		a, b := &schedules[i], &schedules[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// diffFields returns the names of fields that differ between two
// schedule snapshots, for audit changed-field lists.
func diffFields(before, after *Schedule) []string {
	var fields []string

	if before.Name != after.Name {
		fields = append(fields, "name")
	}
	if before.DeviceType != after.DeviceType {
		fields = append(fields, "device_type")
	}
	if !equalStringPtr(before.ActuatorID, after.ActuatorID) {
		fields = append(fields, "actuator_id")
	}
	if before.Type != after.Type {
		fields = append(fields, "schedule_type")
	}
	if before.StartTime != after.StartTime {
		fields = append(fields, "start_time")
	}
	if before.EndTime != after.EndTime {
		fields = append(fields, "end_time")
	}
	if !reflect.DeepEqual(before.DaysOfWeek, after.DaysOfWeek) {
		fields = append(fields, "days_of_week")
	}
	if before.Enabled != after.Enabled {
		fields = append(fields, "enabled")
	}
	if before.Priority != after.Priority {
		fields = append(fields, "priority")
	}
	if !equalFloatPtr(before.Value, after.Value) {
		fields = append(fields, "value")
	}
	if before.StateWhenActive != after.StateWhenActive {
		fields = append(fields, "state_when_active")
	}
	if !reflect.DeepEqual(before.Photoperiod, after.Photoperiod) {
		fields = append(fields, "photoperiod")
	}
	if !reflect.DeepEqual(before.Metadata, after.Metadata) {
		fields = append(fields, "metadata")
	}

	return fields
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
