package schedule

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

// mockRepository is an in-memory Repository with failure injection.
type mockRepository struct {
	mu        sync.Mutex
	schedules map[string]*Schedule

	failCreate     bool
	failUpdate     bool
	failDelete     bool
	failSetEnabled bool
}

var errRepoFailure = errors.New("repository failure")

func newMockRepository() *mockRepository {
	return &mockRepository{schedules: make(map[string]*Schedule)}
}

func (m *mockRepository) GetByID(_ context.Context, id string) (*Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.DeepCopy(), nil
}

func (m *mockRepository) GetByUnit(_ context.Context, unitID string) ([]Schedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Schedule
	for _, s := range m.schedules {
		if s.UnitID == unitID {
			out = append(out, *s.DeepCopy())
		}
	}
	return out, nil
}

func (m *mockRepository) Create(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return errRepoFailure
	}
	if _, ok := m.schedules[s.ID]; ok {
		return ErrExists
	}
	m.schedules[s.ID] = s.DeepCopy()
	return nil
}

func (m *mockRepository) Update(_ context.Context, s *Schedule) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate {
		return errRepoFailure
	}
	if _, ok := m.schedules[s.ID]; !ok {
		return ErrNotFound
	}
	m.schedules[s.ID] = s.DeepCopy()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete {
		return errRepoFailure
	}
	if _, ok := m.schedules[id]; !ok {
		return ErrNotFound
	}
	delete(m.schedules, id)
	return nil
}

func (m *mockRepository) SetEnabled(_ context.Context, id string, enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSetEnabled {
		return errRepoFailure
	}
	s, ok := m.schedules[id]
	if !ok {
		return ErrNotFound
	}
	s.Enabled = enabled
	return nil
}

// mockRecorder captures audit calls.
type mockRecorder struct {
	mu      sync.Mutex
	actions []ChangeAction
	fields  [][]string
}

func (m *mockRecorder) LogChange(_ context.Context, action ChangeAction, _, _ *Schedule, changedFields []string, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.actions = append(m.actions, action)
	m.fields = append(m.fields, changedFields)
	return nil
}

func testSchedule(id, unitID string) *Schedule {
	return &Schedule{
		ID:              id,
		UnitID:          unitID,
		Name:            "veg lights",
		DeviceType:      "light",
		Type:            TypeInterval,
		StartTime:       "06:00",
		EndTime:         "18:00",
		Enabled:         true,
		DaysOfWeek:      []time.Weekday{time.Monday, time.Tuesday, time.Wednesday},
		Priority:        5,
		StateWhenActive: true,
		CreatedAt:       time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC),
	}
}

func TestStoreCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	store := NewStore(repo)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	s := testSchedule("sch-1", "unit-1")
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "sch-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "veg lights" {
		t.Errorf("Name = %q, want %q", got.Name, "veg lights")
	}

	// Returned copy must be isolated from the cache.
	got.Name = "mutated"
	again, _ := store.Get(ctx, "sch-1")
	if again.Name != "veg lights" {
		t.Error("cache was mutated through a returned copy")
	}
}

func TestStoreCreateGeneratesID(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMockRepository())

	s := testSchedule("", "unit-1")
	if err := store.Create(ctx, s); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.ID == "" {
		t.Fatal("Create did not generate an ID")
	}
}

func TestStoreCreateRejectsInvalid(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	store := NewStore(repo)

	s := testSchedule("sch-1", "unit-1")
	s.StartTime = "25:00"

	if err := store.Create(ctx, s); !errors.Is(err, ErrInvalidTime) {
		t.Fatalf("Create with bad time: got %v, want ErrInvalidTime", err)
	}
	if len(repo.schedules) != 0 {
		t.Error("invalid schedule reached the repository")
	}
}

func TestStoreCreateRollbackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.failCreate = true
	store := NewStore(repo)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	s := testSchedule("sch-1", "unit-1")
	if err := store.Create(ctx, s); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Create: got %v, want ErrPersistence", err)
	}

	if _, err := store.Get(ctx, "sch-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("rolled-back schedule still in memory: %v", err)
	}
}

func TestStoreUpdateRollbackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	store := NewStore(repo)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	original := testSchedule("sch-1", "unit-1")
	if err := store.Create(ctx, original); err != nil {
		t.Fatalf("Create: %v", err)
	}

	before, _ := store.Get(ctx, "sch-1")

	repo.failUpdate = true
	changed := before.DeepCopy()
	changed.Name = "renamed"
	changed.Priority = 99

	if err := store.Update(ctx, changed); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Update: got %v, want ErrPersistence", err)
	}

	after, err := store.Get(ctx, "sch-1")
	if err != nil {
		t.Fatalf("Get after rollback: %v", err)
	}
	if !reflect.DeepEqual(before, after) {
		t.Errorf("rollback not byte-for-byte:\nbefore: %+v\nafter:  %+v", before, after)
	}
}

func TestStoreUpdateRecordsChangedFields(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	recorder := &mockRecorder{}
	store := NewStore(repo)
	store.SetRecorder(recorder)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Create(ctx, testSchedule("sch-1", "unit-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	changed, _ := store.Get(ctx, "sch-1")
	changed.Name = "bloom lights"
	changed.Priority = 8
	if err := store.Update(ctx, changed); err != nil {
		t.Fatalf("Update: %v", err)
	}

	want := []string{"name", "priority"}
	got := recorder.fields[len(recorder.fields)-1]
	if !reflect.DeepEqual(got, want) {
		t.Errorf("changed fields = %v, want %v", got, want)
	}
}

func TestStoreDeleteRollbackOnPersistenceFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	store := NewStore(repo)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Create(ctx, testSchedule("sch-1", "unit-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	repo.failDelete = true
	if err := store.Delete(ctx, "sch-1"); !errors.Is(err, ErrPersistence) {
		t.Fatalf("Delete: got %v, want ErrPersistence", err)
	}

	if _, err := store.Get(ctx, "sch-1"); err != nil {
		t.Errorf("schedule missing from memory after failed delete: %v", err)
	}
}

func TestStoreSetEnabled(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	recorder := &mockRecorder{}
	store := NewStore(repo)
	store.SetRecorder(recorder)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Create(ctx, testSchedule("sch-1", "unit-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := store.SetEnabled(ctx, "sch-1", false); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
	got, _ := store.Get(ctx, "sch-1")
	if got.Enabled {
		t.Error("schedule still enabled")
	}
	if recorder.actions[len(recorder.actions)-1] != ActionDisabled {
		t.Errorf("recorded action = %v, want disabled", recorder.actions)
	}

	// Same value again is a no-op, no audit entry.
	n := len(recorder.actions)
	if err := store.SetEnabled(ctx, "sch-1", false); err != nil {
		t.Fatalf("SetEnabled no-op: %v", err)
	}
	if len(recorder.actions) != n {
		t.Error("no-op toggle produced an audit entry")
	}
}

func TestStoreLoadIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.schedules["sch-1"] = testSchedule("sch-1", "unit-1")
	store := NewStore(repo)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if !store.IsLoaded("unit-1") {
		t.Error("unit not marked loaded")
	}
}

func TestStoreListForUnitFilters(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	store := NewStore(repo)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	light := testSchedule("sch-1", "unit-1")
	fan := testSchedule("sch-2", "unit-1")
	fan.DeviceType = "fan"
	disabled := testSchedule("sch-3", "unit-1")
	disabled.Enabled = false

	for _, s := range []*Schedule{light, fan, disabled} {
		if err := store.Create(ctx, s); err != nil {
			t.Fatalf("Create %s: %v", s.ID, err)
		}
	}

	all, err := store.ListForUnit(ctx, "unit-1", ListFilter{})
	if err != nil {
		t.Fatalf("ListForUnit: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("unfiltered count = %d, want 3", len(all))
	}

	lights, _ := store.ListForUnit(ctx, "unit-1", ListFilter{DeviceType: "light"})
	if len(lights) != 2 {
		t.Errorf("light count = %d, want 2", len(lights))
	}

	enabled, _ := store.ListForUnit(ctx, "unit-1", ListFilter{EnabledOnly: true})
	if len(enabled) != 2 {
		t.Errorf("enabled count = %d, want 2", len(enabled))
	}
}

func TestStoreUnloadedUnitFallsBackToRepository(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	repo.schedules["sch-9"] = testSchedule("sch-9", "unit-9")
	store := NewStore(repo)

	got, err := store.Get(ctx, "sch-9")
	if err != nil {
		t.Fatalf("Get from unloaded unit: %v", err)
	}
	if got.ID != "sch-9" {
		t.Errorf("ID = %q, want sch-9", got.ID)
	}

	list, err := store.ListForUnit(ctx, "unit-9", ListFilter{})
	if err != nil {
		t.Fatalf("ListForUnit from unloaded unit: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("count = %d, want 1", len(list))
	}
}

func TestStoreClear(t *testing.T) {
	ctx := context.Background()
	repo := newMockRepository()
	store := NewStore(repo)

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := store.Create(ctx, testSchedule("sch-1", "unit-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	store.Clear("unit-1")
	if store.IsLoaded("unit-1") {
		t.Error("unit still marked loaded after Clear")
	}

	// Persistence untouched; fallback read still works.
	if _, err := store.Get(ctx, "sch-1"); err != nil {
		t.Errorf("Get after Clear: %v", err)
	}
}

func TestStoreListForActuator(t *testing.T) {
	ctx := context.Background()
	store := NewStore(newMockRepository())

	if err := store.Load(ctx, "unit-1"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	actuator := "act-light-1"
	bound := testSchedule("sch-1", "unit-1")
	bound.ActuatorID = &actuator
	unbound := testSchedule("sch-2", "unit-1")

	if err := store.Create(ctx, bound); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, unbound); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.ListForActuator(ctx, actuator)
	if err != nil {
		t.Fatalf("ListForActuator: %v", err)
	}
	if len(got) != 1 || got[0].ID != "sch-1" {
		t.Errorf("ListForActuator = %+v, want [sch-1]", got)
	}
}
