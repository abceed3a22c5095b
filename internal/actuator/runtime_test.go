package actuator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fernlea/grow-core/internal/events"
	"github.com/fernlea/grow-core/internal/tasks"
)

// fakeAdapter is a hardware adapter with injectable failures.
type fakeAdapter struct {
	mu       sync.Mutex
	fail     bool
	commands []string
}

func (f *fakeAdapter) record(cmd string, state State, value float64) (Reading, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, cmd)
	if f.fail {
		return Reading{}, errors.New("bus timeout")
	}
	return Reading{State: state, Value: value, Timestamp: time.Now().UTC()}, nil
}

func (f *fakeAdapter) TurnOn(_ context.Context, _ *Entity) (Reading, error) {
	return f.record("turn_on", StateOn, 100)
}

func (f *fakeAdapter) TurnOff(_ context.Context, _ *Entity) (Reading, error) {
	return f.record("turn_off", StateOff, 0)
}

func (f *fakeAdapter) SetLevel(_ context.Context, _ *Entity, level float64) (Reading, error) {
	state := StateOn
	if level == 0 {
		state = StateOff
	}
	return f.record("set_level", state, level)
}

func (f *fakeAdapter) commandCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.commands)
}

// memoryActuatorRepo is an in-memory Repository for tests.
type memoryActuatorRepo struct {
	mu        sync.Mutex
	saved     map[string]Entity
	snapshots []HealthSnapshot
}

func newMemoryActuatorRepo() *memoryActuatorRepo {
	return &memoryActuatorRepo{saved: make(map[string]Entity)}
}

func (m *memoryActuatorRepo) Save(_ context.Context, e *Entity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved[e.ID] = *e.DeepCopy()
	return nil
}

func (m *memoryActuatorRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.saved[id]; !ok {
		return ErrNotFound
	}
	delete(m.saved, id)
	return nil
}

func (m *memoryActuatorRepo) List(_ context.Context) ([]Entity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entity
	for _, e := range m.saved {
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryActuatorRepo) CreateHealthSnapshot(_ context.Context, s *HealthSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, *s)
	return nil
}

func (m *memoryActuatorRepo) ListHealthSnapshots(_ context.Context, actuatorID string, _ int) ([]HealthSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []HealthSnapshot
	for _, s := range m.snapshots {
		if s.ActuatorID == actuatorID {
			out = append(out, s)
		}
	}
	return out, nil
}

// fakeOnce captures deferred turn-offs without waiting.
type fakeOnce struct {
	mu   sync.Mutex
	jobs map[string]tasks.Func
}

func newFakeOnce() *fakeOnce {
	return &fakeOnce{jobs: make(map[string]tasks.Func)}
}

func (f *fakeOnce) RegisterOnce(_ string, fn tasks.Func, _ time.Duration, jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs[jobID] = fn
	return nil
}

func (f *fakeOnce) Cancel(jobID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[jobID]; !ok {
		return tasks.ErrJobNotFound
	}
	delete(f.jobs, jobID)
	return nil
}

func (f *fakeOnce) fire(jobID string) {
	f.mu.Lock()
	fn := f.jobs[jobID]
	delete(f.jobs, jobID)
	f.mu.Unlock()
	if fn != nil {
		fn(context.Background())
	}
}

func testEntity(id, unitID string) *Entity {
	return &Entity{
		ID:         id,
		UnitID:     unitID,
		Name:       "test " + id,
		DeviceType: "light",
		PowerWatts: 100,
	}
}

func newTestRuntime(t *testing.T) (*Runtime, *fakeAdapter, *memoryActuatorRepo) {
	t.Helper()
	adapter := &fakeAdapter{}
	repo := newMemoryActuatorRepo()
	rt := NewRuntime(adapter, repo)
	return rt, adapter, repo
}

func TestRegisterAndGet(t *testing.T) {
	rt, _, repo := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := rt.Get("act-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.State != StateOff {
		t.Errorf("new actuator state = %s, want off", got.State)
	}
	if _, ok := repo.saved["act-1"]; !ok {
		t.Error("registration was not persisted")
	}

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate register err = %v, want ErrExists", err)
	}

	if _, err := rt.Get("act-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get missing err = %v, want ErrNotFound", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx := context.Background()

	e := testEntity("act-self", "unit-1")
	e.Interlocks = []string{"act-self"}
	if err := rt.Register(ctx, e); !errors.Is(err, ErrInvalid) {
		t.Errorf("self-interlock err = %v, want ErrInvalid", err)
	}

	if err := rt.Register(ctx, &Entity{ID: "act-2"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("missing unit err = %v, want ErrInvalid", err)
	}
}

func TestStateMachineTransitions(t *testing.T) {
	rt, adapter, _ := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := rt.TurnOn(ctx, "act-1"); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	got, _ := rt.Get("act-1")
	if got.State != StateOn || got.LastOn == nil {
		t.Errorf("after TurnOn: state=%s lastOn=%v", got.State, got.LastOn)
	}

	// Already on: no additional hardware command.
	before := adapter.commandCount()
	if err := rt.TurnOn(ctx, "act-1"); err != nil {
		t.Fatalf("repeat TurnOn: %v", err)
	}
	if adapter.commandCount() != before {
		t.Error("repeat TurnOn issued a hardware command")
	}

	if err := rt.TurnOff(ctx, "act-1"); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}
	got, _ = rt.Get("act-1")
	if got.State != StateOff || got.LastOff == nil || got.Level != 0 {
		t.Errorf("after TurnOff: %+v", got)
	}

	if err := rt.Toggle(ctx, "act-1"); err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	got, _ = rt.Get("act-1")
	if got.State != StateOn {
		t.Errorf("after Toggle: state = %s, want on", got.State)
	}
}

func TestHardwareFailureSetsError(t *testing.T) {
	rt, adapter, _ := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	adapter.fail = true
	err := rt.TurnOn(ctx, "act-1")
	if !errors.Is(err, ErrHardware) {
		t.Fatalf("err = %v, want ErrHardware", err)
	}

	got, _ := rt.Get("act-1")
	if got.State != StateError {
		t.Errorf("state = %s, want error", got.State)
	}
	if got.Operations != 1 || got.Errors != 1 {
		t.Errorf("counters = %d/%d, want 1/1", got.Operations, got.Errors)
	}

	// Error state clears on the next successful command.
	adapter.fail = false
	if err := rt.TurnOn(ctx, "act-1"); err != nil {
		t.Fatalf("recovery TurnOn: %v", err)
	}
	got, _ = rt.Get("act-1")
	if got.State != StateOn {
		t.Errorf("state after recovery = %s, want on", got.State)
	}
}

func TestInterlockMutualExclusion(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx := context.Background()

	heater := testEntity("act-heater", "unit-1")
	heater.Interlocks = []string{"act-cooler"}
	cooler := testEntity("act-cooler", "unit-1")
	// Interlock declared only on the heater; it must block both directions.

	if err := rt.Register(ctx, heater); err != nil {
		t.Fatalf("Register heater: %v", err)
	}
	if err := rt.Register(ctx, cooler); err != nil {
		t.Fatalf("Register cooler: %v", err)
	}

	guard := NewGuard(rt, 0)
	rt.SetGuard(guard)

	if err := rt.TurnOn(ctx, "act-heater"); err != nil {
		t.Fatalf("TurnOn heater: %v", err)
	}

	if ok, reason := guard.CanActivate("act-cooler"); ok {
		t.Error("cooler activation allowed while interlocked heater is on")
	} else if !strings.Contains(reason, "act-heater") {
		t.Errorf("reason = %q, want mention of act-heater", reason)
	}

	err := rt.TurnOn(ctx, "act-cooler")
	if !errors.Is(err, ErrSafetyVeto) {
		t.Fatalf("TurnOn cooler err = %v, want ErrSafetyVeto", err)
	}
	if !IsVeto(err) {
		t.Error("IsVeto did not recognise the veto")
	}

	if err := rt.TurnOff(ctx, "act-heater"); err != nil {
		t.Fatalf("TurnOff heater: %v", err)
	}
	if ok, _ := guard.CanActivate("act-cooler"); !ok {
		t.Error("cooler still blocked after heater turned off")
	}
}

func TestCooldownGate(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx := context.Background()

	pump := testEntity("act-pump", "unit-1")
	pump.CooldownSeconds = 300
	if err := rt.Register(ctx, pump); err != nil {
		t.Fatalf("Register: %v", err)
	}
	guard := NewGuard(rt, 0)
	rt.SetGuard(guard)

	if err := rt.TurnOn(ctx, "act-pump"); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}
	if err := rt.TurnOff(ctx, "act-pump"); err != nil {
		t.Fatalf("TurnOff: %v", err)
	}

	err := rt.TurnOn(ctx, "act-pump")
	if !errors.Is(err, ErrSafetyVeto) {
		t.Fatalf("err = %v, want cooldown veto", err)
	}
	if !strings.Contains(err.Error(), "cooldown") {
		t.Errorf("veto reason = %v, want cooldown", err)
	}
}

func TestPowerBudgetGate(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx := context.Background()

	lamp := testEntity("act-lamp", "unit-1")
	lamp.PowerWatts = 300
	heater := testEntity("act-heater", "unit-1")
	heater.PowerWatts = 300

	if err := rt.Register(ctx, lamp); err != nil {
		t.Fatalf("Register lamp: %v", err)
	}
	if err := rt.Register(ctx, heater); err != nil {
		t.Fatalf("Register heater: %v", err)
	}

	guard := NewGuard(rt, 500)
	rt.SetGuard(guard)

	if err := rt.TurnOn(ctx, "act-lamp"); err != nil {
		t.Fatalf("TurnOn lamp: %v", err)
	}

	err := rt.TurnOn(ctx, "act-heater")
	if !errors.Is(err, ErrSafetyVeto) {
		t.Fatalf("err = %v, want power budget veto", err)
	}
	if !strings.Contains(err.Error(), "power budget") {
		t.Errorf("veto reason = %v, want power budget", err)
	}

	if err := rt.TurnOff(ctx, "act-lamp"); err != nil {
		t.Fatalf("TurnOff lamp: %v", err)
	}
	if err := rt.TurnOn(ctx, "act-heater"); err != nil {
		t.Fatalf("TurnOn heater after budget freed: %v", err)
	}
}

func TestSetLevel(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-fan", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := rt.SetLevel(ctx, "act-fan", 120); !errors.Is(err, ErrInvalidLevel) {
		t.Errorf("level 120 err = %v, want ErrInvalidLevel", err)
	}

	if err := rt.SetLevel(ctx, "act-fan", 65); err != nil {
		t.Fatalf("SetLevel: %v", err)
	}
	got, _ := rt.Get("act-fan")
	if got.State != StateOn || got.Level != 65 {
		t.Errorf("after SetLevel 65: state=%s level=%v", got.State, got.Level)
	}

	if err := rt.SetLevel(ctx, "act-fan", 0); err != nil {
		t.Fatalf("SetLevel 0: %v", err)
	}
	got, _ = rt.Get("act-fan")
	if got.State != StateOff || got.Level != 0 {
		t.Errorf("after SetLevel 0: state=%s level=%v", got.State, got.Level)
	}
}

func TestPulseSchedulesTurnOff(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-valve", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := rt.Pulse(ctx, "act-valve", time.Minute); !errors.Is(err, ErrNoScheduler) {
		t.Fatalf("pulse without scheduler err = %v, want ErrNoScheduler", err)
	}

	once := newFakeOnce()
	rt.SetScheduler(once)

	if err := rt.Pulse(ctx, "act-valve", time.Minute); err != nil {
		t.Fatalf("Pulse: %v", err)
	}
	got, _ := rt.Get("act-valve")
	if got.State != StateOn {
		t.Fatalf("state during pulse = %s, want on", got.State)
	}

	once.fire("pulse-act-valve")
	got, _ = rt.Get("act-valve")
	if got.State != StateOff {
		t.Errorf("state after pulse fired = %s, want off", got.State)
	}
}

func TestStateChangeEvents(t *testing.T) {
	rt, _, _ := newTestRuntime(t)
	ctx := context.Background()

	bus := events.NewBus()
	var mu sync.Mutex
	var seen []events.Event
	bus.SubscribeAll(func(e events.Event) {
		mu.Lock()
		seen = append(seen, e)
		mu.Unlock()
	})
	rt.SetEvents(bus)

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := rt.TurnOn(ctx, "act-1"); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 {
		t.Fatalf("events = %d, want 2 (registered + state changed)", len(seen))
	}
	if seen[0].Type != events.TypeActuatorRegistered {
		t.Errorf("first event = %s", seen[0].Type)
	}
	if seen[1].Type != events.TypeStateChanged || seen[1].State != "on" {
		t.Errorf("second event = %+v", seen[1])
	}
}

func TestHealthSnapshotOnOperationThreshold(t *testing.T) {
	rt, adapter, repo := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// 100 operations, 30 of them failures: score 70, rating good.
	for i := 0; i < 50; i++ {
		adapter.fail = i < 15
		_ = rt.TurnOn(ctx, "act-1")
		adapter.fail = false
		_ = rt.TurnOff(ctx, "act-1")
	}
	// The fail flag above produces 15 errors; add 15 more via failing offs.
	for i := 0; i < 15; i++ {
		_ = rt.TurnOn(ctx, "act-1")
		adapter.fail = true
		_ = rt.TurnOff(ctx, "act-1")
		adapter.fail = false
	}

	snaps, err := repo.ListHealthSnapshots(ctx, "act-1", 10)
	if err != nil {
		t.Fatalf("ListHealthSnapshots: %v", err)
	}
	if len(snaps) == 0 {
		t.Fatal("no health snapshot cut after 100+ operations")
	}
	first := snaps[0]
	if first.Operations != snapshotOperations {
		t.Errorf("snapshot window = %d ops, want %d", first.Operations, snapshotOperations)
	}
	if first.Score < 0 || first.Score > 100 {
		t.Errorf("score = %v out of range", first.Score)
	}
	if Rating(first.Score) != first.Rating {
		t.Errorf("rating %s does not match score %v", first.Rating, first.Score)
	}
}

func TestFlushHealth(t *testing.T) {
	rt, _, repo := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := rt.TurnOn(ctx, "act-1"); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}

	rt.FlushHealth(ctx)

	snaps, _ := repo.ListHealthSnapshots(ctx, "act-1", 10)
	if len(snaps) != 1 {
		t.Fatalf("snapshots = %d, want 1", len(snaps))
	}
	if snaps[0].Operations != 1 || snaps[0].Errors != 0 || snaps[0].Score != 100 {
		t.Errorf("snapshot = %+v", snaps[0])
	}

	// Nothing new since the flush: no further snapshot.
	rt.FlushHealth(ctx)
	snaps, _ = repo.ListHealthSnapshots(ctx, "act-1", 10)
	if len(snaps) != 1 {
		t.Errorf("idle flush cut a snapshot, total = %d", len(snaps))
	}
}

func TestUnregisterTurnsOffFirst(t *testing.T) {
	rt, adapter, repo := newTestRuntime(t)
	ctx := context.Background()

	if err := rt.Register(ctx, testEntity("act-1", "unit-1")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := rt.TurnOn(ctx, "act-1"); err != nil {
		t.Fatalf("TurnOn: %v", err)
	}

	if err := rt.Unregister(ctx, "act-1"); err != nil {
		t.Fatalf("Unregister: %v", err)
	}

	adapter.mu.Lock()
	last := adapter.commands[len(adapter.commands)-1]
	adapter.mu.Unlock()
	if last != "turn_off" {
		t.Errorf("last command = %s, want defensive turn_off", last)
	}

	if _, err := rt.Get("act-1"); !errors.Is(err, ErrNotFound) {
		t.Error("entity still present after unregister")
	}
	if _, ok := repo.saved["act-1"]; ok {
		t.Error("row still persisted after unregister")
	}
}

func TestRatingBuckets(t *testing.T) {
	cases := []struct {
		score float64
		want  string
	}{
		{100, RatingExcellent},
		{90, RatingExcellent},
		{89.9, RatingGood},
		{70, RatingGood},
		{69.9, RatingFair},
		{50, RatingFair},
		{49.9, RatingPoor},
		{0, RatingPoor},
	}
	for _, tc := range cases {
		if got := Rating(tc.score); got != tc.want {
			t.Errorf("Rating(%v) = %s, want %s", tc.score, got, tc.want)
		}
	}
}
