package schedule

import (
	"context"
	"sort"
	"time"
)

// Evaluator selects the single effective rule for an actuator or device
// class at a given instant.
//
// Conflicting rules are resolved here, not at authoring time: among all
// enabled, currently-active candidates, the winner is chosen by the
// total ordering (-priority, created_at ascending, id ascending). The
// ordering is total, so the winner is deterministic regardless of input
// order.
type Evaluator struct {
	store    *Store
	resolver *PhotoperiodResolver
	logger   Logger
}

// NewEvaluator creates an evaluator over the given store and resolver.
func NewEvaluator(store *Store, resolver *PhotoperiodResolver) *Evaluator {
	return &Evaluator{
		store:    store,
		resolver: resolver,
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the evaluator.
func (e *Evaluator) SetLogger(logger Logger) {
	e.logger = logger
}

// IsActive reports whether a schedule is active at the given instant.
// Photoperiod rules are resolved through the resolver; interval rules
// use the plain window check. reading is the current light-sensor value
// (nil when absent); it only matters for sensor-backed photoperiods.
func (e *Evaluator) IsActive(s *Schedule, now time.Time, reading *float64) bool {
	if s == nil || !s.Enabled {
		return false
	}

	windowActive := WindowActive(s, now)
	if s.Type == TypePhotoperiod {
		return e.resolver.Resolve(s.UnitID, s.Photoperiod, now, windowActive, reading)
	}
	return windowActive
}

// SelectEffective returns the winning schedule among the candidates at
// the given instant, or nil when none is active (the actuator should be
// off). Candidates are filtered to enabled+active, then ordered by
// (-priority, created_at, id); the head wins.
func (e *Evaluator) SelectEffective(candidates []Schedule, now time.Time, reading *float64) *Schedule {
	var active []*Schedule
	for i := range candidates {
		if e.IsActive(&candidates[i], now, reading) {
			active = append(active, &candidates[i])
		}
	}
	if len(active) == 0 {
		return nil
	}

	sort.Slice(active, func(i, j int) bool {
		a, b := active[i], active[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})

	return active[0].DeepCopy()
}

// EffectiveForUnit resolves the winning schedule for one device class
// in a unit, fetching candidates from the store.
func (e *Evaluator) EffectiveForUnit(ctx context.Context, unitID, deviceType string, now time.Time, reading *float64) (*Schedule, error) {
	candidates, err := e.store.ListForUnit(ctx, unitID, ListFilter{
		DeviceType:  deviceType,
		EnabledOnly: true,
	})
	if err != nil {
		return nil, err
	}
	return e.SelectEffective(candidates, now, reading), nil
}

// DeviceValue returns the analog value of the winning active schedule
// for a device class, or nil when no rule is active or the winner
// carries no value.
func (e *Evaluator) DeviceValue(ctx context.Context, unitID, deviceType string, now time.Time, reading *float64) (*float64, error) {
	winner, err := e.EffectiveForUnit(ctx, unitID, deviceType, now, reading)
	if err != nil {
		return nil, err
	}
	if winner == nil || winner.Value == nil {
		return nil, nil
	}
	v := *winner.Value
	return &v, nil
}

// WindowActive evaluates the plain time window against a timestamp,
// handling midnight wraparound: an overnight rule is active late on a
// selected day and early on the following day. Equal start and end
// means the whole day.
func WindowActive(s *Schedule, now time.Time) bool {
	start, err := ParseMinutes(s.StartTime)
	if err != nil {
		return false
	}
	end, err := ParseMinutes(s.EndTime)
	if err != nil {
		return false
	}

	nowMin := now.Hour()*60 + now.Minute()
	today := now.Weekday()
	yesterday := (today + 6) % 7

	switch {
	case start == end:
		return s.HasWeekday(today)
	case start < end:
		return s.HasWeekday(today) && nowMin >= start && nowMin < end
	default:
		if s.HasWeekday(today) && nowMin >= start {
			return true
		}
		return s.HasWeekday(yesterday) && nowMin < end
	}
}
