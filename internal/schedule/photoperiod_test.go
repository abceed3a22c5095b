package schedule

import (
	"testing"
	"time"
)

func floatPtr(v float64) *float64 { return &v }

func TestHysteresisStability(t *testing.T) {
	r := NewPhotoperiodResolver()
	const unit = "unit-1"
	const threshold, tolerance = 500.0, 50.0

	// Flip to day at the threshold.
	if !r.sensorIsDay(unit, 500, threshold, tolerance) {
		t.Fatal("reading at threshold did not flip to day")
	}

	// Readings inside the band [threshold-tolerance, threshold) must
	// keep the day decision.
	for _, lux := range []float64{499, 475, 451, 450} {
		if !r.sensorIsDay(unit, lux, threshold, tolerance) {
			t.Errorf("reading %v inside band flipped back to night", lux)
		}
	}

	// Only dropping below threshold-tolerance flips to night.
	if r.sensorIsDay(unit, 449, threshold, tolerance) {
		t.Error("reading below band did not flip to night")
	}

	// Once night, band readings stay night; only >= threshold flips back.
	if r.sensorIsDay(unit, 480, threshold, tolerance) {
		t.Error("band reading flipped night back to day")
	}
	if !r.sensorIsDay(unit, 500, threshold, tolerance) {
		t.Error("threshold reading did not flip back to day")
	}
}

func TestHysteresisIsUnitScoped(t *testing.T) {
	r := NewPhotoperiodResolver()
	const threshold, tolerance = 500.0, 50.0

	r.sensorIsDay("unit-1", 600, threshold, tolerance) // day
	r.sensorIsDay("unit-2", 100, threshold, tolerance) // night

	if day, _ := r.LastSensorState("unit-1"); !day {
		t.Error("unit-1 should be day")
	}
	if day, _ := r.LastSensorState("unit-2"); day {
		t.Error("unit-2 should be night")
	}

	r.ResetSensorState("unit-1")
	if _, known := r.LastSensorState("unit-1"); known {
		t.Error("reset did not clear unit-1 state")
	}
}

func TestResolveSensorSource(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) // Monday noon
	cfg := &PhotoperiodConfig{Source: SourceSensor, Threshold: 500, Tolerance: 50}

	tests := []struct {
		name           string
		scheduleActive bool
		reading        *float64
		want           bool
	}{
		{"outside window sensor cannot extend", false, floatPtr(10), false},
		{"inside window no reading falls back to window", true, nil, true},
		{"inside window dark means lamp on", true, floatPtr(100), true},
		{"inside window bright shortens the on-window", true, floatPtr(900), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewPhotoperiodResolver()
			got := r.Resolve("unit-1", cfg, now, tt.scheduleActive, tt.reading)
			if got != tt.want {
				t.Errorf("Resolve = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveHybridSource(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

	prefer := &PhotoperiodConfig{Source: SourceHybrid, Threshold: 500, Tolerance: 50, PreferSensor: true}
	noPrefer := &PhotoperiodConfig{Source: SourceHybrid, Threshold: 500, Tolerance: 50}

	r := NewPhotoperiodResolver()

	// Window gates eligibility in both variants.
	if r.Resolve("unit-1", prefer, now, false, floatPtr(10)) {
		t.Error("hybrid active outside window")
	}

	// prefer_sensor: bright reading overrides the window.
	if r.Resolve("unit-1", prefer, now, true, floatPtr(900)) {
		t.Error("prefer_sensor did not let bright reading win")
	}

	// Without prefer_sensor the window wins regardless of reading.
	if !r.Resolve("unit-2", noPrefer, now, true, floatPtr(900)) {
		t.Error("window did not win without prefer_sensor")
	}
}

// fakeSun returns a fixed answer and records the call.
type fakeSun struct {
	daytime bool
	called  bool
	lat     float64
	lon     float64
	civil   bool
}

func (f *fakeSun) IsDaytime(_ time.Time, lat, lon float64, civil bool) bool {
	f.called = true
	f.lat, f.lon, f.civil = lat, lon, civil
	return f.daytime
}

func TestResolveSunAPISource(t *testing.T) {
	now := time.Date(2026, 3, 2, 23, 0, 0, 0, time.UTC)
	cfg := &PhotoperiodConfig{
		Source:        SourceSunAPI,
		Latitude:      floatPtr(51.5),
		Longitude:     floatPtr(-0.12),
		CivilTwilight: true,
	}

	sun := &fakeSun{daytime: true}
	r := NewPhotoperiodResolver()
	r.SetSunService(sun)

	// The ephemeris answer replaces the window entirely.
	if !r.Resolve("unit-1", cfg, now, false, nil) {
		t.Error("sun_api did not use ephemeris answer")
	}
	if !sun.called || sun.lat != 51.5 || sun.lon != -0.12 || !sun.civil {
		t.Errorf("ephemeris called with lat=%v lon=%v civil=%v", sun.lat, sun.lon, sun.civil)
	}
}

func TestResolveSunAPIFallsBackWithoutService(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	cfg := &PhotoperiodConfig{
		Source:    SourceSunAPI,
		Latitude:  floatPtr(51.5),
		Longitude: floatPtr(-0.12),
	}

	r := NewPhotoperiodResolver() // no sun service

	if !r.Resolve("unit-1", cfg, now, true, nil) {
		t.Error("fallback should return the window evaluation (true)")
	}
	if r.Resolve("unit-1", cfg, now, false, nil) {
		t.Error("fallback should return the window evaluation (false)")
	}
}

func TestResolveScheduleSourcePassesThrough(t *testing.T) {
	now := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	cfg := &PhotoperiodConfig{Source: SourceSchedule}
	r := NewPhotoperiodResolver()

	if !r.Resolve("unit-1", cfg, now, true, floatPtr(900)) {
		t.Error("schedule source must ignore the reading")
	}
	if r.Resolve("unit-1", cfg, now, false, floatPtr(10)) {
		t.Error("schedule source must ignore the reading")
	}
}
