package schedule

import (
	"sync"
	"time"
)

// SunService is the solar-ephemeris collaborator consulted by the
// sun_api photoperiod source.
type SunService interface {
	IsDaytime(t time.Time, lat, lon float64, civilTwilight bool) bool
}

// PhotoperiodResolver decides whether a photoperiod rule is currently
// active, combining the rule's own time window with sensor or ephemeris
// evidence.
//
// Activity semantics per source:
//
//   - schedule: the time-window evaluation unchanged.
//   - sensor: the window is the outer envelope; inside it the light
//     reading decides — dark means the lamp runs, bright means it does
//     not. The sensor can shorten the on-window, never extend it.
//   - hybrid: window gates eligibility; inside it the sensor result
//     overrides only when prefer_sensor is set.
//   - sun_api: the ephemeris answer replaces the window entirely,
//     falling back to the window when no collaborator is configured.
//
// Sensor decisions use hysteresis: flipping night-to-day requires a
// reading at or above the threshold, flipping day-to-night requires
// dropping below threshold minus tolerance. Readings inside that band
// keep the previous decision, preventing oscillation at dusk and dawn.
// The per-unit last decision lives under the resolver's own lock.
type PhotoperiodResolver struct {
	sun    SunService
	logger Logger

	mu      sync.Mutex
	lastDay map[string]bool // unit ID -> last sensor day/night decision
}

// NewPhotoperiodResolver creates a resolver with no ephemeris
// collaborator; sun_api rules fall back to their schedule window until
// one is set.
func NewPhotoperiodResolver() *PhotoperiodResolver {
	return &PhotoperiodResolver{
		lastDay: make(map[string]bool),
		logger:  noopLogger{},
	}
}

// SetSunService sets the solar-ephemeris collaborator.
func (r *PhotoperiodResolver) SetSunService(sun SunService) {
	r.sun = sun
}

// SetLogger sets the logger for the resolver.
func (r *PhotoperiodResolver) SetLogger(logger Logger) {
	r.logger = logger
}

// Resolve decides whether a photoperiod rule is active right now.
//
// scheduleActive is the rule's plain time-window evaluation; reading is
// the current light-sensor value in lux, nil when no sensor is
// available.
func (r *PhotoperiodResolver) Resolve(unitID string, cfg *PhotoperiodConfig, now time.Time, scheduleActive bool, reading *float64) bool {
	if cfg == nil {
		return scheduleActive
	}

	switch cfg.Source {
	case SourceSensor:
		if !scheduleActive {
			return false
		}
		if reading == nil {
			return scheduleActive
		}
		return !r.sensorIsDay(unitID, *reading, cfg.Threshold, cfg.Tolerance)

	case SourceHybrid:
		if !scheduleActive {
			return false
		}
		if cfg.PreferSensor && reading != nil {
			return !r.sensorIsDay(unitID, *reading, cfg.Threshold, cfg.Tolerance)
		}
		return true

	case SourceSunAPI:
		if r.sun == nil || cfg.Latitude == nil || cfg.Longitude == nil {
			r.logger.Warn("sun_api photoperiod falling back to schedule window",
				"unit_id", unitID,
				"have_service", r.sun != nil,
			)
			return scheduleActive
		}
		return r.sun.IsDaytime(now, *cfg.Latitude, *cfg.Longitude, cfg.CivilTwilight)

	default: // SourceSchedule
		return scheduleActive
	}
}

// sensorIsDay applies the hysteresis band and updates the unit's last
// decision. Read-modify-write under the resolver's lock.
func (r *PhotoperiodResolver) sensorIsDay(unitID string, lux, threshold, tolerance float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	last, known := r.lastDay[unitID]

	var day bool
	switch {
	case !known:
		day = lux >= threshold
	case last:
		// Currently day: stay day unless the reading drops below the
		// lower bound of the band.
		day = lux >= threshold-tolerance
	default:
		// Currently night: flip to day only at or above the threshold.
		day = lux >= threshold
	}

	r.lastDay[unitID] = day
	return day
}

// LastSensorState returns the unit's last sensor day/night decision and
// whether one has been made. Exposed for diagnostics.
func (r *PhotoperiodResolver) LastSensorState(unitID string) (day, known bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	day, known = r.lastDay[unitID]
	return day, known
}

// ResetSensorState discards a unit's hysteresis state, e.g. after its
// sensor is replaced or recalibrated.
func (r *PhotoperiodResolver) ResetSensorState(unitID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.lastDay, unitID)
}
