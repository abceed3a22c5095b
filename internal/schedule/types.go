package schedule

import "time"

// Type distinguishes plain interval rules from photoperiod rules.
type Type string

const (
	// TypeInterval is a simple daily time-window rule.
	TypeInterval Type = "interval"

	// TypePhotoperiod is a day/night rule resolved through a
	// PhotoperiodConfig (light sensors, solar ephemeris, etc.).
	TypePhotoperiod Type = "photoperiod"
)

// Photoperiod evidence sources.
type PhotoperiodSource string

const (
	// SourceSchedule uses the rule's own time window unchanged.
	SourceSchedule PhotoperiodSource = "schedule"

	// SourceSensor decides day/night from a light reading with hysteresis.
	SourceSensor PhotoperiodSource = "sensor"

	// SourceHybrid gates by the schedule window, optionally deferring to
	// the sensor inside it.
	SourceHybrid PhotoperiodSource = "hybrid"

	// SourceSunAPI delegates to a solar-ephemeris collaborator.
	SourceSunAPI PhotoperiodSource = "sun_api"
)

// Schedule is a time-based or photoperiod automation rule for one
// growth unit.
//
// StartTime and EndTime are HH:MM strings; EndTime earlier than
// StartTime means the window wraps past midnight. Equal times mean
// "active all day". A rule with no weekdays selected is never active.
type Schedule struct {
	// Identity
	ID     string `json:"id"`
	UnitID string `json:"unit_id"`
	Name   string `json:"name"`

	// Target: device class, plus an optional concrete actuator binding.
	// Rules without an actuator are advisory (evaluated, never executed).
	DeviceType string  `json:"device_type"`
	ActuatorID *string `json:"actuator_id,omitempty"`

	// Rule kind and time window
	Type      Type   `json:"schedule_type"`
	StartTime string `json:"start_time"` // HH:MM
	EndTime   string `json:"end_time"`   // HH:MM

	// Configuration
	Enabled    bool           `json:"enabled"`
	DaysOfWeek []time.Weekday `json:"days_of_week"` // 0=Sunday per time.Weekday
	Priority   int            `json:"priority"`     // higher wins

	// Desired output while the rule is active
	StateWhenActive bool     `json:"state_when_active"`
	Value           *float64 `json:"value,omitempty"` // analog level 0-100

	// Photoperiod resolution (TypePhotoperiod only)
	Photoperiod *PhotoperiodConfig `json:"photoperiod,omitempty"`

	// Free-form metadata
	Metadata map[string]any `json:"metadata,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PhotoperiodConfig selects and parameterises a day/night evidence source.
type PhotoperiodConfig struct {
	Source PhotoperiodSource `json:"source"`

	// Sensor parameters (sensor/hybrid): lux threshold and the hysteresis
	// tolerance band around it.
	Threshold float64 `json:"threshold,omitempty"`
	Tolerance float64 `json:"tolerance,omitempty"`

	// Hybrid: when true, the sensor's hysteresis result overrides the
	// schedule decision inside the window.
	PreferSensor bool `json:"prefer_sensor,omitempty"`

	// Solar ephemeris parameters (sun_api).
	Latitude      *float64 `json:"latitude,omitempty"`
	Longitude     *float64 `json:"longitude,omitempty"`
	CivilTwilight bool     `json:"civil_twilight,omitempty"`
}

// Conflict describes a time/day overlap between two schedules targeting
// the same device class in the same unit. Derived, never persisted.
//
// Detection is advisory: the evaluator's priority ordering decides the
// actual run-time winner. Resolution carries a human-readable hint.
type Conflict struct {
	ScheduleID   string         `json:"schedule_id"`
	ScheduleName string         `json:"schedule_name"`
	OtherID      string         `json:"other_id"`
	OtherName    string         `json:"other_name"`
	OverlapStart string         `json:"overlap_start"` // HH:MM
	OverlapEnd   string         `json:"overlap_end"`   // HH:MM
	Days         []time.Weekday `json:"days"`
	Resolution   string         `json:"resolution"`
}

// ChangeAction identifies the kind of mutation recorded in history.
type ChangeAction string

const (
	ActionCreated  ChangeAction = "created"
	ActionUpdated  ChangeAction = "updated"
	ActionDeleted  ChangeAction = "deleted"
	ActionEnabled  ChangeAction = "enabled"
	ActionDisabled ChangeAction = "disabled"
)

// DeepCopy returns a completely independent copy of the schedule.
// Callers can modify the copy without affecting cached state.
func (s *Schedule) DeepCopy() *Schedule {
	if s == nil {
		return nil
	}

	c := *s

	if s.ActuatorID != nil {
		v := *s.ActuatorID
		c.ActuatorID = &v
	}
	if s.Value != nil {
		v := *s.Value
		c.Value = &v
	}
	if s.DaysOfWeek != nil {
		c.DaysOfWeek = make([]time.Weekday, len(s.DaysOfWeek))
		copy(c.DaysOfWeek, s.DaysOfWeek)
	}
	if s.Photoperiod != nil {
		p := *s.Photoperiod
		if s.Photoperiod.Latitude != nil {
			v := *s.Photoperiod.Latitude
			p.Latitude = &v
		}
		if s.Photoperiod.Longitude != nil {
			v := *s.Photoperiod.Longitude
			p.Longitude = &v
		}
		c.Photoperiod = &p
	}
	if s.Metadata != nil {
		c.Metadata = make(map[string]any, len(s.Metadata))
		for k, v := range s.Metadata {
			c.Metadata[k] = v
		}
	}

	return &c
}

// HasWeekday reports whether the schedule is selected for the given weekday.
func (s *Schedule) HasWeekday(d time.Weekday) bool {
	for _, w := range s.DaysOfWeek {
		if w == d {
			return true
		}
	}
	return false
}

// AllDay reports whether the rule covers the full day (start == end).
func (s *Schedule) AllDay() bool {
	return s.StartTime == s.EndTime
}
