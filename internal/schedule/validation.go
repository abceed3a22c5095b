package schedule

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Validation constants.
const (
	maxNameLength    = 100
	maxMetadataKeys  = 20
	minValue         = 0.0
	maxValue         = 100.0
	minutesPerDay    = 24 * 60
	minLatitude      = -90.0
	maxLatitude      = 90.0
	minLongitude     = -180.0
	maxLongitude     = 180.0
	timeFieldCount   = 2
	maxHour          = 23
	maxMinute        = 59
	idPrefixSchedule = "sch-"
)

// Pre-computed validation sets for O(1) lookups.
var (
	validTypes = map[Type]struct{}{
		TypeInterval:    {},
		TypePhotoperiod: {},
	}
	validSources = map[PhotoperiodSource]struct{}{
		SourceSchedule: {},
		SourceSensor:   {},
		SourceHybrid:   {},
		SourceSunAPI:   {},
	}
)

// Validate performs comprehensive validation on a schedule.
// Returns an error describing the first validation failure found.
func Validate(s *Schedule) error {
	if s == nil {
		return ErrInvalid
	}

	if strings.TrimSpace(s.UnitID) == "" {
		return fmt.Errorf("%w: unit_id is required", ErrInvalid)
	}
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if len(s.Name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalid, maxNameLength)
	}
	if strings.TrimSpace(s.DeviceType) == "" {
		return fmt.Errorf("%w: device_type is required", ErrInvalid)
	}
	if _, ok := validTypes[s.Type]; !ok {
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalid, s.Type)
	}

	if _, err := ParseMinutes(s.StartTime); err != nil {
		return fmt.Errorf("start_time: %w", err)
	}
	if _, err := ParseMinutes(s.EndTime); err != nil {
		return fmt.Errorf("end_time: %w", err)
	}

	// A rule with no weekdays is never active; reject it rather than
	// letting dead rules accumulate.
	if len(s.DaysOfWeek) == 0 {
		return ErrNoWeekdays
	}
	for _, d := range s.DaysOfWeek {
		if d < 0 || d > 6 {
			return fmt.Errorf("%w: weekday %d out of range", ErrInvalid, d)
		}
	}

	if s.Value != nil && (*s.Value < minValue || *s.Value > maxValue) {
		return fmt.Errorf("%w: value must be %.0f-%.0f", ErrInvalid, minValue, maxValue)
	}

	if len(s.Metadata) > maxMetadataKeys {
		return fmt.Errorf("%w: metadata exceeds %d keys", ErrInvalid, maxMetadataKeys)
	}

	if s.Type == TypePhotoperiod {
		if s.Photoperiod == nil {
			return fmt.Errorf("%w: photoperiod config is required", ErrInvalidPhotoperiod)
		}
		if err := ValidatePhotoperiod(s.Photoperiod); err != nil {
			return err
		}
	}

	return nil
}

// ValidatePhotoperiod checks source-specific requirements:
// sensor/hybrid need a positive threshold, sun_api needs coordinates.
func ValidatePhotoperiod(p *PhotoperiodConfig) error {
	if p == nil {
		return ErrInvalidPhotoperiod
	}
	if _, ok := validSources[p.Source]; !ok {
		return fmt.Errorf("%w: unknown source %q", ErrInvalidPhotoperiod, p.Source)
	}

	switch p.Source {
	case SourceSensor, SourceHybrid:
		if p.Threshold <= 0 {
			return fmt.Errorf("%w: %s source requires a positive threshold", ErrInvalidPhotoperiod, p.Source)
		}
		if p.Tolerance < 0 {
			return fmt.Errorf("%w: tolerance cannot be negative", ErrInvalidPhotoperiod)
		}
	case SourceSunAPI:
		if p.Latitude == nil || p.Longitude == nil {
			return fmt.Errorf("%w: sun_api source requires latitude and longitude", ErrInvalidPhotoperiod)
		}
		if *p.Latitude < minLatitude || *p.Latitude > maxLatitude {
			return fmt.Errorf("%w: latitude out of range", ErrInvalidPhotoperiod)
		}
		if *p.Longitude < minLongitude || *p.Longitude > maxLongitude {
			return fmt.Errorf("%w: longitude out of range", ErrInvalidPhotoperiod)
		}
	case SourceSchedule:
		// No extra parameters.
	}

	return nil
}

// ParseMinutes converts an HH:MM string into minutes since midnight.
func ParseMinutes(hhmm string) (int, error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != timeFieldCount {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > maxHour {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > maxMinute {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, hhmm)
	}

	return hour*60 + minute, nil
}

// FormatMinutes converts minutes since midnight back to HH:MM.
func FormatMinutes(m int) string {
	m = ((m % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}

// GenerateID creates a new prefixed UUID for a schedule.
func GenerateID() string {
	return idPrefixSchedule + uuid.New().String()
}
