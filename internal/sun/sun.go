package sun

import (
	"time"

	"github.com/nathan-osman/go-sunrise"
)

// civilTwilightOffset approximates the gap between sunrise/sunset and
// civil twilight (sun 6 degrees below the horizon). The exact gap
// varies with latitude and season; a fixed half hour is close enough
// for photoperiod control.
const civilTwilightOffset = 30 * time.Minute

// Service answers day/night queries from computed sunrise/sunset times.
// The zero value is ready to use.
type Service struct{}

// NewService creates a solar ephemeris service.
func NewService() *Service {
	return &Service{}
}

// IsDaytime reports whether the sun is up at the given instant and
// location. With civilTwilight set, the window is widened by a fixed
// offset on both ends so lamps switch at dusk/dawn rather than exact
// sunset/sunrise.
//
// In polar conditions go-sunrise returns equal zero times for days
// when the sun never rises or never sets; both cases report false,
// which photoperiod rules treat as night.
func (s *Service) IsDaytime(t time.Time, lat, lon float64, civilTwilight bool) bool {
	utc := t.UTC()
	rise, set := sunrise.SunriseSunset(lat, lon, utc.Year(), utc.Month(), utc.Day())
	if rise.IsZero() && set.IsZero() {
		return false
	}

	if civilTwilight {
		rise = rise.Add(-civilTwilightOffset)
		set = set.Add(civilTwilightOffset)
	}

	return !utc.Before(rise) && utc.Before(set)
}
