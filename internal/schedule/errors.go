package schedule

import "errors"

// Domain errors for the schedule package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, schedule.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a schedule ID does not exist.
	ErrNotFound = errors.New("schedule: not found")

	// ErrExists is returned when creating a schedule with an ID that already exists.
	ErrExists = errors.New("schedule: already exists")

	// ErrInvalid is returned when schedule validation fails.
	ErrInvalid = errors.New("schedule: invalid")

	// ErrInvalidTime is returned when a start/end time is not valid HH:MM.
	ErrInvalidTime = errors.New("schedule: invalid time format")

	// ErrNoWeekdays is returned when a schedule selects no active weekdays.
	ErrNoWeekdays = errors.New("schedule: no weekdays selected")

	// ErrInvalidPhotoperiod is returned when a photoperiod config is
	// missing fields its source requires.
	ErrInvalidPhotoperiod = errors.New("schedule: invalid photoperiod config")

	// ErrPersistence is returned when the repository rejects a mutation.
	// The in-memory state has been rolled back when this is returned.
	ErrPersistence = errors.New("schedule: persistence failed")
)
