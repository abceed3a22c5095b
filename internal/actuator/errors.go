package actuator

import "errors"

var (
	// ErrNotFound is returned when an actuator does not exist.
	ErrNotFound = errors.New("actuator: not found")

	// ErrExists is returned when registering an actuator whose ID is taken.
	ErrExists = errors.New("actuator: already exists")

	// ErrInvalid is returned when an actuator entity fails validation.
	ErrInvalid = errors.New("actuator: invalid entity")

	// ErrInvalidLevel is returned when a level is outside 0-100.
	ErrInvalidLevel = errors.New("actuator: level must be between 0 and 100")

	// ErrSafetyVeto is returned when the safety guard refuses an
	// activation. A veto is an expected outcome, not a hardware fault;
	// the next evaluation tick re-checks.
	ErrSafetyVeto = errors.New("actuator: activation vetoed")

	// ErrHardware is returned when the hardware adapter reports a failure.
	ErrHardware = errors.New("actuator: hardware command failed")

	// ErrNoScheduler is returned by Pulse when no task scheduler is wired.
	ErrNoScheduler = errors.New("actuator: no task scheduler configured")
)
