package actuator

import "time"

// Health ratings.
const (
	RatingExcellent = "excellent"
	RatingGood      = "good"
	RatingFair      = "fair"
	RatingPoor      = "poor"
)

// Snapshot thresholds: a snapshot is cut every snapshotOperations
// operations or snapshotInterval since the last one, whichever first.
const (
	snapshotOperations = 100
	snapshotInterval   = time.Hour
)

// HealthSnapshot is one persisted reliability sample for an actuator.
// Score is 100 x (1 - errorRate) over the snapshot window.
type HealthSnapshot struct {
	ID         string    `json:"id"`
	ActuatorID string    `json:"actuator_id"`
	Score      float64   `json:"score"`
	Rating     string    `json:"rating"`
	Operations int64     `json:"operations"`
	Errors     int64     `json:"errors"`
	CreatedAt  time.Time `json:"created_at"`
}

// Rating buckets a health score.
func Rating(score float64) string {
	switch {
	case score >= 90:
		return RatingExcellent
	case score >= 70:
		return RatingGood
	case score >= 50:
		return RatingFair
	default:
		return RatingPoor
	}
}

// healthScore computes 100 x (1 - errors/operations).
func healthScore(operations, errors int64) float64 {
	if operations <= 0 {
		return 100
	}
	return 100 * (1 - float64(errors)/float64(operations))
}

// healthWindow tracks per-actuator activity since the last snapshot.
type healthWindow struct {
	ops    int64
	errs   int64
	lastAt time.Time
}
