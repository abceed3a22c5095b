package history

import "time"

// Execution statuses.
const (
	StatusExecuted = "EXECUTED"
	StatusFailed   = "FAILED"
)

// ChangeEntry is one recorded schedule mutation.
type ChangeEntry struct {
	ID            string    `json:"id"`
	ScheduleID    string    `json:"schedule_id,omitempty"`
	Action        string    `json:"action"`
	BeforeState   string    `json:"before_state,omitempty"` // JSON snapshot
	AfterState    string    `json:"after_state,omitempty"`  // JSON snapshot
	ChangedFields []string  `json:"changed_fields,omitempty"`
	Source        string    `json:"source"`
	Reason        string    `json:"reason,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExecutionEntry is one recorded hardware transition attempt.
type ExecutionEntry struct {
	ID         string    `json:"id"`
	ScheduleID string    `json:"schedule_id"`
	ActuatorID string    `json:"actuator_id,omitempty"`
	Action     string    `json:"action"` // activate, deactivate
	Status     string    `json:"status"` // EXECUTED, FAILED
	Error      string    `json:"error,omitempty"`
	RetryCount int       `json:"retry_count"`
	LatencyMS  int64     `json:"latency_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// ChangeFilter controls which change entries to return.
type ChangeFilter struct {
	ScheduleID string // optional
	Action     string // optional
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ExecutionFilter controls which execution entries to return.
type ExecutionFilter struct {
	ScheduleID string // optional
	Status     string // optional: EXECUTED or FAILED
	Limit      int    // default 50, max 200
	Offset     int    // pagination offset
}

// ChangeList contains paginated change results.
type ChangeList struct {
	Entries []ChangeEntry `json:"entries"`
	Total   int           `json:"total"`
	Limit   int           `json:"limit"`
	Offset  int           `json:"offset"`
}

// ExecutionList contains paginated execution results.
type ExecutionList struct {
	Entries []ExecutionEntry `json:"entries"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}
