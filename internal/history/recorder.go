package history

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fernlea/grow-core/internal/schedule"
)

// Recorder turns domain mutations and execution outcomes into history
// entries. It satisfies the schedule store's ChangeRecorder contract.
// Recording failures are returned to the caller, which decides whether
// they are fatal; the recorder itself does not log.
type Recorder struct {
	repo Repository
}

// NewRecorder creates a recorder over the given repository.
func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo}
}

// LogChange records a schedule mutation with before/after snapshots.
func (r *Recorder) LogChange(ctx context.Context, action schedule.ChangeAction, before, after *schedule.Schedule, changedFields []string, source, reason string) error {
	entry := &ChangeEntry{
		Action:        string(action),
		ChangedFields: changedFields,
		Source:        source,
		Reason:        reason,
	}

	if before != nil {
		entry.ScheduleID = before.ID
		snapshot, err := json.Marshal(before)
		if err != nil {
			return fmt.Errorf("marshalling before snapshot: %w", err)
		}
		entry.BeforeState = string(snapshot)
	}
	if after != nil {
		entry.ScheduleID = after.ID
		snapshot, err := json.Marshal(after)
		if err != nil {
			return fmt.Errorf("marshalling after snapshot: %w", err)
		}
		entry.AfterState = string(snapshot)
	}

	return r.repo.CreateChange(ctx, entry)
}

// LogExecution records one attempted hardware transition.
func (r *Recorder) LogExecution(ctx context.Context, entry ExecutionEntry) error {
	return r.repo.CreateExecution(ctx, &entry)
}

// Changes lists recorded schedule mutations.
func (r *Recorder) Changes(ctx context.Context, filter ChangeFilter) (*ChangeList, error) {
	return r.repo.ListChanges(ctx, filter)
}

// Executions lists recorded transition attempts.
func (r *Recorder) Executions(ctx context.Context, filter ExecutionFilter) (*ExecutionList, error) {
	return r.repo.ListExecutions(ctx, filter)
}
