package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pagination clamps.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// Repository defines the interface for history persistence.
type Repository interface {
	CreateChange(ctx context.Context, entry *ChangeEntry) error
	CreateExecution(ctx context.Context, entry *ExecutionEntry) error
	ListChanges(ctx context.Context, filter ChangeFilter) (*ChangeList, error)
	ListExecutions(ctx context.Context, filter ExecutionFilter) (*ExecutionList, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new history repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreateChange inserts a change entry. ID and CreatedAt are generated
// if empty.
func (r *SQLiteRepository) CreateChange(ctx context.Context, entry *ChangeEntry) error {
	if entry.ID == "" {
		entry.ID = "hist-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var fieldsJSON *string
	if len(entry.ChangedFields) > 0 {
		b, err := json.Marshal(entry.ChangedFields)
		if err != nil {
			return fmt.Errorf("marshalling changed fields: %w", err)
		}
		s := string(b)
		fieldsJSON = &s
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO schedule_history (id, schedule_id, action, before_state, after_state, changed_fields, source, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		nullableString(entry.ScheduleID),
		entry.Action,
		nullableString(entry.BeforeState),
		nullableString(entry.AfterState),
		fieldsJSON,
		entry.Source,
		nullableString(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting change entry: %w", err)
	}
	return nil
}

// CreateExecution inserts an execution entry. ID and CreatedAt are
// generated if empty.
func (r *SQLiteRepository) CreateExecution(ctx context.Context, entry *ExecutionEntry) error {
	if entry.ID == "" {
		entry.ID = "exe-" + uuid.NewString()[:8]
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO executions (id, schedule_id, actuator_id, action, status, error, retry_count, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.ScheduleID,
		nullableString(entry.ActuatorID),
		entry.Action,
		entry.Status,
		nullableString(entry.Error),
		entry.RetryCount,
		entry.LatencyMS,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting execution entry: %w", err)
	}
	return nil
}

// ListChanges returns change entries matching the filter, most recent first.
func (r *SQLiteRepository) ListChanges(ctx context.Context, filter ChangeFilter) (*ChangeList, error) {
	limit, offset := clamp(filter.Limit, filter.Offset)

	var conditions []string
	var args []any
	if filter.ScheduleID != "" {
		conditions = append(conditions, "schedule_id = ?")
		args = append(args, filter.ScheduleID)
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, filter.Action)
	}
	where := whereClause(conditions)

	var total int
	countQuery := "SELECT COUNT(*) FROM schedule_history " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting change entries: %w", err)
	}

	query := `SELECT id, schedule_id, action, before_state, after_state, changed_fields, source, reason, created_at
		FROM schedule_history ` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying change entries: %w", err)
	}
	defer rows.Close()

	entries := []ChangeEntry{}
	for rows.Next() {
		var e ChangeEntry
		var scheduleID, before, after, fieldsJSON, reason sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &scheduleID, &e.Action, &before, &after, &fieldsJSON, &e.Source, &reason, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning change entry: %w", err)
		}

		e.ScheduleID = scheduleID.String
		e.BeforeState = before.String
		e.AfterState = after.String
		e.Reason = reason.String
		if fieldsJSON.Valid && fieldsJSON.String != "" {
			if json.Unmarshal([]byte(fieldsJSON.String), &e.ChangedFields) != nil {
				e.ChangedFields = nil
			}
		}
		if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			e.CreatedAt = t
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating change entries: %w", err)
	}

	return &ChangeList{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

// ListExecutions returns execution entries matching the filter, most recent first.
func (r *SQLiteRepository) ListExecutions(ctx context.Context, filter ExecutionFilter) (*ExecutionList, error) {
	limit, offset := clamp(filter.Limit, filter.Offset)

	var conditions []string
	var args []any
	if filter.ScheduleID != "" {
		conditions = append(conditions, "schedule_id = ?")
		args = append(args, filter.ScheduleID)
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	where := whereClause(conditions)

	var total int
	countQuery := "SELECT COUNT(*) FROM executions " + where
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting execution entries: %w", err)
	}

	query := `SELECT id, schedule_id, actuator_id, action, status, error, retry_count, latency_ms, created_at
		FROM executions ` + where + ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying execution entries: %w", err)
	}
	defer rows.Close()

	entries := []ExecutionEntry{}
	for rows.Next() {
		var e ExecutionEntry
		var actuatorID, errMsg sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.ScheduleID, &actuatorID, &e.Action, &e.Status, &errMsg, &e.RetryCount, &e.LatencyMS, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning execution entry: %w", err)
		}

		e.ActuatorID = actuatorID.String
		e.Error = errMsg.String
		if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			e.CreatedAt = t
		}

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating execution entries: %w", err)
	}

	return &ExecutionList{Entries: entries, Total: total, Limit: limit, Offset: offset}, nil
}

func clamp(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conditions, " AND ")
}

// nullableString returns nil for empty strings, for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
