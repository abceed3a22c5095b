package schedule

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Repository defines the interface for schedule persistence.
// This abstraction allows different implementations (SQLite, mock, etc.)
// and enables unit testing without database dependencies.
//
// Implementations must be transactional per call: any returned error
// means the mutation did not take effect, which is what triggers the
// Store's in-memory rollback.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Schedule, error)
	GetByUnit(ctx context.Context, unitID string) ([]Schedule, error)
	Create(ctx context.Context, s *Schedule) error
	Update(ctx context.Context, s *Schedule) error
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// scheduleColumns is the SELECT column list for schedule queries.
const scheduleColumns = `id, unit_id, name, device_type, actuator_id, schedule_type,
			start_time, end_time, days_of_week, enabled, priority, value,
			state_when_active, photoperiod, metadata, created_at, updated_at`

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new SQLite-backed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID retrieves a schedule by its unique identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE id = ?`

	row := r.db.QueryRowContext(ctx, query, id)
	s, err := scanScheduleRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying schedule by id: %w", err)
	}
	return s, nil
}

// GetByUnit retrieves all schedules belonging to a growth unit.
func (r *SQLiteRepository) GetByUnit(ctx context.Context, unitID string) ([]Schedule, error) {
	query := `SELECT ` + scheduleColumns + ` FROM schedules WHERE unit_id = ? ORDER BY priority DESC, created_at, id`

	rows, err := r.db.QueryContext(ctx, query, unitID)
	if err != nil {
		return nil, fmt.Errorf("querying schedules by unit: %w", err)
	}
	defer rows.Close()

	var schedules []Schedule
	for rows.Next() {
		s, scanErr := scanScheduleRow(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scanning schedule: %w", scanErr)
		}
		schedules = append(schedules, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating schedules: %w", err)
	}
	return schedules, nil
}

// Create inserts a new schedule.
func (r *SQLiteRepository) Create(ctx context.Context, s *Schedule) error {
	daysJSON, photoJSON, metaJSON, err := marshalScheduleJSON(s)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	query := `
		INSERT INTO schedules (
			id, unit_id, name, device_type, actuator_id, schedule_type,
			start_time, end_time, days_of_week, enabled, priority, value,
			state_when_active, photoperiod, metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.ExecContext(ctx, query,
		s.ID,
		s.UnitID,
		s.Name,
		s.DeviceType,
		nullableString(s.ActuatorID),
		string(s.Type),
		s.StartTime,
		s.EndTime,
		daysJSON,
		boolToInt(s.Enabled),
		s.Priority,
		nullableFloat(s.Value),
		boolToInt(s.StateWhenActive),
		photoJSON,
		metaJSON,
		s.CreatedAt.Format(time.RFC3339),
		s.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrExists
		}
		return fmt.Errorf("inserting schedule: %w", err)
	}
	return nil
}

// Update modifies an existing schedule.
func (r *SQLiteRepository) Update(ctx context.Context, s *Schedule) error {
	daysJSON, photoJSON, metaJSON, err := marshalScheduleJSON(s)
	if err != nil {
		return err
	}

	s.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE schedules SET
			unit_id = ?, name = ?, device_type = ?, actuator_id = ?,
			schedule_type = ?, start_time = ?, end_time = ?, days_of_week = ?,
			enabled = ?, priority = ?, value = ?, state_when_active = ?,
			photoperiod = ?, metadata = ?, updated_at = ?
		WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		s.UnitID,
		s.Name,
		s.DeviceType,
		nullableString(s.ActuatorID),
		string(s.Type),
		s.StartTime,
		s.EndTime,
		daysJSON,
		boolToInt(s.Enabled),
		s.Priority,
		nullableFloat(s.Value),
		boolToInt(s.StateWhenActive),
		photoJSON,
		metaJSON,
		s.UpdatedAt.Format(time.RFC3339),
		s.ID,
	)
	if err != nil {
		return fmt.Errorf("updating schedule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a schedule by ID.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM schedules WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting schedule: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnabled flips the enabled flag without touching other columns.
func (r *SQLiteRepository) SetEnabled(ctx context.Context, id string, enabled bool) error {
	query := `UPDATE schedules SET enabled = ?, updated_at = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339),
		id,
	)
	if err != nil {
		return fmt.Errorf("setting schedule enabled: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ─── Row Scanning Helpers ───────────────────────────────────────────────────

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduleRow(scanner rowScanner) (*Schedule, error) {
	var s Schedule
	var actuatorID sql.NullString
	var scheduleType, daysJSON string
	var photoJSON, metaJSON sql.NullString
	var value sql.NullFloat64
	var enabled, stateWhenActive int
	var createdAt, updatedAt string

	err := scanner.Scan(
		&s.ID,
		&s.UnitID,
		&s.Name,
		&s.DeviceType,
		&actuatorID,
		&scheduleType,
		&s.StartTime,
		&s.EndTime,
		&daysJSON,
		&enabled,
		&s.Priority,
		&value,
		&stateWhenActive,
		&photoJSON,
		&metaJSON,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.Type = Type(scheduleType)
	s.Enabled = enabled != 0
	s.StateWhenActive = stateWhenActive != 0

	if actuatorID.Valid {
		s.ActuatorID = &actuatorID.String
	}
	if value.Valid {
		s.Value = &value.Float64
	}

	if daysJSON != "" && daysJSON != "[]" {
		if jsonErr := json.Unmarshal([]byte(daysJSON), &s.DaysOfWeek); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling days_of_week: %w", jsonErr)
		}
	}
	if s.DaysOfWeek == nil {
		s.DaysOfWeek = []time.Weekday{}
	}

	if photoJSON.Valid && photoJSON.String != "" && photoJSON.String != "null" {
		if jsonErr := json.Unmarshal([]byte(photoJSON.String), &s.Photoperiod); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling photoperiod: %w", jsonErr)
		}
	}
	if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
		if jsonErr := json.Unmarshal([]byte(metaJSON.String), &s.Metadata); jsonErr != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", jsonErr)
		}
	}

	// Timestamps are stored as RFC3339 strings
	if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
		s.CreatedAt = t
	}
	if t, parseErr := time.Parse(time.RFC3339, updatedAt); parseErr == nil {
		s.UpdatedAt = t
	}

	return &s, nil
}

// ─── SQL Helpers ────────────────────────────────────────────────────────────

func marshalScheduleJSON(s *Schedule) (days string, photo, meta sql.NullString, err error) {
	daysJSON, err := json.Marshal(s.DaysOfWeek)
	if err != nil {
		return "", sql.NullString{}, sql.NullString{}, fmt.Errorf("marshalling days_of_week: %w", err)
	}

	if s.Photoperiod != nil {
		data, mErr := json.Marshal(s.Photoperiod)
		if mErr != nil {
			return "", sql.NullString{}, sql.NullString{}, fmt.Errorf("marshalling photoperiod: %w", mErr)
		}
		photo = sql.NullString{String: string(data), Valid: true}
	}
	if len(s.Metadata) > 0 {
		data, mErr := json.Marshal(s.Metadata)
		if mErr != nil {
			return "", sql.NullString{}, sql.NullString{}, fmt.Errorf("marshalling metadata: %w", mErr)
		}
		meta = sql.NullString{String: string(data), Valid: true}
	}

	return string(daysJSON), photo, meta, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil || *s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullableFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique constraint")
}
