package actuator

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for actuator persistence: the
// configuration rows registered at startup and the append-only health
// snapshots. Runtime state (current on/off, counters) is in-memory
// only and rebuilt by startup synchronization.
type Repository interface {
	Save(ctx context.Context, e *Entity) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Entity, error)
	CreateHealthSnapshot(ctx context.Context, s *HealthSnapshot) error
	ListHealthSnapshots(ctx context.Context, actuatorID string, limit int) ([]HealthSnapshot, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new actuator repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save upserts an actuator configuration row.
func (r *SQLiteRepository) Save(ctx context.Context, e *Entity) error {
	interlocks, err := json.Marshal(e.Interlocks)
	if err != nil {
		return fmt.Errorf("marshalling interlocks: %w", err)
	}
	if e.Interlocks == nil {
		interlocks = []byte("[]")
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO actuators (id, unit_id, name, device_type, interlocks, max_runtime_seconds, cooldown_seconds, power_watts, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   unit_id = excluded.unit_id,
		   name = excluded.name,
		   device_type = excluded.device_type,
		   interlocks = excluded.interlocks,
		   max_runtime_seconds = excluded.max_runtime_seconds,
		   cooldown_seconds = excluded.cooldown_seconds,
		   power_watts = excluded.power_watts`,
		e.ID,
		e.UnitID,
		e.Name,
		e.DeviceType,
		string(interlocks),
		e.MaxRuntimeSeconds,
		e.CooldownSeconds,
		e.PowerWatts,
		e.RegisteredAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving actuator: %w", err)
	}
	return nil
}

// Delete removes an actuator configuration row.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM actuators WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting actuator: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns every persisted actuator configuration row.
func (r *SQLiteRepository) List(ctx context.Context) ([]Entity, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, unit_id, name, device_type, interlocks, max_runtime_seconds, cooldown_seconds, power_watts, created_at
		 FROM actuators ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("querying actuators: %w", err)
	}
	defer rows.Close()

	var entities []Entity
	for rows.Next() {
		var e Entity
		var interlocks, createdAt string

		if err := rows.Scan(&e.ID, &e.UnitID, &e.Name, &e.DeviceType, &interlocks,
			&e.MaxRuntimeSeconds, &e.CooldownSeconds, &e.PowerWatts, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning actuator: %w", err)
		}

		if interlocks != "" && interlocks != "[]" {
			if json.Unmarshal([]byte(interlocks), &e.Interlocks) != nil {
				e.Interlocks = nil
			}
		}
		if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			e.RegisteredAt = t
		}
		e.State = StateOff

		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating actuators: %w", err)
	}

	return entities, nil
}

// CreateHealthSnapshot appends a health snapshot. ID and CreatedAt are
// generated if empty.
func (r *SQLiteRepository) CreateHealthSnapshot(ctx context.Context, s *HealthSnapshot) error {
	if s.ID == "" {
		s.ID = "snap-" + uuid.NewString()[:8]
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO health_snapshots (id, actuator_id, score, rating, operations, errors, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.ID,
		s.ActuatorID,
		s.Score,
		s.Rating,
		s.Operations,
		s.Errors,
		s.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting health snapshot: %w", err)
	}
	return nil
}

// ListHealthSnapshots returns the most recent snapshots for one
// actuator, newest first.
func (r *SQLiteRepository) ListHealthSnapshots(ctx context.Context, actuatorID string, limit int) ([]HealthSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, actuator_id, score, rating, operations, errors, created_at
		 FROM health_snapshots WHERE actuator_id = ? ORDER BY created_at DESC LIMIT ?`,
		actuatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("querying health snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []HealthSnapshot
	for rows.Next() {
		var s HealthSnapshot
		var createdAt string

		if err := rows.Scan(&s.ID, &s.ActuatorID, &s.Score, &s.Rating, &s.Operations, &s.Errors, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning health snapshot: %w", err)
		}
		if t, parseErr := time.Parse(time.RFC3339, createdAt); parseErr == nil {
			s.CreatedAt = t
		}

		snapshots = append(snapshots, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating health snapshots: %w", err)
	}

	return snapshots, nil
}
