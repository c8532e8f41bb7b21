package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

// InsertDataPoint persists one data point. The time column is the primary
// key system-wide, so a timestamp collision returns ErrConflict; the
// telemetry store resolves it by smearing, this layer never does.
func (r *Repository) InsertDataPoint(ctx context.Context, dp db.DataPoint) error {
	query := `
		INSERT INTO data_points (time, controller_id, data_point_type_id, value)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, dp.Time, dp.ControllerID, dp.DataPointTypeID, dp.Value)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert data point: %w", err)
	}
	return nil
}

// CreateDataPointType registers a (name, unit) measurement kind.
func (r *Repository) CreateDataPointType(ctx context.Context, name, unit string) (*db.DataPointType, error) {
	query := `
		INSERT INTO data_point_types (id, name, unit)
		VALUES ($1, $2, $3)
		RETURNING id, name, unit
	`

	var t db.DataPointType
	if err := r.pool.QueryRow(ctx, query, uuid.New(), name, unit).Scan(&t.ID, &t.Name, &t.Unit); err != nil {
		return nil, fmt.Errorf("failed to create data point type: %w", err)
	}
	return &t, nil
}

// GetDataPointType retrieves a measurement kind by id
func (r *Repository) GetDataPointType(ctx context.Context, id uuid.UUID) (*db.DataPointType, error) {
	query := `SELECT id, name, unit FROM data_point_types WHERE id = $1`

	var t db.DataPointType
	err := r.pool.QueryRow(ctx, query, id).Scan(&t.ID, &t.Name, &t.Unit)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query data point type: %w", err)
	}
	return &t, nil
}

// ListDataPointTypes lists all measurement kinds.
func (r *Repository) ListDataPointTypes(ctx context.Context) ([]db.DataPointType, error) {
	query := `SELECT id, name, unit FROM data_point_types ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query data point types: %w", err)
	}
	defer rows.Close()

	types := []db.DataPointType{}
	for rows.Next() {
		var t db.DataPointType
		if err := rows.Scan(&t.ID, &t.Name, &t.Unit); err != nil {
			return nil, fmt.Errorf("failed to scan data point type: %w", err)
		}
		types = append(types, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return types, nil
}

// LatestDataPoint returns the newest stored data point for a controller,
// the cold-path fallback behind the Redis hot cache.
func (r *Repository) LatestDataPoint(ctx context.Context, controllerID uuid.UUID) (*db.DataPoint, error) {
	query := `
		SELECT time, controller_id, data_point_type_id, value
		FROM data_points
		WHERE controller_id = $1
		ORDER BY time DESC
		LIMIT 1
	`

	var dp db.DataPoint
	err := r.pool.QueryRow(ctx, query, controllerID).Scan(&dp.Time, &dp.ControllerID, &dp.DataPointTypeID, &dp.Value)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest data point: %w", err)
	}
	return &dp, nil
}
