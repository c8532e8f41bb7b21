// Package telemetry is the append-only time-series store for data points.
// The time column is globally unique rather than unique per controller, so
// near-simultaneous samples from any source contend for the same slot.
// Two different sensors sampling the same instant shift each other's
// stored timestamps. Collisions are resolved by
// smearing: the timestamp is advanced one microsecond at a time until a
// free slot is found, which keeps per-source ordering monotonic at the cost
// of the stored time drifting from the sample time under contention.
package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"go.uber.org/zap"
)

// PointWriter persists data points, returning registry.ErrConflict on a
// timestamp collision.
type PointWriter interface {
	InsertDataPoint(ctx context.Context, dp db.DataPoint) error
	LatestDataPoint(ctx context.Context, controllerID uuid.UUID) (*db.DataPoint, error)
}

// Cache mirrors the latest value per controller into the hot path.
type Cache interface {
	SetLatest(ctx context.Context, controllerID uuid.UUID, value float64, at time.Time) error
	GetLatest(ctx context.Context, controllerID uuid.UUID) (float64, time.Time, bool, error)
}

// Store records telemetry.
type Store struct {
	points PointWriter
	cache  Cache
	logger *zap.Logger
}

// NewStore creates a new telemetry store
func NewStore(points PointWriter, cache Cache, logger *zap.Logger) *Store {
	return &Store{points: points, cache: cache, logger: logger}
}

// Record persists one data point and returns the timestamp actually
// stored, which may have been smeared forward past colliding slots. The
// retry loop is unbounded in theory; in practice collisions are rare and
// each retry frees exactly one microsecond, so it terminates quickly.
// Record never fails with a collision error.
func (s *Store) Record(ctx context.Context, controllerID, typeID uuid.UUID, value float64, at time.Time) (time.Time, error) {
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC().Truncate(time.Microsecond)

	dp := db.DataPoint{
		Time:            at,
		ControllerID:    controllerID,
		DataPointTypeID: typeID,
		Value:           value,
	}
	for {
		err := s.points.InsertDataPoint(ctx, dp)
		if err == nil {
			break
		}
		if !errors.Is(err, registry.ErrConflict) {
			return time.Time{}, err
		}
		dp.Time = dp.Time.Add(time.Microsecond)
	}

	if smear := dp.Time.Sub(at); smear > 0 {
		s.logger.Debug("smeared data point timestamp",
			zap.String("controller_id", controllerID.String()),
			zap.Duration("smear", smear),
		)
	}

	if s.cache != nil {
		// Cache failure loses only the hot copy; the row is committed.
		if err := s.cache.SetLatest(ctx, controllerID, value, dp.Time); err != nil {
			s.logger.Warn("failed to update latest-value cache",
				zap.Error(err),
				zap.String("controller_id", controllerID.String()),
			)
		}
	}
	return dp.Time, nil
}

// Latest returns the most recent value for a controller, served from the
// hot cache when possible and the database otherwise.
func (s *Store) Latest(ctx context.Context, controllerID uuid.UUID) (float64, time.Time, error) {
	if s.cache != nil {
		value, at, ok, err := s.cache.GetLatest(ctx, controllerID)
		if err != nil {
			s.logger.Warn("latest-value cache read failed", zap.Error(err))
		} else if ok {
			return value, at, nil
		}
	}

	dp, err := s.points.LatestDataPoint(ctx, controllerID)
	if err != nil {
		return 0, time.Time{}, err
	}
	return dp.Value, dp.Time, nil
}
