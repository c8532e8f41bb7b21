// Package registry is the durable device registry: sites, coordinators,
// controllers, their message logs and telemetry rows. All uniqueness and
// one-to-one invariants are enforced by Postgres constraints; this package
// translates constraint violations into ErrConflict for callers to handle.
package registry

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an insert or update loses a unique-constraint
// race, e.g. two concurrent claims of the same site.
var ErrConflict = errors.New("storage conflict")

// Repository handles database operations
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
