package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

const coordinatorColumns = `id, site_id, local_ip_address, external_ip_address, channel_name, user_id, created_at, modified_at`

func scanCoordinator(row pgx.Row) (*db.Coordinator, error) {
	var c db.Coordinator
	err := row.Scan(
		&c.ID,
		&c.SiteID,
		&c.LocalIPAddress,
		&c.ExternalIPAddress,
		&c.ChannelName,
		&c.UserID,
		&c.CreatedAt,
		&c.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetCoordinator retrieves a coordinator by id
func (r *Repository) GetCoordinator(ctx context.Context, id uuid.UUID) (*db.Coordinator, error) {
	query := `SELECT ` + coordinatorColumns + ` FROM coordinators WHERE id = $1`

	c, err := scanCoordinator(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinator: %w", err)
	}
	return c, nil
}

// UpsertCoordinatorPing creates or refreshes a coordinator record from an
// anonymous ping, keyed by the device identity
func (r *Repository) UpsertCoordinatorPing(ctx context.Context, id uuid.UUID, localIP, externalIP string) (*db.Coordinator, error) {
	query := `
		INSERT INTO coordinators (id, local_ip_address, external_ip_address)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			local_ip_address = EXCLUDED.local_ip_address,
			external_ip_address = EXCLUDED.external_ip_address,
			modified_at = now()
		RETURNING ` + coordinatorColumns

	c, err := scanCoordinator(r.pool.QueryRow(ctx, query, id, localIP, externalIP))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert coordinator: %w", err)
	}
	return c, nil
}

// CoordinatorsByAddress returns all coordinators whose last-known external
// address equals addr, partitioned into unregistered and registered groups,
// each ordered by most-recently-modified. Returns empty slices on no match.
func (r *Repository) CoordinatorsByAddress(ctx context.Context, addr string) (unregistered, registered []db.Coordinator, err error) {
	query := `
		SELECT ` + coordinatorColumns + `
		FROM coordinators
		WHERE external_ip_address = $1
		ORDER BY modified_at DESC
	`

	rows, err := r.pool.Query(ctx, query, addr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to query coordinators by address: %w", err)
	}
	defer rows.Close()

	unregistered = []db.Coordinator{}
	registered = []db.Coordinator{}
	for rows.Next() {
		c, err := scanCoordinator(rows)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan coordinator: %w", err)
		}
		if c.Registered() {
			registered = append(registered, *c)
		} else {
			unregistered = append(unregistered, *c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return unregistered, registered, nil
}

// FirstCoordinatorByAddress returns the most recently modified coordinator
// sharing the given external address, or ErrNotFound.
func (r *Repository) FirstCoordinatorByAddress(ctx context.Context, addr string) (*db.Coordinator, error) {
	query := `
		SELECT ` + coordinatorColumns + `
		FROM coordinators
		WHERE external_ip_address = $1
		ORDER BY modified_at DESC
		LIMIT 1
	`

	c, err := scanCoordinator(r.pool.QueryRow(ctx, query, addr))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinator by address: %w", err)
	}
	return c, nil
}

// CoordinatorBySite returns the coordinator bound to the given site.
func (r *Repository) CoordinatorBySite(ctx context.Context, siteID uuid.UUID) (*db.Coordinator, error) {
	query := `SELECT ` + coordinatorColumns + ` FROM coordinators WHERE site_id = $1`

	c, err := scanCoordinator(r.pool.QueryRow(ctx, query, siteID))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinator by site: %w", err)
	}
	return c, nil
}

// CoordinatorsBySiteOwner lists coordinators bound to sites the user owns.
func (r *Repository) CoordinatorsBySiteOwner(ctx context.Context, ownerID uuid.UUID) ([]db.Coordinator, error) {
	query := `
		SELECT c.id, c.site_id, c.local_ip_address, c.external_ip_address, c.channel_name, c.user_id, c.created_at, c.modified_at
		FROM coordinators c
		JOIN sites s ON s.id = c.site_id
		WHERE s.owner_id = $1
		ORDER BY c.modified_at DESC
	`

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query coordinators by owner: %w", err)
	}
	defer rows.Close()

	coordinators := []db.Coordinator{}
	for rows.Next() {
		c, err := scanCoordinator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coordinator: %w", err)
		}
		coordinators = append(coordinators, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return coordinators, nil
}

// BindCoordinator assigns the subdomain to the site and binds the
// coordinator to it in one transaction. Nothing is persisted unless both
// updates succeed. A concurrent claim of the same site trips the one-to-one
// constraint on coordinators.site_id and surfaces as ErrConflict.
func (r *Repository) BindCoordinator(ctx context.Context, coordinatorID, siteID uuid.UUID, subdomain string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE sites SET subdomain = $1, modified_at = now() WHERE id = $2`,
		subdomain, siteID)
	if err != nil {
		return fmt.Errorf("failed to assign subdomain: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	tag, err = tx.Exec(ctx,
		`UPDATE coordinators SET site_id = $1, modified_at = now() WHERE id = $2 AND site_id IS NULL`,
		siteID, coordinatorID)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to bind coordinator: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Coordinator missing or already claimed.
		if _, err := r.GetCoordinator(ctx, coordinatorID); err != nil {
			return err
		}
		return ErrConflict
	}

	if err := tx.Commit(ctx); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to commit claim: %w", err)
	}
	return nil
}

// SetCoordinatorChannel records the open-socket channel handle, or clears
// it when channel is empty.
func (r *Repository) SetCoordinatorChannel(ctx context.Context, id uuid.UUID, channel string) error {
	query := `UPDATE coordinators SET channel_name = $1, modified_at = now() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, channel, id)
	if err != nil {
		return fmt.Errorf("failed to set coordinator channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCoordinatorUser links the login credential the coordinator
// authenticates with.
func (r *Repository) SetCoordinatorUser(ctx context.Context, id, userID uuid.UUID) error {
	query := `UPDATE coordinators SET user_id = $1, modified_at = now() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, userID, id)
	if err != nil {
		return fmt.Errorf("failed to set coordinator user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
