package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

const siteColumns = `id, owner_id, name, subdomain, postal_address, created_at, modified_at`

func scanSite(row pgx.Row) (*db.Site, error) {
	var s db.Site
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.Name,
		&s.Subdomain,
		&s.PostalAddress,
		&s.CreatedAt,
		&s.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CreateSite creates a site owned by the given user.
func (r *Repository) CreateSite(ctx context.Context, ownerID uuid.UUID, name, postalAddress string) (*db.Site, error) {
	query := `
		INSERT INTO sites (id, owner_id, name, postal_address)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + siteColumns

	s, err := scanSite(r.pool.QueryRow(ctx, query, uuid.New(), ownerID, name, postalAddress))
	if err != nil {
		return nil, fmt.Errorf("failed to create site: %w", err)
	}
	return s, nil
}

// GetSite retrieves a site by id
func (r *Repository) GetSite(ctx context.Context, id uuid.UUID) (*db.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE id = $1`

	s, err := scanSite(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query site: %w", err)
	}
	return s, nil
}

// SitesByOwner lists the user's sites, newest first.
func (r *Repository) SitesByOwner(ctx context.Context, ownerID uuid.UUID) ([]db.Site, error) {
	query := `SELECT ` + siteColumns + ` FROM sites WHERE owner_id = $1 ORDER BY created_at DESC`

	return r.querySites(ctx, query, ownerID)
}

// SitesWithoutCoordinator lists the user's sites that have no bound
// coordinator yet, the candidates for a claim.
func (r *Repository) SitesWithoutCoordinator(ctx context.Context, ownerID uuid.UUID) ([]db.Site, error) {
	query := `
		SELECT ` + siteColumns + `
		FROM sites
		WHERE owner_id = $1
		  AND id NOT IN (SELECT site_id FROM coordinators WHERE site_id IS NOT NULL)
		ORDER BY created_at DESC
	`

	return r.querySites(ctx, query, ownerID)
}

func (r *Repository) querySites(ctx context.Context, query string, args ...interface{}) ([]db.Site, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sites: %w", err)
	}
	defer rows.Close()

	sites := []db.Site{}
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		sites = append(sites, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return sites, nil
}

// DeleteSite removes a site owned by the given user. Referential actions
// cascade to systems and controllers and detach the coordinator.
func (r *Repository) DeleteSite(ctx context.Context, id, ownerID uuid.UUID) error {
	query := `DELETE FROM sites WHERE id = $1 AND owner_id = $2`

	tag, err := r.pool.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete site: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateHydroponicSystem adds a growing system to a site.
func (r *Repository) CreateHydroponicSystem(ctx context.Context, siteID uuid.UUID, name, systemType string) (*db.HydroponicSystem, error) {
	query := `
		INSERT INTO hydroponic_systems (id, site_id, name, system_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id, site_id, name, system_type, created_at, modified_at
	`

	var s db.HydroponicSystem
	err := r.pool.QueryRow(ctx, query, uuid.New(), siteID, name, systemType).Scan(
		&s.ID, &s.SiteID, &s.Name, &s.SystemType, &s.CreatedAt, &s.ModifiedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create hydroponic system: %w", err)
	}
	return &s, nil
}

// HydroponicSystemsBySite lists a site's growing systems.
func (r *Repository) HydroponicSystemsBySite(ctx context.Context, siteID uuid.UUID) ([]db.HydroponicSystem, error) {
	query := `
		SELECT id, site_id, name, system_type, created_at, modified_at
		FROM hydroponic_systems
		WHERE site_id = $1
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query, siteID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hydroponic systems: %w", err)
	}
	defer rows.Close()

	systems := []db.HydroponicSystem{}
	for rows.Next() {
		var s db.HydroponicSystem
		if err := rows.Scan(&s.ID, &s.SiteID, &s.Name, &s.SystemType, &s.CreatedAt, &s.ModifiedAt); err != nil {
			return nil, fmt.Errorf("failed to scan hydroponic system: %w", err)
		}
		systems = append(systems, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return systems, nil
}
