package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

const controllerColumns = `id, name, coordinator_id, site_id, wifi_mac_address, external_ip_address, controller_type, channel_name, created_at, modified_at`

func scanController(row pgx.Row) (*db.Controller, error) {
	var c db.Controller
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.CoordinatorID,
		&c.SiteID,
		&c.WifiMACAddress,
		&c.ExternalIPAddress,
		&c.ControllerType,
		&c.ChannelName,
		&c.CreatedAt,
		&c.ModifiedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetController retrieves a controller by id
func (r *Repository) GetController(ctx context.Context, id uuid.UUID) (*db.Controller, error) {
	query := `SELECT ` + controllerColumns + ` FROM controllers WHERE id = $1`

	c, err := scanController(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query controller: %w", err)
	}
	return c, nil
}

// UpsertControllerPing creates or refreshes a controller record from an
// anonymous ping, keyed by the device identity. The MAC address acts as the
// physical fingerprint and is never changed after creation.
func (r *Repository) UpsertControllerPing(ctx context.Context, id uuid.UUID, name, mac, controllerType, externalIP string) (*db.Controller, error) {
	query := `
		INSERT INTO controllers (id, name, wifi_mac_address, controller_type, external_ip_address)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			controller_type = EXCLUDED.controller_type,
			external_ip_address = EXCLUDED.external_ip_address,
			modified_at = now()
		RETURNING ` + controllerColumns

	c, err := scanController(r.pool.QueryRow(ctx, query, id, name, mac, controllerType, externalIP))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert controller: %w", err)
	}
	return c, nil
}

// UnregisteredControllersSharingAddress returns controllers with no bound
// coordinator whose last-known external address equals addr. Returns an
// empty slice on no match.
func (r *Repository) UnregisteredControllersSharingAddress(ctx context.Context, addr string) ([]db.Controller, error) {
	query := `
		SELECT ` + controllerColumns + `
		FROM controllers
		WHERE external_ip_address = $1 AND coordinator_id IS NULL
		ORDER BY modified_at DESC
	`

	rows, err := r.pool.Query(ctx, query, addr)
	if err != nil {
		return nil, fmt.Errorf("failed to query unregistered controllers: %w", err)
	}
	defer rows.Close()

	controllers := []db.Controller{}
	for rows.Next() {
		c, err := scanController(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan controller: %w", err)
		}
		controllers = append(controllers, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return controllers, nil
}

// BindController binds an unbound controller to a coordinator and its
// site. A controller already bound elsewhere reports ErrConflict, so the
// loser of a concurrent claim skips it.
func (r *Repository) BindController(ctx context.Context, controllerID, coordinatorID, siteID uuid.UUID) error {
	query := `
		UPDATE controllers
		SET coordinator_id = $1, site_id = $2, modified_at = now()
		WHERE id = $3 AND coordinator_id IS NULL
	`

	tag, err := r.pool.Exec(ctx, query, coordinatorID, siteID, controllerID)
	if err != nil {
		return fmt.Errorf("failed to bind controller: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetController(ctx, controllerID); err != nil {
			return err
		}
		return ErrConflict
	}
	return nil
}

// SetControllerChannel records the open-socket channel handle, or clears it
// when channel is empty.
func (r *Repository) SetControllerChannel(ctx context.Context, id uuid.UUID, channel string) error {
	query := `UPDATE controllers SET channel_name = $1, modified_at = now() WHERE id = $2`

	tag, err := r.pool.Exec(ctx, query, channel, id)
	if err != nil {
		return fmt.Errorf("failed to set controller channel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// IssueControllerToken stores the bearer secret for a claimed controller,
// replacing any previous one.
func (r *Repository) IssueControllerToken(ctx context.Context, controllerID uuid.UUID, key string) error {
	query := `
		INSERT INTO controller_tokens (key, controller_id)
		VALUES ($1, $2)
		ON CONFLICT (controller_id) DO UPDATE SET
			key = EXCLUDED.key,
			created_at = now()
	`

	if _, err := r.pool.Exec(ctx, query, key, controllerID); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to issue controller token: %w", err)
	}
	return nil
}

// ControllerByToken resolves a bearer token to its controller.
func (r *Repository) ControllerByToken(ctx context.Context, key string) (*db.Controller, error) {
	query := `
		SELECT c.id, c.name, c.coordinator_id, c.site_id, c.wifi_mac_address, c.external_ip_address, c.controller_type, c.channel_name, c.created_at, c.modified_at
		FROM controllers c
		JOIN controller_tokens t ON t.controller_id = c.id
		WHERE t.key = $1
	`

	c, err := scanController(r.pool.QueryRow(ctx, query, key))
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query controller by token: %w", err)
	}
	return c, nil
}
