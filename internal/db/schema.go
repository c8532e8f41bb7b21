package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied on startup. Uniqueness and referential actions live
// here: concurrent claims and duplicate messages are arbitrated by these
// constraints, not by application-level locks.
const schema = `
CREATE TABLE IF NOT EXISTS sites (
	id UUID PRIMARY KEY,
	owner_id UUID NOT NULL,
	name TEXT NOT NULL,
	subdomain TEXT NOT NULL DEFAULT '',
	postal_address TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS hydroponic_systems (
	id UUID PRIMARY KEY,
	site_id UUID NOT NULL REFERENCES sites (id) ON DELETE CASCADE,
	name TEXT NOT NULL DEFAULT '',
	system_type TEXT NOT NULL DEFAULT 'VT',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS coordinators (
	id UUID PRIMARY KEY,
	site_id UUID UNIQUE REFERENCES sites (id) ON DELETE SET NULL,
	local_ip_address TEXT NOT NULL,
	external_ip_address TEXT NOT NULL,
	channel_name TEXT NOT NULL DEFAULT '',
	user_id UUID,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS coordinators_external_ip_idx
	ON coordinators (external_ip_address);

CREATE TABLE IF NOT EXISTS controllers (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL DEFAULT '',
	coordinator_id UUID REFERENCES coordinators (id) ON DELETE CASCADE,
	site_id UUID REFERENCES sites (id) ON DELETE CASCADE,
	wifi_mac_address TEXT NOT NULL,
	external_ip_address TEXT NOT NULL,
	controller_type TEXT NOT NULL DEFAULT 'UNK',
	channel_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS controllers_external_ip_idx
	ON controllers (external_ip_address);

CREATE TABLE IF NOT EXISTS controller_tokens (
	key TEXT PRIMARY KEY,
	controller_id UUID NOT NULL UNIQUE REFERENCES controllers (id) ON DELETE CASCADE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS controller_messages (
	created_at TIMESTAMPTZ NOT NULL,
	controller_id UUID NOT NULL REFERENCES controllers (id) ON DELETE CASCADE,
	kind TEXT NOT NULL,
	message JSONB NOT NULL,
	UNIQUE (created_at, controller_id)
);

CREATE TABLE IF NOT EXISTS mqtt_messages (
	created_at TIMESTAMPTZ NOT NULL,
	coordinator_id UUID NOT NULL REFERENCES coordinators (id) ON DELETE CASCADE,
	controller_id UUID REFERENCES controllers (id) ON DELETE CASCADE,
	topic_prefix TEXT NOT NULL,
	topic_suffix TEXT NOT NULL DEFAULT '',
	message JSONB NOT NULL,
	UNIQUE (created_at, coordinator_id)
);

CREATE TABLE IF NOT EXISTS data_point_types (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	unit TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS data_points (
	time TIMESTAMPTZ PRIMARY KEY,
	controller_id UUID NOT NULL REFERENCES controllers (id) ON DELETE CASCADE,
	data_point_type_id UUID NOT NULL REFERENCES data_point_types (id) ON DELETE CASCADE,
	value DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS data_points_controller_idx
	ON data_points (controller_id, time);

CREATE TABLE IF NOT EXISTS task_results (
	id UUID PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'PENDING',
	result JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	modified_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Migrate creates any missing tables and indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
