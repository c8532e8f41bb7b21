package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

// InsertControllerMessage appends one immutable controller message. A
// (created_at, controller_id) collision returns ErrConflict and leaves the
// log unchanged.
func (r *Repository) InsertControllerMessage(ctx context.Context, m *db.ControllerMessage) error {
	query := `
		INSERT INTO controller_messages (created_at, controller_id, kind, message)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, m.CreatedAt, m.ControllerID, m.Kind, m.Message)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert controller message: %w", err)
	}
	return nil
}

// InsertMqttMessage appends one immutable broker-relayed message. A
// (created_at, coordinator_id) collision returns ErrConflict.
func (r *Repository) InsertMqttMessage(ctx context.Context, m *db.MqttMessage) error {
	query := `
		INSERT INTO mqtt_messages (created_at, coordinator_id, controller_id, topic_prefix, topic_suffix, message)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		m.CreatedAt, m.CoordinatorID, m.ControllerID, m.TopicPrefix, m.TopicSuffix, m.Message)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("failed to insert mqtt message: %w", err)
	}
	return nil
}

// MqttMessagesByCoordinator lists a coordinator's broker-relayed messages,
// newest first.
func (r *Repository) MqttMessagesByCoordinator(ctx context.Context, coordinatorID uuid.UUID, limit int) ([]db.MqttMessage, error) {
	query := `
		SELECT created_at, coordinator_id, controller_id, topic_prefix, topic_suffix, message
		FROM mqtt_messages
		WHERE coordinator_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, coordinatorID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query mqtt messages: %w", err)
	}
	defer rows.Close()

	messages := []db.MqttMessage{}
	for rows.Next() {
		var m db.MqttMessage
		if err := rows.Scan(&m.CreatedAt, &m.CoordinatorID, &m.ControllerID, &m.TopicPrefix, &m.TopicSuffix, &m.Message); err != nil {
			return nil, fmt.Errorf("failed to scan mqtt message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return messages, nil
}

// ControllerMessagesByController lists a controller's direct messages,
// newest first.
func (r *Repository) ControllerMessagesByController(ctx context.Context, controllerID uuid.UUID, limit int) ([]db.ControllerMessage, error) {
	query := `
		SELECT created_at, controller_id, kind, message
		FROM controller_messages
		WHERE controller_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, controllerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query controller messages: %w", err)
	}
	defer rows.Close()

	messages := []db.ControllerMessage{}
	for rows.Next() {
		var m db.ControllerMessage
		if err := rows.Scan(&m.CreatedAt, &m.ControllerID, &m.Kind, &m.Message); err != nil {
			return nil, fmt.Errorf("failed to scan controller message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return messages, nil
}
