// Package relay ingests and routes device messages across the three
// transports: synchronous request/response, the persistent WebSocket
// channel, and broker-relayed MQTT. Every ingested message is appended to
// an immutable log with per-(timestamp, origin) uniqueness.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"go.uber.org/zap"
)

// ErrUnknownOrigin rejects a message whose origin is not a known, bound
// device.
var ErrUnknownOrigin = errors.New("unknown origin")

// ErrDuplicateMessage rejects a message whose (timestamp, origin) pair
// duplicates a stored one. Two distinct messages colliding at microsecond
// precision indicates a client bug, so this is surfaced, not smeared.
var ErrDuplicateMessage = errors.New("duplicate message")

// ErrInvalidKind rejects an unrecognized direct-message kind.
var ErrInvalidKind = errors.New("invalid message kind")

// DeviceStore resolves message origins.
type DeviceStore interface {
	GetController(ctx context.Context, id uuid.UUID) (*db.Controller, error)
	GetCoordinator(ctx context.Context, id uuid.UUID) (*db.Coordinator, error)
}

// MessageStore appends to the immutable message logs.
type MessageStore interface {
	InsertControllerMessage(ctx context.Context, m *db.ControllerMessage) error
	InsertMqttMessage(ctx context.Context, m *db.MqttMessage) error
}

// Recorder persists telemetry data points.
type Recorder interface {
	Record(ctx context.Context, controllerID, typeID uuid.UUID, value float64, at time.Time) (time.Time, error)
}

// Service is the message relay.
type Service struct {
	devices  DeviceStore
	messages MessageStore
	points   Recorder
	hub      *Hub
	logger   *zap.Logger
}

// NewService creates a new relay service
func NewService(devices DeviceStore, messages MessageStore, points Recorder, hub *Hub, logger *zap.Logger) *Service {
	return &Service{devices: devices, messages: messages, points: points, hub: hub, logger: logger}
}

// telemetryPayload is the recognized shape of a telemetry-kind message.
// Unknown fields are preserved in the stored document but ignored here.
type telemetryPayload struct {
	ControllerID *uuid.UUID       `json:"controller_id,omitempty"`
	DataPoints   []telemetryPoint `json:"data_points"`
}

type telemetryPoint struct {
	TypeID uuid.UUID `json:"data_point_type"`
	Value  float64   `json:"value"`
	Time   time.Time `json:"time,omitempty"`
}

// IngestControllerMessage appends one direct message from a controller and
// returns the stored timestamp. The origin must be a known, bound
// controller; a (timestamp, origin) collision is ErrDuplicateMessage with
// the store unchanged.
func (s *Service) IngestControllerMessage(ctx context.Context, controllerID uuid.UUID, kind string, payload json.RawMessage, at time.Time) (time.Time, error) {
	if !ValidKind(kind) {
		return time.Time{}, ErrInvalidKind
	}

	controller, err := s.devices.GetController(ctx, controllerID)
	if errors.Is(err, registry.ErrNotFound) {
		return time.Time{}, ErrUnknownOrigin
	}
	if err != nil {
		return time.Time{}, err
	}
	if !controller.Registered() {
		return time.Time{}, ErrUnknownOrigin
	}

	at = normalize(at)
	msg := &db.ControllerMessage{
		CreatedAt:    at,
		ControllerID: controller.ID,
		Kind:         kind,
		Message:      payload,
	}
	if err := s.messages.InsertControllerMessage(ctx, msg); err != nil {
		if errors.Is(err, registry.ErrConflict) {
			return time.Time{}, ErrDuplicateMessage
		}
		return time.Time{}, err
	}

	if kind == KindTelemetry {
		s.recordTelemetry(ctx, controller.ID, payload, at)
	}
	return at, nil
}

// IngestMqttMessage appends one broker-relayed message from a coordinator
// and returns the stored timestamp. The topic must decompose into a
// recognized prefix plus free-form suffix.
func (s *Service) IngestMqttMessage(ctx context.Context, coordinatorID uuid.UUID, topic string, payload json.RawMessage, at time.Time) (time.Time, error) {
	prefix, suffix, err := ParseTopic(topic)
	if err != nil {
		return time.Time{}, err
	}

	coordinator, err := s.devices.GetCoordinator(ctx, coordinatorID)
	if errors.Is(err, registry.ErrNotFound) {
		return time.Time{}, ErrUnknownOrigin
	}
	if err != nil {
		return time.Time{}, err
	}
	if !coordinator.Registered() {
		return time.Time{}, ErrUnknownOrigin
	}

	// The relaying coordinator may name the originating controller.
	var envelope telemetryPayload
	_ = json.Unmarshal(payload, &envelope)

	at = normalize(at)
	msg := &db.MqttMessage{
		CreatedAt:     at,
		CoordinatorID: coordinator.ID,
		ControllerID:  envelope.ControllerID,
		TopicPrefix:   prefix,
		TopicSuffix:   suffix,
		Message:       payload,
	}
	if err := s.messages.InsertMqttMessage(ctx, msg); err != nil {
		if errors.Is(err, registry.ErrConflict) {
			return time.Time{}, ErrDuplicateMessage
		}
		return time.Time{}, err
	}

	if prefix == PrefixTelemetry && envelope.ControllerID != nil {
		s.recordTelemetry(ctx, *envelope.ControllerID, payload, at)
	}
	return at, nil
}

// PushCommand logs a command message for a controller and pushes it over
// the controller's live channel.
func (s *Service) PushCommand(ctx context.Context, controllerID uuid.UUID, payload json.RawMessage) error {
	controller, err := s.devices.GetController(ctx, controllerID)
	if errors.Is(err, registry.ErrNotFound) {
		return ErrUnknownOrigin
	}
	if err != nil {
		return err
	}
	if controller.ChannelName == "" {
		return ErrChannelClosed
	}

	msg := &db.ControllerMessage{
		CreatedAt:    normalize(time.Now()),
		ControllerID: controller.ID,
		Kind:         KindCommand,
		Message:      payload,
	}
	if err := s.messages.InsertControllerMessage(ctx, msg); err != nil {
		if errors.Is(err, registry.ErrConflict) {
			return ErrDuplicateMessage
		}
		return err
	}

	return s.hub.Send(controller.ChannelName, payload)
}

// recordTelemetry fans the data points of a telemetry message into the
// telemetry store. Malformed points are logged and skipped; the message
// itself is already stored.
func (s *Service) recordTelemetry(ctx context.Context, controllerID uuid.UUID, payload json.RawMessage, at time.Time) {
	var body telemetryPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		s.logger.Warn("telemetry payload is not decodable",
			zap.Error(err),
			zap.String("controller_id", controllerID.String()),
		)
		return
	}

	for _, point := range body.DataPoints {
		if point.TypeID == uuid.Nil {
			s.logger.Warn("telemetry point without data point type",
				zap.String("controller_id", controllerID.String()),
			)
			continue
		}
		pointTime := point.Time
		if pointTime.IsZero() {
			pointTime = at
		}
		if _, err := s.points.Record(ctx, controllerID, point.TypeID, point.Value, pointTime); err != nil {
			s.logger.Error("failed to record data point",
				zap.Error(err),
				zap.String("controller_id", controllerID.String()),
			)
		}
	}
}

// Message timestamps are stored with microsecond precision; normalize
// before insert so equality checks against stored rows are exact.
func normalize(at time.Time) time.Time {
	if at.IsZero() {
		at = time.Now()
	}
	return at.UTC().Truncate(time.Microsecond)
}
