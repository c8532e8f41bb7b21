package relay_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"github.com/verdantio/hydrofarm-backend/internal/relay"
	"go.uber.org/zap"
)

// fakeDevices resolves message origins from fixed maps.
type fakeDevices struct {
	coordinators map[uuid.UUID]*db.Coordinator
	controllers  map[uuid.UUID]*db.Controller
}

func newFakeDevices() *fakeDevices {
	return &fakeDevices{
		coordinators: map[uuid.UUID]*db.Coordinator{},
		controllers:  map[uuid.UUID]*db.Controller{},
	}
}

func (f *fakeDevices) GetController(_ context.Context, id uuid.UUID) (*db.Controller, error) {
	if c, ok := f.controllers[id]; ok {
		return c, nil
	}
	return nil, registry.ErrNotFound
}

func (f *fakeDevices) GetCoordinator(_ context.Context, id uuid.UUID) (*db.Coordinator, error) {
	if c, ok := f.coordinators[id]; ok {
		return c, nil
	}
	return nil, registry.ErrNotFound
}

// fakeMessages enforces (timestamp, origin) uniqueness like the real log.
type fakeMessages struct {
	controllerMsgs []db.ControllerMessage
	mqttMsgs       []db.MqttMessage
}

func (f *fakeMessages) InsertControllerMessage(_ context.Context, m *db.ControllerMessage) error {
	for _, existing := range f.controllerMsgs {
		if existing.CreatedAt.Equal(m.CreatedAt) && existing.ControllerID == m.ControllerID {
			return registry.ErrConflict
		}
	}
	f.controllerMsgs = append(f.controllerMsgs, *m)
	return nil
}

func (f *fakeMessages) InsertMqttMessage(_ context.Context, m *db.MqttMessage) error {
	for _, existing := range f.mqttMsgs {
		if existing.CreatedAt.Equal(m.CreatedAt) && existing.CoordinatorID == m.CoordinatorID {
			return registry.ErrConflict
		}
	}
	f.mqttMsgs = append(f.mqttMsgs, *m)
	return nil
}

// fakeRecorder captures telemetry fan-in calls.
type recordedPoint struct {
	ControllerID uuid.UUID
	TypeID       uuid.UUID
	Value        float64
	At           time.Time
}

type fakeRecorder struct {
	recorded []recordedPoint
}

func (f *fakeRecorder) Record(_ context.Context, controllerID, typeID uuid.UUID, value float64, at time.Time) (time.Time, error) {
	f.recorded = append(f.recorded, recordedPoint{ControllerID: controllerID, TypeID: typeID, Value: value, At: at})
	return at, nil
}

type fixture struct {
	devices  *fakeDevices
	messages *fakeMessages
	recorder *fakeRecorder
	service  *relay.Service
}

func newFixture() *fixture {
	devices := newFakeDevices()
	messages := &fakeMessages{}
	recorder := &fakeRecorder{}
	return &fixture{
		devices:  devices,
		messages: messages,
		recorder: recorder,
		service:  relay.NewService(devices, messages, recorder, relay.NewHub(), zap.NewNop()),
	}
}

func (f *fixture) addBoundController() uuid.UUID {
	id := uuid.New()
	coordinatorID := uuid.New()
	f.devices.controllers[id] = &db.Controller{ID: id, CoordinatorID: &coordinatorID}
	return id
}

func (f *fixture) addBoundCoordinator() uuid.UUID {
	id := uuid.New()
	siteID := uuid.New()
	f.devices.coordinators[id] = &db.Coordinator{ID: id, SiteID: &siteID}
	return id
}

func TestIngestControllerMessage_Stored(t *testing.T) {
	f := newFixture()
	controllerID := f.addBoundController()

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	payload := json.RawMessage(`{"status":"ready"}`)
	stored, err := f.service.IngestControllerMessage(context.Background(), controllerID, relay.KindRegister, payload, at)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !stored.Equal(at) {
		t.Errorf("Expected stored time %v, got %v", at, stored)
	}
	if len(f.messages.controllerMsgs) != 1 {
		t.Fatalf("Expected one stored message, got %d", len(f.messages.controllerMsgs))
	}
	if f.messages.controllerMsgs[0].Kind != relay.KindRegister {
		t.Errorf("Expected kind reg, got %s", f.messages.controllerMsgs[0].Kind)
	}
}

func TestIngestControllerMessage_InvalidKind(t *testing.T) {
	f := newFixture()
	controllerID := f.addBoundController()

	_, err := f.service.IngestControllerMessage(context.Background(), controllerID, "telemetry", nil, time.Now())

	if !errors.Is(err, relay.ErrInvalidKind) {
		t.Fatalf("Expected ErrInvalidKind, got %v", err)
	}
	if len(f.messages.controllerMsgs) != 0 {
		t.Error("Expected nothing stored for invalid kind")
	}
}

func TestIngestControllerMessage_UnknownOrigin(t *testing.T) {
	f := newFixture()

	_, err := f.service.IngestControllerMessage(context.Background(), uuid.New(), relay.KindRegister, nil, time.Now())

	if !errors.Is(err, relay.ErrUnknownOrigin) {
		t.Fatalf("Expected ErrUnknownOrigin, got %v", err)
	}
}

func TestIngestControllerMessage_UnboundControllerRejected(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.devices.controllers[id] = &db.Controller{ID: id}

	_, err := f.service.IngestControllerMessage(context.Background(), id, relay.KindRegister, nil, time.Now())

	if !errors.Is(err, relay.ErrUnknownOrigin) {
		t.Fatalf("Expected ErrUnknownOrigin for unbound controller, got %v", err)
	}
}

func TestIngestControllerMessage_DuplicateLeavesStoreUnchanged(t *testing.T) {
	f := newFixture()
	controllerID := f.addBoundController()

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if _, err := f.service.IngestControllerMessage(context.Background(), controllerID, relay.KindRegister,
		json.RawMessage(`{"seq":1}`), at); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	_, err := f.service.IngestControllerMessage(context.Background(), controllerID, relay.KindRegister,
		json.RawMessage(`{"seq":2}`), at)

	if !errors.Is(err, relay.ErrDuplicateMessage) {
		t.Fatalf("Expected ErrDuplicateMessage, got %v", err)
	}
	if len(f.messages.controllerMsgs) != 1 {
		t.Fatalf("Expected store unchanged, got %d messages", len(f.messages.controllerMsgs))
	}
	if string(f.messages.controllerMsgs[0].Message) != `{"seq":1}` {
		t.Errorf("Expected first message preserved, got %s", f.messages.controllerMsgs[0].Message)
	}
}

func TestIngestControllerMessage_TelemetryFansIn(t *testing.T) {
	f := newFixture()
	controllerID := f.addBoundController()

	typeID := uuid.New()
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	pointTime := at.Add(-2 * time.Second)
	payload, _ := json.Marshal(map[string]interface{}{
		"data_points": []map[string]interface{}{
			{"data_point_type": typeID, "value": 21.5, "time": pointTime},
			{"data_point_type": typeID, "value": 22.0},
		},
	})

	_, err := f.service.IngestControllerMessage(context.Background(), controllerID, relay.KindTelemetry, payload, at)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(f.recorder.recorded) != 2 {
		t.Fatalf("Expected two recorded points, got %d", len(f.recorder.recorded))
	}
	if !f.recorder.recorded[0].At.Equal(pointTime) {
		t.Errorf("Expected explicit point time %v, got %v", pointTime, f.recorder.recorded[0].At)
	}
	// A point without its own time inherits the message timestamp.
	if !f.recorder.recorded[1].At.Equal(at) {
		t.Errorf("Expected message time %v, got %v", at, f.recorder.recorded[1].At)
	}
	if f.recorder.recorded[0].ControllerID != controllerID {
		t.Errorf("Expected origin controller id, got %s", f.recorder.recorded[0].ControllerID)
	}
}

func TestIngestControllerMessage_NonTelemetryNotRecorded(t *testing.T) {
	f := newFixture()
	controllerID := f.addBoundController()

	payload, _ := json.Marshal(map[string]interface{}{
		"data_points": []map[string]interface{}{
			{"data_point_type": uuid.New(), "value": 21.5},
		},
	})
	_, err := f.service.IngestControllerMessage(context.Background(), controllerID, relay.KindRegister, payload, time.Now())

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(f.recorder.recorded) != 0 {
		t.Errorf("Expected no telemetry fan-in for reg kind, got %d points", len(f.recorder.recorded))
	}
}

func TestIngestMqttMessage_Stored(t *testing.T) {
	f := newFixture()
	coordinatorID := f.addBoundCoordinator()

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	stored, err := f.service.IngestMqttMessage(context.Background(), coordinatorID, "reg/zone-1",
		json.RawMessage(`{"status":"online"}`), at)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !stored.Equal(at) {
		t.Errorf("Expected stored time %v, got %v", at, stored)
	}
	if len(f.messages.mqttMsgs) != 1 {
		t.Fatalf("Expected one stored message, got %d", len(f.messages.mqttMsgs))
	}
	msg := f.messages.mqttMsgs[0]
	if msg.TopicPrefix != relay.PrefixRegister || msg.TopicSuffix != "zone-1" {
		t.Errorf("Expected decomposed topic reg/zone-1, got %s/%s", msg.TopicPrefix, msg.TopicSuffix)
	}
}

func TestIngestMqttMessage_InvalidTopic(t *testing.T) {
	f := newFixture()
	coordinatorID := f.addBoundCoordinator()

	_, err := f.service.IngestMqttMessage(context.Background(), coordinatorID, "bogus/zone-1", nil, time.Now())

	var topicErr *relay.InvalidTopicError
	if !errors.As(err, &topicErr) {
		t.Fatalf("Expected InvalidTopicError, got %v", err)
	}
	if len(f.messages.mqttMsgs) != 0 {
		t.Error("Expected nothing stored for invalid topic")
	}
}

func TestIngestMqttMessage_UnboundCoordinatorRejected(t *testing.T) {
	f := newFixture()
	id := uuid.New()
	f.devices.coordinators[id] = &db.Coordinator{ID: id}

	_, err := f.service.IngestMqttMessage(context.Background(), id, "tel/zone-1", nil, time.Now())

	if !errors.Is(err, relay.ErrUnknownOrigin) {
		t.Fatalf("Expected ErrUnknownOrigin, got %v", err)
	}
}

func TestIngestMqttMessage_DuplicateSurfaces(t *testing.T) {
	f := newFixture()
	coordinatorID := f.addBoundCoordinator()

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	if _, err := f.service.IngestMqttMessage(context.Background(), coordinatorID, "reg/zone-1", nil, at); err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}

	_, err := f.service.IngestMqttMessage(context.Background(), coordinatorID, "reg/zone-2", nil, at)

	if !errors.Is(err, relay.ErrDuplicateMessage) {
		t.Fatalf("Expected ErrDuplicateMessage, got %v", err)
	}
	if len(f.messages.mqttMsgs) != 1 {
		t.Errorf("Expected store unchanged, got %d messages", len(f.messages.mqttMsgs))
	}
}

func TestIngestMqttMessage_TelemetryFansInForNamedController(t *testing.T) {
	f := newFixture()
	coordinatorID := f.addBoundCoordinator()

	controllerID := uuid.New()
	typeID := uuid.New()
	payload, _ := json.Marshal(map[string]interface{}{
		"controller_id": controllerID,
		"data_points": []map[string]interface{}{
			{"data_point_type": typeID, "value": 6.1},
		},
	})

	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	_, err := f.service.IngestMqttMessage(context.Background(), coordinatorID, "tel/zone-1/ph", payload, at)

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(f.recorder.recorded) != 1 {
		t.Fatalf("Expected one recorded point, got %d", len(f.recorder.recorded))
	}
	if f.recorder.recorded[0].ControllerID != controllerID {
		t.Errorf("Expected named controller id, got %s", f.recorder.recorded[0].ControllerID)
	}
	if f.recorder.recorded[0].Value != 6.1 {
		t.Errorf("Expected value 6.1, got %f", f.recorder.recorded[0].Value)
	}
}

func TestIngestMqttMessage_TelemetryWithoutControllerNotRecorded(t *testing.T) {
	f := newFixture()
	coordinatorID := f.addBoundCoordinator()

	payload, _ := json.Marshal(map[string]interface{}{
		"data_points": []map[string]interface{}{
			{"data_point_type": uuid.New(), "value": 6.1},
		},
	})
	_, err := f.service.IngestMqttMessage(context.Background(), coordinatorID, "tel/zone-1", payload, time.Now())

	if err != nil {
		t.Fatalf("Expected message to store, got %v", err)
	}
	if len(f.recorder.recorded) != 0 {
		t.Errorf("Expected no fan-in without a named controller, got %d points", len(f.recorder.recorded))
	}
}

func TestPushCommand_NoChannel(t *testing.T) {
	f := newFixture()
	controllerID := f.addBoundController()

	err := f.service.PushCommand(context.Background(), controllerID, json.RawMessage(`{"action":"dose"}`))

	if !errors.Is(err, relay.ErrChannelClosed) {
		t.Fatalf("Expected ErrChannelClosed, got %v", err)
	}
}

func TestPushCommand_UnknownController(t *testing.T) {
	f := newFixture()

	err := f.service.PushCommand(context.Background(), uuid.New(), json.RawMessage(`{}`))

	if !errors.Is(err, relay.ErrUnknownOrigin) {
		t.Fatalf("Expected ErrUnknownOrigin, got %v", err)
	}
}
