package mqttbridge

import (
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func TestSplitTopic(t *testing.T) {
	b := &Bridge{topicRoot: "coordinators", logger: zap.NewNop()}
	coordinatorID := uuid.New()

	id, deviceTopic, err := b.splitTopic("coordinators/" + coordinatorID.String() + "/tel/zone-1/ph")

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if id != coordinatorID {
		t.Errorf("Expected coordinator id %s, got %s", coordinatorID, id)
	}
	if deviceTopic != "tel/zone-1/ph" {
		t.Errorf("Expected device topic tel/zone-1/ph, got %s", deviceTopic)
	}
}

func TestSplitTopic_WrongRoot(t *testing.T) {
	b := &Bridge{topicRoot: "coordinators", logger: zap.NewNop()}

	if _, _, err := b.splitTopic("sensors/" + uuid.NewString() + "/tel"); err == nil {
		t.Fatal("Expected error for topic outside the coordinator tree")
	}
}

func TestSplitTopic_BadCoordinatorID(t *testing.T) {
	b := &Bridge{topicRoot: "coordinators", logger: zap.NewNop()}

	if _, _, err := b.splitTopic("coordinators/not-a-uuid/tel"); err == nil {
		t.Fatal("Expected error for malformed coordinator id")
	}
}

func TestSplitTopic_TooShort(t *testing.T) {
	b := &Bridge{topicRoot: "coordinators", logger: zap.NewNop()}

	if _, _, err := b.splitTopic("coordinators/" + uuid.NewString()); err == nil {
		t.Fatal("Expected error for topic without a device segment")
	}
}
