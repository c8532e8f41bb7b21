package relay_test

import (
	"errors"
	"testing"

	"github.com/verdantio/hydrofarm-backend/internal/relay"
)

func TestParseTopic_TelemetryWithSuffix(t *testing.T) {
	prefix, suffix, err := relay.ParseTopic("tel/zone-1/bme280")

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if prefix != relay.PrefixTelemetry {
		t.Errorf("Expected prefix tel, got %s", prefix)
	}
	if suffix != "zone-1/bme280" {
		t.Errorf("Expected suffix zone-1/bme280, got %s", suffix)
	}
}

func TestParseTopic_PrefixOnly(t *testing.T) {
	prefix, suffix, err := relay.ParseTopic("reg")

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if prefix != relay.PrefixRegister {
		t.Errorf("Expected prefix reg, got %s", prefix)
	}
	if suffix != "" {
		t.Errorf("Expected empty suffix, got %s", suffix)
	}
}

func TestParseTopic_UnknownPrefix(t *testing.T) {
	_, _, err := relay.ParseTopic("status/zone-1")

	var topicErr *relay.InvalidTopicError
	if !errors.As(err, &topicErr) {
		t.Fatalf("Expected InvalidTopicError, got %v", err)
	}
	if topicErr.Topic != "status/zone-1" {
		t.Errorf("Expected offending topic in error, got %s", topicErr.Topic)
	}
}

func TestParseTopic_Empty(t *testing.T) {
	_, _, err := relay.ParseTopic("")

	if err == nil {
		t.Fatal("Expected error for empty topic")
	}
}

func TestValidKind(t *testing.T) {
	for _, kind := range []string{relay.KindCommand, relay.KindTelemetry, relay.KindRegister, relay.KindError} {
		if !relay.ValidKind(kind) {
			t.Errorf("Expected %s to be a valid kind", kind)
		}
	}
	for _, kind := range []string{"", "telemetry", "CMD"} {
		if relay.ValidKind(kind) {
			t.Errorf("Expected %s to be rejected", kind)
		}
	}
}

func TestNewChannelName(t *testing.T) {
	name := relay.NewChannelName("controller")

	if len(name) != len("controller.")+36 {
		t.Errorf("Expected kind-prefixed UUID channel name, got %s", name)
	}
	if name[:11] != "controller." {
		t.Errorf("Expected controller. prefix, got %s", name)
	}
	if relay.NewChannelName("controller") == name {
		t.Error("Expected channel names to be unique")
	}
}
