package relay_test

import (
	"errors"
	"testing"

	"github.com/verdantio/hydrofarm-backend/internal/relay"
)

func TestHub_SendWithoutConnection(t *testing.T) {
	hub := relay.NewHub()

	err := hub.Send("controller.missing", []byte(`{}`))

	if !errors.Is(err, relay.ErrChannelClosed) {
		t.Fatalf("Expected ErrChannelClosed, got %v", err)
	}
}

func TestHub_RegisterUnregister(t *testing.T) {
	hub := relay.NewHub()
	channel := relay.NewChannelName("controller")

	if hub.Connected(channel) {
		t.Error("Expected fresh channel to be disconnected")
	}

	hub.Register(channel, nil)
	if !hub.Connected(channel) {
		t.Error("Expected channel to be connected after register")
	}

	hub.Unregister(channel)
	if hub.Connected(channel) {
		t.Error("Expected channel to be disconnected after unregister")
	}

	// Unregistering an unknown channel is a no-op.
	hub.Unregister("controller.unknown")
}
