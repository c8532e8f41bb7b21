// Package mqttbridge subscribes to the coordinators' MQTT topic tree and
// feeds broker-relayed messages into the relay. Rejected messages are
// logged and dropped; the bridge never fails on a bad message.
package mqttbridge

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/config"
	"github.com/verdantio/hydrofarm-backend/internal/relay"
	"go.uber.org/zap"
)

// Bridge relays broker messages into the relay service.
type Bridge struct {
	client    mqtt.Client
	relay     *relay.Service
	topicRoot string
	logger    *zap.Logger
}

// New creates a new bridge. The client connects on Start.
func New(cfg config.MQTTConfig, relayService *relay.Service, logger *zap.Logger) *Bridge {
	b := &Bridge{
		relay:     relayService,
		topicRoot: cfg.TopicRoot,
		logger:    logger,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetDefaultPublishHandler(b.handleMessage)
	b.client = mqtt.NewClient(opts)
	return b
}

// Start connects to the broker and subscribes to the coordinator topic
// tree, e.g. "coordinators/<id>/tel/zone-1".
func (b *Bridge) Start(ctx context.Context) error {
	if token := b.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	filter := b.topicRoot + "/+/#"
	if token := b.client.Subscribe(filter, 0, b.handleMessage); token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", filter, token.Error())
	}

	b.logger.Info("mqtt bridge started", zap.String("filter", filter))
	return nil
}

// Stop disconnects from the broker.
func (b *Bridge) Stop() {
	b.client.Disconnect(250)
	b.logger.Info("mqtt bridge stopped")
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	coordinatorID, deviceTopic, err := b.splitTopic(msg.Topic())
	if err != nil {
		b.logger.Warn("message rejected", zap.String("topic", msg.Topic()), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := b.relay.IngestMqttMessage(ctx, coordinatorID, deviceTopic, msg.Payload(), time.Now()); err != nil {
		b.logger.Warn("message rejected",
			zap.String("topic", msg.Topic()),
			zap.String("coordinator_id", coordinatorID.String()),
			zap.Error(err),
		)
		return
	}
	b.logger.Debug("message relayed", zap.String("topic", msg.Topic()))
}

// splitTopic peels "<root>/<coordinator id>/" off the broker topic, leaving
// the device topic the relay parses.
func (b *Bridge) splitTopic(topic string) (uuid.UUID, string, error) {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) != 3 || parts[0] != b.topicRoot {
		return uuid.Nil, "", fmt.Errorf("topic outside coordinator tree: %s", topic)
	}
	coordinatorID, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("topic has no coordinator id: %s", topic)
	}
	return coordinatorID, parts[2], nil
}
