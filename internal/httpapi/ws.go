package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/verdantio/hydrofarm-backend/internal/logging"
	"github.com/verdantio/hydrofarm-backend/internal/relay"
)

// Device clients are not browsers, so origin checks do not apply.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

const ingestTimeout = 10 * time.Second

// wsEnvelope is one inbound frame on a device socket. Controllers set
// Kind; coordinators set Topic.
type wsEnvelope struct {
	Kind    string          `json:"kind,omitempty"`
	Topic   string          `json:"topic,omitempty"`
	Message json.RawMessage `json:"message"`
	Time    time.Time       `json:"time,omitempty"`
}

type wsAck struct {
	Status string `json:"status"`
	Time   string `json:"time,omitempty"`
	Error  string `json:"error,omitempty"`
}

// controllerSocket handles GET /ws/controllers. Authentication is the
// controller's bearer token; the connection becomes the controller's
// command channel for its lifetime.
func (s *Server) controllerSocket(c *gin.Context) {
	controller, ok := s.bearerController(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "valid controller token required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := relay.NewConn(ws)

	logger := logging.WithDevice(s.logger, controller.ID.String())

	channel := relay.NewChannelName("controller")
	if err := s.repo.SetControllerChannel(c.Request.Context(), controller.ID, channel); err != nil {
		logger.Error("failed to assign controller channel", zap.Error(err))
		conn.Close()
		return
	}
	s.hub.Register(channel, conn)
	logger.Info("controller channel opened", zap.String("channel", channel))

	defer func() {
		s.hub.Unregister(channel)
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := s.repo.SetControllerChannel(ctx, controller.ID, ""); err != nil {
			logger.Warn("failed to clear controller channel", zap.Error(err))
		}
		logger.Info("controller channel closed")
	}()

	for {
		var envelope wsEnvelope
		if err := ws.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("controller socket read failed", zap.Error(err))
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		at, err := s.relay.IngestControllerMessage(ctx, controller.ID, envelope.Kind, envelope.Message, envelope.Time)
		cancel()
		if err != nil {
			conn.WriteJSON(wsAck{Status: "rejected", Error: err.Error()})
			continue
		}
		conn.WriteJSON(wsAck{Status: "ok", Time: at.Format(timeFormat)})
	}
}

// coordinatorSocket handles GET /ws/coordinators/:id. Coordinators relay
// broker traffic for their local controllers over this socket when no MQTT
// bridge sits between them and the backend. Authentication is the
// credential linked to the coordinator when its site was provisioned.
func (s *Server) coordinatorSocket(c *gin.Context) {
	id, ok := s.coordinatorID(c)
	if !ok {
		return
	}
	coordinator, err := s.repo.GetCoordinator(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !coordinator.Registered() {
		c.JSON(http.StatusForbidden, gin.H{"error": "coordinator is not registered"})
		return
	}
	if !bearerCoordinatorCredential(c, coordinator) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "valid coordinator credential required"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	conn := relay.NewConn(ws)

	logger := logging.WithDevice(s.logger, coordinator.ID.String())

	channel := relay.NewChannelName("coordinator")
	if err := s.repo.SetCoordinatorChannel(c.Request.Context(), coordinator.ID, channel); err != nil {
		logger.Error("failed to assign coordinator channel", zap.Error(err))
		conn.Close()
		return
	}
	s.hub.Register(channel, conn)
	logger.Info("coordinator channel opened", zap.String("channel", channel))

	defer func() {
		s.hub.Unregister(channel)
		conn.Close()
		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		defer cancel()
		if err := s.repo.SetCoordinatorChannel(ctx, coordinator.ID, ""); err != nil {
			logger.Warn("failed to clear coordinator channel", zap.Error(err))
		}
		logger.Info("coordinator channel closed")
	}()

	for {
		var envelope wsEnvelope
		if err := ws.ReadJSON(&envelope); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("coordinator socket read failed", zap.Error(err))
			}
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), ingestTimeout)
		at, err := s.relay.IngestMqttMessage(ctx, coordinator.ID, envelope.Topic, envelope.Message, envelope.Time)
		cancel()
		if err != nil {
			conn.WriteJSON(wsAck{Status: "rejected", Error: err.Error()})
			continue
		}
		conn.WriteJSON(wsAck{Status: "ok", Time: at.Format(timeFormat)})
	}
}
