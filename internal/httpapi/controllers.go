package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

func (s *Server) controllerID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// getController handles GET /api/controllers/:id.
func (s *Server) getController(c *gin.Context) {
	id, ok := s.controllerID(c)
	if !ok {
		return
	}
	controller, err := s.repo.GetController(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newControllerResponse(controller))
}

// pushCommand handles POST /api/controllers/:id/command. The raw body is
// forwarded verbatim over the controller's websocket channel.
func (s *Server) pushCommand(c *gin.Context) {
	id, ok := s.controllerID(c)
	if !ok {
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
		return
	}
	if !json.Valid(body) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "command payload must be valid JSON"})
		return
	}
	if err := s.relay.PushCommand(c.Request.Context(), id, body); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

// latestTelemetry handles GET /api/controllers/:id/telemetry/latest.
func (s *Server) latestTelemetry(c *gin.Context) {
	id, ok := s.controllerID(c)
	if !ok {
		return
	}
	value, at, err := s.telemetry.Latest(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"controller": id.String(),
		"value":      value,
		"time":       at.UTC().Format(timeFormat),
	})
}

type controllerMessageResponse struct {
	CreatedAt  string          `json:"created_at"`
	Controller string          `json:"controller"`
	Kind       string          `json:"kind"`
	Message    json.RawMessage `json:"message"`
}

// listControllerMessages handles GET /api/controllers/:id/messages.
func (s *Server) listControllerMessages(c *gin.Context) {
	id, ok := s.controllerID(c)
	if !ok {
		return
	}
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"limit": "must be a positive integer"})
			return
		}
		limit = parsed
	}
	messages, err := s.repo.ControllerMessagesByController(c.Request.Context(), id, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]controllerMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, controllerMessageResponse{
			CreatedAt:  messages[i].CreatedAt.UTC().Format(timeFormat),
			Controller: messages[i].ControllerID.String(),
			Kind:       messages[i].Kind,
			Message:    messages[i].Message,
		})
	}
	c.JSON(http.StatusOK, out)
}

type dataPointTypeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Unit string `json:"unit"`
}

func newDataPointTypeResponse(t *db.DataPointType) dataPointTypeResponse {
	return dataPointTypeResponse{ID: t.ID.String(), Name: t.Name, Unit: t.Unit}
}

// listDataPointTypes handles GET /api/data-point-types.
func (s *Server) listDataPointTypes(c *gin.Context) {
	types, err := s.repo.ListDataPointTypes(c.Request.Context())
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]dataPointTypeResponse, 0, len(types))
	for i := range types {
		out = append(out, newDataPointTypeResponse(&types[i]))
	}
	c.JSON(http.StatusOK, out)
}

type createDataPointTypeRequest struct {
	Name string `json:"name"`
	Unit string `json:"unit"`
}

// createDataPointType handles POST /api/data-point-types.
func (s *Server) createDataPointType(c *gin.Context) {
	var req createDataPointTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"name": "must not be empty"})
		return
	}
	created, err := s.repo.CreateDataPointType(c.Request.Context(), req.Name, req.Unit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newDataPointTypeResponse(created))
}

// getDataPointType handles GET /api/data-point-types/:id.
func (s *Server) getDataPointType(c *gin.Context) {
	id, ok := s.controllerID(c)
	if !ok {
		return
	}
	dpt, err := s.repo.GetDataPointType(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newDataPointTypeResponse(dpt))
}
