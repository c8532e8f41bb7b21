package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

// listCoordinators handles GET /api/coordinators. Only coordinators bound
// to one of the caller's sites are visible here.
func (s *Server) listCoordinators(c *gin.Context) {
	coordinators, err := s.repo.CoordinatorsBySiteOwner(c.Request.Context(), principal(c).UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]coordinatorResponse, 0, len(coordinators))
	for i := range coordinators {
		out = append(out, newCoordinatorResponse(&coordinators[i]))
	}
	c.JSON(http.StatusOK, out)
}

// coordinatorSetupSelect handles GET /api/coordinators/setup. It partitions
// the coordinators sharing the caller's external address so the frontend
// can offer unregistered ones for claiming.
func (s *Server) coordinatorSetupSelect(c *gin.Context) {
	external, err := s.external(c)
	if err != nil {
		s.writeError(c, err)
		return
	}
	selection, err := s.registration.CoordinatorsForSelect(c.Request.Context(), external)
	if err != nil {
		s.writeError(c, err)
		return
	}
	sites, err := s.repo.SitesWithoutCoordinator(c.Request.Context(), principal(c).UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}

	unregistered := make([]coordinatorResponse, 0, len(selection.Unregistered))
	for i := range selection.Unregistered {
		unregistered = append(unregistered, newCoordinatorResponse(&selection.Unregistered[i]))
	}
	registered := make([]coordinatorResponse, 0, len(selection.Registered))
	for i := range selection.Registered {
		registered = append(registered, newCoordinatorResponse(&selection.Registered[i]))
	}
	availableSites := make([]siteResponse, 0, len(sites))
	for i := range sites {
		availableSites = append(availableSites, newSiteResponse(&sites[i]))
	}
	c.JSON(http.StatusOK, gin.H{
		"unregistered_coordinators": unregistered,
		"registered_coordinators":   registered,
		"sites":                     availableSites,
	})
}

func (s *Server) coordinatorID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": "must be a valid UUID"})
		return uuid.Nil, false
	}
	return id, true
}

// getCoordinator handles GET /api/coordinators/:id.
func (s *Server) getCoordinator(c *gin.Context) {
	id, ok := s.coordinatorID(c)
	if !ok {
		return
	}
	coordinator, err := s.repo.GetCoordinator(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCoordinatorResponse(coordinator))
}

type claimCoordinatorRequest struct {
	Site            string `json:"site"`
	SubdomainPrefix string `json:"subdomain_prefix"`
}

// claimCoordinator handles POST /api/coordinators/:id/register. The caller
// must share the coordinator's external address.
func (s *Server) claimCoordinator(c *gin.Context) {
	id, ok := s.coordinatorID(c)
	if !ok {
		return
	}
	var req claimCoordinatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	siteID, err := uuid.Parse(req.Site)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"site": "must be a valid UUID"})
		return
	}
	external, err := s.external(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	taskID, err := s.registration.ClaimCoordinator(
		c.Request.Context(), principal(c), id, siteID, req.SubdomainPrefix, external)
	if err != nil {
		s.writeError(c, err)
		return
	}

	coordinator, err := s.repo.GetCoordinator(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"coordinator": newCoordinatorResponse(coordinator),
		"task_id":     taskID.String(),
	})
}

type claimedControllerResponse struct {
	Controller controllerResponse `json:"controller"`
	Key        string             `json:"key"`
}

// claimLocalControllers handles POST /api/coordinators/:id/controllers/claim.
// Tokens are returned exactly once; they are not retrievable afterwards.
func (s *Server) claimLocalControllers(c *gin.Context) {
	id, ok := s.coordinatorID(c)
	if !ok {
		return
	}
	claimed, err := s.registration.ClaimLocalControllers(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]claimedControllerResponse, 0, len(claimed))
	for i := range claimed {
		out = append(out, claimedControllerResponse{
			Controller: newControllerResponse(&claimed[i].Controller),
			Key:        claimed[i].Token,
		})
	}
	c.JSON(http.StatusOK, out)
}

type mqttMessageResponse struct {
	CreatedAt   string          `json:"created_at"`
	Coordinator string          `json:"coordinator"`
	Controller  *string         `json:"controller"`
	TopicPrefix string          `json:"topic_prefix"`
	TopicSuffix string          `json:"topic_suffix"`
	Message     json.RawMessage `json:"message"`
}

func newMqttMessageResponse(m *db.MqttMessage) mqttMessageResponse {
	resp := mqttMessageResponse{
		CreatedAt:   m.CreatedAt.UTC().Format(timeFormat),
		Coordinator: m.CoordinatorID.String(),
		TopicPrefix: m.TopicPrefix,
		TopicSuffix: m.TopicSuffix,
		Message:     m.Message,
	}
	if m.ControllerID != nil {
		id := m.ControllerID.String()
		resp.Controller = &id
	}
	return resp
}

// listMqttMessages handles GET /api/coordinators/:id/messages.
func (s *Server) listMqttMessages(c *gin.Context) {
	id, ok := s.coordinatorID(c)
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
	messages, err := s.repo.MqttMessagesByCoordinator(c.Request.Context(), id, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]mqttMessageResponse, 0, len(messages))
	for i := range messages {
		out = append(out, newMqttMessageResponse(&messages[i]))
	}
	c.JSON(http.StatusOK, out)
}
