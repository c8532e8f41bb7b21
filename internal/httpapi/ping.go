package httpapi

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registration"
)

type coordinatorPingRequest struct {
	ID             string `json:"id"`
	LocalIPAddress string `json:"local_ip_address"`
}

type coordinatorResponse struct {
	ID                string  `json:"id"`
	Site              *string `json:"site"`
	LocalIPAddress    string  `json:"local_ip_address"`
	ExternalIPAddress string  `json:"external_ip_address"`
	ChannelName       string  `json:"channel_name"`
	CreatedAt         string  `json:"created_at"`
	ModifiedAt        string  `json:"modified_at"`
	URL               string  `json:"url"`
}

func newCoordinatorResponse(c *db.Coordinator) coordinatorResponse {
	resp := coordinatorResponse{
		ID:                c.ID.String(),
		LocalIPAddress:    c.LocalIPAddress,
		ExternalIPAddress: c.ExternalIPAddress,
		ChannelName:       c.ChannelName,
		CreatedAt:         c.CreatedAt.UTC().Format(timeFormat),
		ModifiedAt:        c.ModifiedAt.UTC().Format(timeFormat),
		URL:               registration.CoordinatorURL(c.ID),
	}
	if c.SiteID != nil {
		site := c.SiteID.String()
		resp.Site = &site
	}
	return resp
}

// pingCoordinator handles POST /api/coordinators/ping.
func (s *Server) pingCoordinator(c *gin.Context) {
	external, err := s.external(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req coordinatorPingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": "must be a valid UUID"})
		return
	}
	localIP, err := netip.ParseAddr(req.LocalIPAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"local_ip_address": "must be a valid IP address"})
		return
	}

	coordinator, err := s.registration.PingCoordinator(c.Request.Context(), registration.CoordinatorPing{
		ID:             id,
		LocalIPAddress: localIP,
		External:       external,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCoordinatorResponse(coordinator))
}

// lookupCoordinator handles GET /api/controllers/ping: a controller asking
// whether a coordinator shares its external address.
func (s *Server) lookupCoordinator(c *gin.Context) {
	external, err := s.external(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	localIP, found, err := s.registration.LookupCoordinator(c.Request.Context(), external)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if !found {
		c.JSON(http.StatusOK, gin.H{"coordinator_local_ip_address": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"coordinator_local_ip_address": localIP})
}

type controllerPingRequest struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	WifiMACAddress string `json:"wifi_mac_address"`
	ControllerType string `json:"controller_type"`
}

type controllerResponse struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Coordinator       *string `json:"coordinator"`
	Site              *string `json:"site"`
	WifiMACAddress    string  `json:"wifi_mac_address"`
	ExternalIPAddress string  `json:"external_ip_address"`
	ControllerType    string  `json:"controller_type"`
	ChannelName       string  `json:"channel_name"`
	CreatedAt         string  `json:"created_at"`
	ModifiedAt        string  `json:"modified_at"`
	URL               string  `json:"url"`
}

func newControllerResponse(c *db.Controller) controllerResponse {
	resp := controllerResponse{
		ID:                c.ID.String(),
		Name:              c.Name,
		WifiMACAddress:    c.WifiMACAddress,
		ExternalIPAddress: c.ExternalIPAddress,
		ControllerType:    c.ControllerType,
		ChannelName:       c.ChannelName,
		CreatedAt:         c.CreatedAt.UTC().Format(timeFormat),
		ModifiedAt:        c.ModifiedAt.UTC().Format(timeFormat),
		URL:               registration.ControllerURL(c.ID),
	}
	if c.CoordinatorID != nil {
		coordinator := c.CoordinatorID.String()
		resp.Coordinator = &coordinator
	}
	if c.SiteID != nil {
		site := c.SiteID.String()
		resp.Site = &site
	}
	return resp
}

// pingController handles POST /api/controllers/ping.
func (s *Server) pingController(c *gin.Context) {
	external, err := s.external(c)
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req controllerPingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	id, err := uuid.Parse(req.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": "must be a valid UUID"})
		return
	}
	mac, err := net.ParseMAC(req.WifiMACAddress)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"wifi_mac_address": "must be a valid MAC address"})
		return
	}
	if req.ControllerType == "" {
		req.ControllerType = db.ControllerUnknown
	}

	controller, err := s.registration.PingController(c.Request.Context(), registration.ControllerPing{
		ID:             id,
		Name:           req.Name,
		WifiMACAddress: mac.String(),
		ControllerType: req.ControllerType,
		External:       external,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newControllerResponse(controller))
}
