// Package httpapi is the request/response transport: device ping
// endpoints, the authenticated management API and the WebSocket relay
// endpoints.
package httpapi

import (
	"net/netip"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/verdantio/hydrofarm-backend/internal/config"
	"github.com/verdantio/hydrofarm-backend/internal/netaddr"
	"github.com/verdantio/hydrofarm-backend/internal/registration"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"github.com/verdantio/hydrofarm-backend/internal/relay"
	"github.com/verdantio/hydrofarm-backend/internal/tasks"
	"github.com/verdantio/hydrofarm-backend/internal/telemetry"
	"go.uber.org/zap"
)

const timeFormat = time.RFC3339Nano

// Server bundles the services behind the HTTP surface.
type Server struct {
	cfg          *config.Config
	repo         *registry.Repository
	registration *registration.Service
	relay        *relay.Service
	telemetry    *telemetry.Store
	taskStore    *tasks.Store
	hub          *relay.Hub
	logger       *zap.Logger
}

// NewServer creates a new HTTP server
func NewServer(
	cfg *config.Config,
	repo *registry.Repository,
	registrationService *registration.Service,
	relayService *relay.Service,
	telemetryStore *telemetry.Store,
	taskStore *tasks.Store,
	hub *relay.Hub,
	logger *zap.Logger,
) *Server {
	return &Server{
		cfg:          cfg,
		repo:         repo,
		registration: registrationService,
		relay:        relayService,
		telemetry:    telemetryStore,
		taskStore:    taskStore,
		hub:          hub,
		logger:       logger,
	}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(s.requestLogger(), gin.Recovery())

	api := r.Group("/api")
	{
		// Device-facing, unauthenticated
		api.POST("/coordinators/ping", s.pingCoordinator)
		api.GET("/controllers/ping", s.lookupCoordinator)
		api.POST("/controllers/ping", s.pingController)

		authed := api.Group("", s.requireUser)
		{
			authed.GET("/sites", s.listSites)
			authed.POST("/sites", s.createSite)
			authed.GET("/sites/:id", s.getSite)
			authed.DELETE("/sites/:id", s.deleteSite)
			authed.GET("/sites/:id/systems", s.listSystems)
			authed.POST("/sites/:id/systems", s.createSystem)

			authed.GET("/coordinators", s.listCoordinators)
			authed.GET("/coordinators/setup", s.coordinatorSetupSelect)
			authed.GET("/coordinators/:id", s.getCoordinator)
			authed.POST("/coordinators/:id/register", s.claimCoordinator)
			authed.POST("/coordinators/:id/controllers/claim", s.claimLocalControllers)
			authed.GET("/coordinators/:id/messages", s.listMqttMessages)

			authed.GET("/controllers/:id", s.getController)
			authed.POST("/controllers/:id/command", s.pushCommand)
			authed.GET("/controllers/:id/messages", s.listControllerMessages)
			authed.GET("/controllers/:id/telemetry/latest", s.latestTelemetry)

			authed.GET("/data-point-types", s.listDataPointTypes)
			authed.POST("/data-point-types", s.createDataPointType)
			authed.GET("/data-point-types/:id", s.getDataPointType)

			authed.GET("/tasks/:id", s.taskStatus)
		}
	}

	r.GET("/ws/controllers", s.controllerSocket)
	r.GET("/ws/coordinators/:id", s.coordinatorSocket)

	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

// external resolves the caller's external address, strict outside debug
// deployments.
func (s *Server) external(c *gin.Context) (netip.Addr, error) {
	return netaddr.ResolveExternal(c.Request.RemoteAddr, c.Request.Header, !s.cfg.Debug)
}
