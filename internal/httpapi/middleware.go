package httpapi

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/auth"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

const principalKey = "principal"

// requireUser extracts the authenticated principal attached by the auth
// gateway. Account management is an external collaborator; this backend
// trusts the identity header it is handed.
func (s *Server) requireUser(c *gin.Context) {
	userID, err := uuid.Parse(c.GetHeader("X-User-ID"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return
	}
	c.Set(principalKey, auth.Principal{UserID: userID})
	c.Next()
}

func principal(c *gin.Context) auth.Principal {
	return c.MustGet(principalKey).(auth.Principal)
}

// bearerController resolves the Authorization bearer token to the
// controller it was issued to.
func (s *Server) bearerController(c *gin.Context) (*db.Controller, bool) {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, false
	}
	controller, err := s.repo.ControllerByToken(c.Request.Context(), token)
	if err != nil {
		return nil, false
	}
	return controller, true
}

// bearerCoordinatorCredential checks the Authorization bearer value against
// the credential the provisioner linked to the coordinator. Coordinators
// whose site setup has not completed yet carry no credential and are
// rejected.
func bearerCoordinatorCredential(c *gin.Context, coordinator *db.Coordinator) bool {
	header := c.GetHeader("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || coordinator.UserID == nil {
		return false
	}
	credential, err := uuid.Parse(token)
	if err != nil {
		return false
	}
	return credential == *coordinator.UserID
}
