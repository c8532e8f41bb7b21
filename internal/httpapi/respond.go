package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/verdantio/hydrofarm-backend/internal/netaddr"
	"github.com/verdantio/hydrofarm-backend/internal/registration"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"github.com/verdantio/hydrofarm-backend/internal/relay"
	"go.uber.org/zap"
)

// writeError maps domain errors onto the response envelope. Validation and
// protocol errors are recovered here as 400/403 with structured detail;
// storage conflicts surface as 409 so the caller can retry against fresh
// state.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		notRoutable  *netaddr.NotRoutableError
		badFamily    *netaddr.UnsupportedFamilyError
		unauthPing   *registration.UnauthenticatedPingError
		validation   *registration.ValidationError
		invalidTopic *relay.InvalidTopicError
	)

	switch {
	case errors.As(err, &notRoutable) || errors.As(err, &badFamily):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &unauthPing):
		c.JSON(http.StatusForbidden, gin.H{
			"detail": fmt.Sprintf("Unauthenticated ping of registered device. Use %s", unauthPing.URL),
		})
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{validation.Field: validation.Detail})
	case errors.As(err, &invalidTopic),
		errors.Is(err, relay.ErrInvalidKind),
		errors.Is(err, relay.ErrUnknownOrigin),
		errors.Is(err, relay.ErrDuplicateMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, registry.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, registry.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "conflict, retry with fresh state"})
	case errors.Is(err, relay.ErrChannelClosed):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "device is not connected"})
	default:
		s.logger.Error("internal error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
