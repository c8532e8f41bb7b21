package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// taskStatus handles GET /api/tasks/:id. Unknown ids report as pending,
// matching the semantics of an at-least-once queue where the result row
// may not exist yet.
func (s *Server) taskStatus(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": "must be a valid UUID"})
		return
	}
	result, err := s.taskStore.Status(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":     id.String(),
		"name":   result.Name,
		"status": result.Status,
		"result": result.Result,
	})
}
