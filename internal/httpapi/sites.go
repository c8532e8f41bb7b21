package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
)

type siteResponse struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Subdomain     string `json:"subdomain"`
	PostalAddress string `json:"postal_address"`
	CreatedAt     string `json:"created_at"`
	ModifiedAt    string `json:"modified_at"`
}

func newSiteResponse(s *db.Site) siteResponse {
	return siteResponse{
		ID:            s.ID.String(),
		Name:          s.Name,
		Subdomain:     s.Subdomain,
		PostalAddress: s.PostalAddress,
		CreatedAt:     s.CreatedAt.UTC().Format(timeFormat),
		ModifiedAt:    s.ModifiedAt.UTC().Format(timeFormat),
	}
}

// listSites handles GET /api/sites, scoped to the owner.
func (s *Server) listSites(c *gin.Context) {
	sites, err := s.repo.SitesByOwner(c.Request.Context(), principal(c).UserID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]siteResponse, 0, len(sites))
	for i := range sites {
		out = append(out, newSiteResponse(&sites[i]))
	}
	c.JSON(http.StatusOK, out)
}

type createSiteRequest struct {
	Name          string `json:"name"`
	PostalAddress string `json:"postal_address"`
}

// createSite handles POST /api/sites.
func (s *Server) createSite(c *gin.Context) {
	var req createSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"name": "must not be empty"})
		return
	}

	site, err := s.repo.CreateSite(c.Request.Context(), principal(c).UserID, req.Name, req.PostalAddress)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSiteResponse(site))
}

// ownedSite loads a site and checks it belongs to the caller. Foreign
// sites are indistinguishable from absent ones.
func (s *Server) ownedSite(c *gin.Context) (*db.Site, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"id": "must be a valid UUID"})
		return nil, false
	}
	site, err := s.repo.GetSite(c.Request.Context(), id)
	if err != nil {
		s.writeError(c, err)
		return nil, false
	}
	if site.OwnerID != principal(c).UserID {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return nil, false
	}
	return site, true
}

// getSite handles GET /api/sites/:id.
func (s *Server) getSite(c *gin.Context) {
	site, ok := s.ownedSite(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newSiteResponse(site))
}

// deleteSite handles DELETE /api/sites/:id. Children cascade or detach per
// the schema's referential actions.
func (s *Server) deleteSite(c *gin.Context) {
	site, ok := s.ownedSite(c)
	if !ok {
		return
	}
	if err := s.repo.DeleteSite(c.Request.Context(), site.ID, principal(c).UserID); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type systemResponse struct {
	ID         string `json:"id"`
	Site       string `json:"site"`
	Name       string `json:"name"`
	SystemType string `json:"system_type"`
	CreatedAt  string `json:"created_at"`
	ModifiedAt string `json:"modified_at"`
}

func newSystemResponse(h *db.HydroponicSystem) systemResponse {
	return systemResponse{
		ID:         h.ID.String(),
		Site:       h.SiteID.String(),
		Name:       h.Name,
		SystemType: h.SystemType,
		CreatedAt:  h.CreatedAt.UTC().Format(timeFormat),
		ModifiedAt: h.ModifiedAt.UTC().Format(timeFormat),
	}
}

// listSystems handles GET /api/sites/:id/systems.
func (s *Server) listSystems(c *gin.Context) {
	site, ok := s.ownedSite(c)
	if !ok {
		return
	}
	systems, err := s.repo.HydroponicSystemsBySite(c.Request.Context(), site.ID)
	if err != nil {
		s.writeError(c, err)
		return
	}
	out := make([]systemResponse, 0, len(systems))
	for i := range systems {
		out = append(out, newSystemResponse(&systems[i]))
	}
	c.JSON(http.StatusOK, out)
}

type createSystemRequest struct {
	Name       string `json:"name"`
	SystemType string `json:"system_type"`
}

// createSystem handles POST /api/sites/:id/systems.
func (s *Server) createSystem(c *gin.Context) {
	site, ok := s.ownedSite(c)
	if !ok {
		return
	}
	var req createSystemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.SystemType == "" {
		req.SystemType = db.SystemVerticalTower
	}
	switch req.SystemType {
	case db.SystemVerticalTower, db.SystemFloodAndDrain, db.SystemNutrientFilm, db.SystemDeepWater:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"system_type": "unknown system type"})
		return
	}

	system, err := s.repo.CreateHydroponicSystem(c.Request.Context(), site.ID, req.Name, req.SystemType)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newSystemResponse(system))
}
