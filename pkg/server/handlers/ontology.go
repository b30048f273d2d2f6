package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/ontology"
	"github.com/soundprediction/ontoscore/pkg/server/dto"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// OntologyHandler handles object and link requests
type OntologyHandler struct {
	client ontoscore.OntoScore
}

// NewOntologyHandler creates a new ontology handler
func NewOntologyHandler(client ontoscore.OntoScore) *OntologyHandler {
	return &OntologyHandler{client: client}
}

// parseAsOf reads the optional as_of query parameter (RFC 3339).
func parseAsOf(c *gin.Context) (time.Time, bool) {
	raw := c.Query("as_of")
	if raw == "" {
		return time.Now(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		respondBadRequest(c, "as_of must be RFC 3339")
		return time.Time{}, false
	}
	return t, true
}

// GetObject handles GET /api/v1/objects/:id
func (h *OntologyHandler) GetObject(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	obj, err := h.client.GetObject(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ObjectResponse{Object: obj})
}

// UpsertObject handles POST /api/v1/objects
func (h *OntologyHandler) UpsertObject(c *gin.Context) {
	var req dto.UpsertObjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	id, err := h.client.UpsertObject(c.Request.Context(), ontology.UpsertRequest{
		Type:            types.ObjectType(req.Type),
		IdentityKey:     req.IdentityKey,
		Properties:      req.Properties,
		SourceDocuments: req.SourceDocuments,
		Confidence:      req.Confidence,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"object_id": id})
}

// GetLinks handles GET /api/v1/objects/:id/links
func (h *OntologyHandler) GetLinks(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	q := ontology.LinkQuery{AsOf: asOf}
	if raw := c.Query("type"); raw != "" {
		q.Types = []types.LinkType{types.LinkType(raw)}
	}
	if raw := c.Query("direction"); raw != "" {
		q.Direction = types.Direction(raw)
	}

	links, err := h.client.GetLinks(c.Request.Context(), c.Param("id"), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.LinksResponse{Links: links, Count: len(links)})
}

// CreateLink handles POST /api/v1/links
func (h *OntologyHandler) CreateLink(c *gin.Context) {
	var req dto.CreateLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	createReq := ontology.CreateLinkRequest{
		Type:       types.LinkType(req.Type),
		SourceID:   req.SourceID,
		TargetID:   req.TargetID,
		Strength:   req.Strength,
		Confidence: req.Confidence,
		Properties: req.Properties,
	}
	if req.ValidFrom != nil {
		createReq.ValidFrom = *req.ValidFrom
	}

	link, err := h.client.CreateLink(c.Request.Context(), createReq)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"link": link})
}

// CloseLink handles DELETE /api/v1/links/:id
func (h *OntologyHandler) CloseLink(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	if err := h.client.CloseLink(c.Request.Context(), c.Param("id"), asOf); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true})
}

// Neighborhood handles GET /api/v1/objects/:id/neighborhood
func (h *OntologyHandler) Neighborhood(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	hops := 1
	if raw := c.Query("hops"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondBadRequest(c, "hops must be a positive integer")
			return
		}
		hops = parsed
	}

	view, err := h.client.Neighborhood(c.Request.Context(), c.Param("id"), hops, asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}
