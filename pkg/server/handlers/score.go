package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/server/dto"
)

// ScoreHandler handles risk scoring requests
type ScoreHandler struct {
	client ontoscore.OntoScore
}

// NewScoreHandler creates a new score handler
func NewScoreHandler(client ontoscore.OntoScore) *ScoreHandler {
	return &ScoreHandler{client: client}
}

// GetScore handles GET /api/v1/companies/:id/score
func (h *ScoreHandler) GetScore(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}

	opts := []scoring.ScoreOption{scoring.AsOf(asOf)}
	if c.Query("persist") == "true" {
		opts = append(opts, scoring.Persist())
	}

	result, err := h.client.CalculateRiskScore(c.Request.Context(), c.Param("id"), opts...)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetPatterns handles GET /api/v1/companies/:id/patterns
func (h *ScoreHandler) GetPatterns(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	result, err := h.client.DetectPatterns(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// BatchScore handles POST /api/v1/scores/batch
func (h *ScoreHandler) BatchScore(c *gin.Context) {
	var req dto.BatchScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	var opts []scoring.ScoreOption
	if req.Persist {
		opts = append(opts, scoring.Persist())
	}

	if req.All {
		results, err := h.client.ScoreAllCompanies(c.Request.Context(), time.Now(), req.Concurrency, opts...)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, results)
		return
	}

	results := h.client.CalculateBatch(c.Request.Context(), req.CompanyIDs, req.Concurrency, opts...)
	c.JSON(http.StatusOK, results)
}
