package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/ingest"
)

// IngestHandler handles extraction batch ingestion requests
type IngestHandler struct {
	client ontoscore.OntoScore
}

// NewIngestHandler creates a new ingest handler
func NewIngestHandler(client ontoscore.OntoScore) *IngestHandler {
	return &IngestHandler{client: client}
}

// ApplyBatch handles POST /api/v1/ingest/batch. The batch is applied
// synchronously; the report attributes every failure to its record.
func (h *IngestHandler) ApplyBatch(c *gin.Context) {
	var batch ingest.Batch
	if err := c.ShouldBindJSON(&batch); err != nil {
		respondBadRequest(c, err.Error())
		return
	}
	if len(batch.Objects) == 0 && len(batch.Links) == 0 {
		respondBadRequest(c, "batch must contain objects or links")
		return
	}

	report, err := h.client.ApplyBatch(c.Request.Context(), &batch)
	if err != nil {
		respondError(c, err)
		return
	}

	status := http.StatusOK
	if len(report.Errors) > 0 {
		// Partial application: the caller inspects per-record errors.
		status = http.StatusMultiStatus
	}
	c.JSON(status, report)
}
