package handlers

import (
	"context"
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/ontoscore"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	client ontoscore.OntoScore
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(client ontoscore.OntoScore) *HealthHandler {
	return &HealthHandler{client: client}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "ontoscore",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

// ReadinessCheck handles GET /ready - verifies storage connectivity
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := gin.H{}
	allHealthy := true

	start := time.Now()
	// A probe read with a non-existent id: NotFound means the store
	// answered, anything else means it did not.
	_, err := h.client.GetObject(ctx, "health-check-non-existent-id", time.Now())
	duration := time.Since(start)

	switch {
	case err == nil || errors.Is(err, &types.NotFoundError{}):
		checks["database"] = gin.H{"status": "healthy", "duration": duration.String()}
	default:
		checks["database"] = gin.H{
			"status":   "unhealthy",
			"error":    err.Error(),
			"duration": duration.String(),
		}
		allHealthy = false
	}

	status := http.StatusOK
	state := "ready"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		state = "not_ready"
	}
	c.JSON(status, gin.H{
		"status":    state,
		"service":   "ontoscore",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

// DetailedHealthCheck handles GET /health/detailed
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "ontoscore",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"build": gin.H{
			"version":    Version,
			"git_commit": GitCommit,
			"build_time": BuildTime,
			"go_version": GoVersion,
		},
		"runtime": gin.H{
			"goroutines":   runtime.NumGoroutine(),
			"alloc_bytes":  m.Alloc,
			"total_alloc":  m.TotalAlloc,
			"heap_objects": m.HeapObjects,
			"gc_cycles":    m.NumGC,
			"num_cpu":      runtime.NumCPU(),
			"max_procs":    runtime.GOMAXPROCS(0),
		},
	})
}
