package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/chinchliff/oti"
	"github.com/gin-gonic/gin"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "oti"

// breakerReporter is implemented by clients that guard the index with a
// circuit breaker.
type breakerReporter interface {
	BreakerState() string
}

// HealthHandler handles health check requests
type HealthHandler struct {
	checker oti.HealthChecker
	started time.Time
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(checker oti.HealthChecker) *HealthHandler {
	return &HealthHandler{
		checker: checker,
		started: time.Now(),
	}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
			"go_version": GoVersion,
		},
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
	}
	checks := gin.H{}
	response["checks"] = checks

	allHealthy := true
	if h.checker == nil {
		checks["database"] = gin.H{
			"status": "unhealthy",
			"error":  "search client not initialized",
		}
		allHealthy = false
	} else {
		start := time.Now()
		err := h.checker.Ping(ctx)
		duration := time.Since(start)

		if err != nil {
			checks["database"] = gin.H{
				"status":   "unhealthy",
				"error":    err.Error(),
				"duration": duration.String(),
			}
			allHealthy = false
		} else {
			checks["database"] = gin.H{
				"status":   "healthy",
				"duration": duration.String(),
			}
		}

		if reporter, ok := h.checker.(breakerReporter); ok {
			state := reporter.BreakerState()
			checks["index_circuit_breaker"] = gin.H{"state": state}
			if state == "open" {
				allHealthy = false
			}
		}
	}

	if !allHealthy {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
