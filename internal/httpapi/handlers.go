package httpapi

import (
	"context"
	"net/http"
	"strconv"

	"callplane/internal/calls"
	"callplane/internal/concurrency"
	"callplane/internal/reporting"
	"callplane/internal/routing"
	"callplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Resolver *routing.Resolver
	Recorder *calls.Recorder
	Reports  *reporting.Service

	// Slots is nil when Redis is not configured.
	Slots *concurrency.Service

	// Ready checks downstream dependencies for /readyz.
	Ready func(ctx context.Context) error
}

func errorJSON(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, gin.H{"status": "error", "message": msg})
}

func linkIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("link_id"), 10, 64)
	if err != nil || id <= 0 {
		errorJSON(c, http.StatusBadRequest, "link_id must be a positive integer")
		return 0, false
	}
	return id, true
}

// --- Health ---

func (h Handlers) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h Handlers) Readyz(c *gin.Context) {
	if h.Ready != nil {
		if err := h.Ready(c.Request.Context()); err != nil {
			logger.FromGin(c).Warn("readiness check failed", "err", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
