package httpapi

import (
	"net/http"

	"callplane/internal/routing"
	"callplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

// RouteInfo answers GET /route_info?did=. Proceed is 200, a reject is 404
// (400 for unusable input) and the body always carries the decision.
func (h Handlers) RouteInfo(c *gin.Context) {
	if h.Resolver == nil {
		errorJSON(c, http.StatusInternalServerError, "routing not configured")
		return
	}
	did := c.Query("did")

	res, err := h.Resolver.Resolve(c.Request.Context(), did)
	if err != nil {
		logger.FromGin(c).Error("route_info failed", "did", did, "err", err)
		errorJSON(c, http.StatusInternalServerError, "routing could not be evaluated")
		return
	}

	switch {
	case res.Status == routing.StatusProceed:
		c.JSON(http.StatusOK, res)
	case res.Reason == routing.ReasonInvalidDIDInput:
		c.JSON(http.StatusBadRequest, res)
	default:
		c.JSON(http.StatusNotFound, res)
	}
}
