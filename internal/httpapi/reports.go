package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"callplane/internal/reporting"
	"callplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

// LinkUsage answers GET /links/:link_id/usage.
func (h Handlers) LinkUsage(c *gin.Context) {
	if h.Reports == nil {
		errorJSON(c, http.StatusInternalServerError, "reporting not configured")
		return
	}
	id, ok := linkIDParam(c)
	if !ok {
		return
	}
	out, err := h.Reports.LinkUsage(c.Request.Context(), id)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.Is(err, reporting.ErrNotFound):
		errorJSON(c, http.StatusNotFound, "link not found")
	default:
		logger.FromGin(c).Error("link usage failed", "link_id", id, "err", err)
		errorJSON(c, http.StatusInternalServerError, "internal error")
	}
}

// CallsSummary answers GET /reports/calls?campaign_id=&from=&to= with RFC 3339 bounds.
func (h Handlers) CallsSummary(c *gin.Context) {
	if h.Reports == nil {
		errorJSON(c, http.StatusInternalServerError, "reporting not configured")
		return
	}
	var req reporting.CallsSummaryRequest
	if v := c.Query("campaign_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, "campaign_id must be an integer")
			return
		}
		req.CampaignID = &id
	}
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &req.Range.From}, {"to", &req.Range.To}} {
		v := c.Query(p.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			errorJSON(c, http.StatusBadRequest, p.key+" must be RFC 3339")
			return
		}
		*p.dst = t.UTC()
	}

	out, err := h.Reports.CallsSummary(c.Request.Context(), req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, out)
	case errors.Is(err, reporting.ErrInvalidRequest):
		errorJSON(c, http.StatusBadRequest, err.Error())
	default:
		logger.FromGin(c).Error("calls summary failed", "err", err)
		errorJSON(c, http.StatusInternalServerError, "internal error")
	}
}
