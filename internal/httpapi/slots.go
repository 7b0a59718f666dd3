package httpapi

import (
	"errors"
	"net/http"

	"callplane/internal/concurrency"
	"callplane/pkg/logger"

	"github.com/gin-gonic/gin"
)

type slotRequest struct {
	CallID string `json:"callId"`
}

func (h Handlers) slotInput(c *gin.Context) (int64, string, bool) {
	if h.Slots == nil {
		errorJSON(c, http.StatusNotImplemented, "concurrency slots not configured")
		return 0, "", false
	}
	id, ok := linkIDParam(c)
	if !ok {
		return 0, "", false
	}
	var req slotRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.CallID == "" {
		errorJSON(c, http.StatusBadRequest, "callId required")
		return 0, "", false
	}
	return id, req.CallID, true
}

// AcquireSlot answers POST /links/:link_id/slots.
func (h Handlers) AcquireSlot(c *gin.Context) {
	id, callID, ok := h.slotInput(c)
	if !ok {
		return
	}
	lease, err := h.Slots.Acquire(c.Request.Context(), id, callID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "acquired", "lease": lease})
	case errors.Is(err, concurrency.ErrNoSlot):
		c.JSON(http.StatusConflict, gin.H{"status": "busy", "lease": lease})
	case errors.Is(err, concurrency.ErrLinkNotFound), errors.Is(err, concurrency.ErrLinkInactive):
		errorJSON(c, http.StatusNotFound, err.Error())
	default:
		logger.FromGin(c).Error("acquire slot failed", "link_id", id, "call_id", callID, "err", err)
		errorJSON(c, http.StatusInternalServerError, "internal error")
	}
}

// ReleaseSlot answers DELETE /links/:link_id/slots.
func (h Handlers) ReleaseSlot(c *gin.Context) {
	id, callID, ok := h.slotInput(c)
	if !ok {
		return
	}
	released, err := h.Slots.Release(c.Request.Context(), id, callID)
	if err != nil {
		logger.FromGin(c).Error("release slot failed", "link_id", id, "call_id", callID, "err", err)
		errorJSON(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "released", "released": released})
}
