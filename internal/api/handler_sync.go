package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SaveNow handles POST /api/sync/save. It waits for the remote write.
func (h *Handler) SaveNow(c *gin.Context) {
	if err := h.sync.SaveNow(c.Request.Context(), h.rooms.Snapshot()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "kind": "remote_error", "sync": h.sync.Status()})
		return
	}
	c.JSON(http.StatusOK, h.sync.Status())
}

// Flush handles POST /api/sync/flush, sent when the page is hidden or
// closed. It does not wait for the write.
func (h *Handler) Flush(c *gin.Context) {
	h.sync.FlushAsync(h.rooms.Snapshot())
	c.Status(http.StatusAccepted)
}

// SyncStatus handles GET /api/sync/status.
func (h *Handler) SyncStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.sync.Status())
}
