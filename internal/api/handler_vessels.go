package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"emotional-cup-backend/internal/remotesync"
	"emotional-cup-backend/internal/room"
	"emotional-cup-backend/internal/vessel"
)

// VesselResponse is a vessel plus the values the UI derives from it.
type VesselResponse struct {
	vessel.Vessel
	Percent   float64 `json:"percent"`
	InRedZone bool    `json:"inRedZone"`
}

func newVesselResponse(v vessel.Vessel) VesselResponse {
	return VesselResponse{Vessel: v, Percent: vessel.Percent(v), InRedZone: vessel.InRedZone(v)}
}

// RoomResponse is the full session view.
type RoomResponse struct {
	RoomID   string                  `json:"roomId"`
	ShareURL string                  `json:"shareUrl"`
	Today    string                  `json:"today"`
	Sync     remotesync.StatusReport `json:"sync"`
	Vessels  []VesselResponse        `json:"vessels"`
	State    room.State              `json:"state"`
}

// GetRoom handles GET /api/room.
func (h *Handler) GetRoom(c *gin.Context) {
	snap := h.rooms.Snapshot()
	ordered := snap.Ordered()
	views := make([]VesselResponse, 0, len(ordered))
	for _, v := range ordered {
		views = append(views, newVesselResponse(v))
	}
	c.JSON(http.StatusOK, RoomResponse{
		RoomID:   h.sync.RoomID(),
		ShareURL: h.shareURL,
		Today:    h.rooms.Today(),
		Sync:     h.sync.Status(),
		Vessels:  views,
		State:    snap,
	})
}

// GetVessel handles GET /api/vessels/:id.
func (h *Handler) GetVessel(c *gin.Context) {
	v, err := h.rooms.Vessel(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVesselResponse(v))
}

// GetChart handles GET /api/vessels/:id/chart.
func (h *Handler) GetChart(c *gin.Context) {
	v, err := h.rooms.Vessel(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"vesselId":  v.ID,
		"threshold": v.Threshold,
		"capacity":  v.Capacity,
		"points":    vessel.Chart(v, h.rooms.Today()),
	})
}

type nameRequest struct {
	Name string `json:"name"`
}

// CreateVessel handles POST /api/vessels.
func (h *Handler) CreateVessel(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	v, err := h.rooms.CreateVessel(c.Request.Context(), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newVesselResponse(v))
}

// RenameVessel handles PATCH /api/vessels/:id/name.
func (h *Handler) RenameVessel(c *gin.Context) {
	var req nameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	v, err := h.rooms.RenameVessel(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVesselResponse(v))
}

// DeleteVessel handles DELETE /api/vessels/:id.
func (h *Handler) DeleteVessel(c *gin.Context) {
	if err := h.rooms.DeleteVessel(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type eventRequest struct {
	Label string `json:"label"`
	Drops *int   `json:"drops" binding:"required"`
}

// AddEvent handles POST /api/vessels/:id/events.
func (h *Handler) AddEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	v, err := h.rooms.AddEvent(c.Request.Context(), c.Param("id"), req.Label, *req.Drops)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVesselResponse(v))
}

type quickEventRequest struct {
	Size vessel.QuickSize `json:"size" binding:"required"`
}

// AddQuickEvent handles POST /api/vessels/:id/events/quick.
func (h *Handler) AddQuickEvent(c *gin.Context) {
	var req quickEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	label, drops, ok := vessel.QuickPreset(req.Size)
	if !ok {
		respondError(c, fmt.Errorf("%w: unknown size %q", errBadRequest, req.Size))
		return
	}
	v, err := h.rooms.AddEvent(c.Request.Context(), c.Param("id"), label, drops)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVesselResponse(v))
}

// UndoLast handles POST /api/vessels/:id/undo.
func (h *Handler) UndoLast(c *gin.Context) {
	v, err := h.rooms.UndoLast(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVesselResponse(v))
}

// UpdateSettings handles PATCH /api/vessels/:id/settings.
func (h *Handler) UpdateSettings(c *gin.Context) {
	var patch vessel.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondError(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}
	v, err := h.rooms.UpdateSettings(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVesselResponse(v))
}

// ResetVessel handles POST /api/vessels/:id/reset.
func (h *Handler) ResetVessel(c *gin.Context) {
	v, err := h.rooms.ResetVessel(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newVesselResponse(v))
}
