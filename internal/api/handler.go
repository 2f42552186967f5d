package api

import (
	"errors"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"emotional-cup-backend/internal/remotesync"
	"emotional-cup-backend/internal/room"
	"emotional-cup-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	rooms    *room.Store
	sync     *remotesync.Adapter
	store    store.Store
	webpush  *webpush.Options
	hub      *Hub
	shareURL string
}

// NewHandler creates a new API handler. The websocket hub is registered as a
// room change listener.
func NewHandler(rooms *room.Store, sync *remotesync.Adapter, s store.Store, webpushOptions *webpush.Options, shareURL string) *Handler {
	h := &Handler{
		rooms:    rooms,
		sync:     sync,
		store:    s,
		webpush:  webpushOptions,
		hub:      NewHub(),
		shareURL: shareURL,
	}
	if rooms != nil {
		rooms.OnChange(h.hub.OnChange)
	}
	return h
}

// Hub returns the websocket hub.
func (h *Handler) Hub() *Hub {
	return h.hub
}

var errBadRequest = errors.New("invalid request")

// respondError writes {"error", "kind"} with a status derived from the error.
func respondError(c *gin.Context, err error) {
	kind := room.ErrorKind(err)
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		kind = "bad_request"
		status = http.StatusBadRequest
	case kind == "not_found":
		status = http.StatusNotFound
	case kind == "empty_name":
		status = http.StatusBadRequest
	case kind == "last_vessel":
		status = http.StatusConflict
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error(), "kind": kind})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
