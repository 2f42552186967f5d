package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"emotional-cup-backend/internal/mw"
	"emotional-cup-backend/internal/room"
)

// RouterConfig tunes the middleware in front of the API.
type RouterConfig struct {
	RateLimit rate.Limit
	Burst     int
	Cache     *mw.ResponseCache
}

// NewRouter creates and configures a new Gin router. Cached responses are
// dropped on every room change.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(cfg.RateLimit, cfg.Burst)
	caching := cfg.Cache.Middleware()
	h.rooms.OnChange(func(room.Change) { cfg.Cache.Flush() })

	r.GET("/health", h.Health)

	// Websocket clients are not rate limited.
	r.GET("/api/ws", h.hub.ServeWS(h.rooms.Snapshot))

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/room", h.GetRoom)

		api.GET("/vessels/:id", caching, h.GetVessel)
		api.GET("/vessels/:id/chart", caching, h.GetChart)
		api.POST("/vessels", h.CreateVessel)
		api.PATCH("/vessels/:id/name", h.RenameVessel)
		api.DELETE("/vessels/:id", h.DeleteVessel)
		api.POST("/vessels/:id/events", h.AddEvent)
		api.POST("/vessels/:id/events/quick", h.AddQuickEvent)
		api.POST("/vessels/:id/undo", h.UndoLast)
		api.PATCH("/vessels/:id/settings", h.UpdateSettings)
		api.POST("/vessels/:id/reset", h.ResetVessel)

		api.POST("/sync/save", h.SaveNow)
		api.POST("/sync/flush", h.Flush)
		api.GET("/sync/status", h.SyncStatus)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
