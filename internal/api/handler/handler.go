package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/feed"
	"anonchat/backend/internal/storage"
)

// StatsStore is the slice of the storage layer the ops API reads from.
type StatsStore interface {
	GetStats(ctx context.Context) (*storage.Stats, error)
}

// Handler serves the moderator-facing HTTP surface: health, login,
// aggregate stats and the live moderation feed.
type Handler struct {
	store StatsStore
	hub   *feed.Hub
	cfg   *config.Config
}

func NewHandler(store StatsStore, hub *feed.Hub, cfg *config.Config) *Handler {
	return &Handler{store: store, hub: hub, cfg: cfg}
}

// Register attaches all routes to the given engine.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/healthz", h.Health)
	r.POST("/api/login", h.Login)
	r.GET("/api/stats", h.RequireModerator(), h.Stats)
	r.GET("/ws/moderation", h.RequireModerator(), h.ServeModerationFeed)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) Stats(c *gin.Context) {
	stats, err := h.store.GetStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to aggregate stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}
