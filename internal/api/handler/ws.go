package handler

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"anonchat/backend/internal/feed"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allows connections from any origin. Tighten for production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeModerationFeed upgrades the connection and attaches it to the
// moderation feed hub. Authentication already happened in middleware.
func (h *Handler) ServeModerationFeed(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote an error response to the client.
		log.Printf("WARN: moderation feed upgrade failed: %v", err)
		return
	}

	client := feed.NewWSClient(h.hub, conn, c.ClientIP())
	h.hub.RegisterCh <- client
	client.Run()
}
