package api

import (
	"github.com/gin-gonic/gin"

	"github.com/careview/backend/internal/realtime"
)

// The hub performs its own token authentication during the handshake, so the
// websocket endpoint mounts outside the Auth middleware.
func registerWebsocketRoutes(r *gin.Engine, hub *realtime.Hub) {
	r.GET("/ws", func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request)
	})
}
