package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/careview/backend/internal/realtime"
	"github.com/careview/backend/pkg/response"
)

var startedAt = time.Now()

func registerHealthRoutes(r *gin.Engine, hub *realtime.Hub) {
	handler := func(c *gin.Context) {
		response.JSON(c, http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(startedAt).Round(time.Second).String(),
			"websocket": hub.StatsSnapshot(),
		})
	}

	r.GET("/health", handler)
	r.GET("/api/health", handler)
}
