package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/trananhvu/classpulse/internal/session"
)

func registerHealthRoutes(r *gin.Engine, registry *session.Registry) {
	handler := func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"success":         true,
			"status":          "ok",
			"active_sessions": registry.Len(),
			"checked_at":      time.Now().UTC(),
		})
	}

	r.GET("/health", handler)
	r.GET("/health/live", handler)
	r.GET("/health/ready", handler)
}
