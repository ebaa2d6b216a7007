package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trananhvu/classpulse/internal/app"
	"github.com/trananhvu/classpulse/internal/middleware"
	"github.com/trananhvu/classpulse/internal/ratelimit"
	"github.com/trananhvu/classpulse/internal/realtime"
	"github.com/trananhvu/classpulse/internal/session"
	apperrors "github.com/trananhvu/classpulse/pkg/errors"
	"github.com/trananhvu/classpulse/pkg/response"
)

// NewRouter builds the Gin engine, wires middleware and registers the HTTP
// surface: health, metrics, the websocket entry point and a read-only session
// snapshot endpoint for operators.
func NewRouter(cfg *app.Config, registry *session.Registry, hub *realtime.Hub) (*gin.Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}
	if registry == nil {
		return nil, fmt.Errorf("session registry must be provided")
	}
	if hub == nil {
		return nil, fmt.Errorf("realtime hub must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	// Basic rate limiting: 100 requests/minute per IP+path
	r.Use(middleware.RateLimit(ratelimit.New(100, time.Minute)))

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Monitoring.HealthEnabled {
		registerHealthRoutes(r, registry)
	}

	if cfg.Monitoring.PrometheusEnabled {
		endpoint := cfg.Monitoring.PrometheusEndpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	// Realtime clients enter here; everything after the upgrade goes through
	// the event gateway.
	r.GET("/ws", func(c *gin.Context) {
		hub.Serve(c.Writer, c.Request)
	})

	registerSessionRoutes(r, registry)

	return r, nil
}

func registerSessionRoutes(r *gin.Engine, registry *session.Registry) {
	api := r.Group("/api")

	api.GET("/sessions/:code", func(c *gin.Context) {
		code := c.Param("code")
		if !session.ValidCode(code) {
			response.Error(c, apperrors.ErrInvalidSession)
			return
		}

		s, ok := registry.Get(code)
		if !ok {
			response.Error(c, apperrors.ErrInvalidSession)
			return
		}
		response.Success(c, http.StatusOK, s.Snapshot())
	})
}
