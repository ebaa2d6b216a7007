package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/trananhvu/classpulse/internal/app"
	"github.com/trananhvu/classpulse/internal/realtime"
	"github.com/trananhvu/classpulse/internal/room"
	"github.com/trananhvu/classpulse/internal/session"
)

func newTestDeps(t *testing.T) (*app.Config, *session.Registry, *realtime.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &app.Config{
		Server: app.ServerConfig{Port: 8000, LogLevel: "error"},
		Monitoring: app.MonitoringConfig{
			PrometheusEnabled:  true,
			PrometheusEndpoint: "/metrics",
			HealthEnabled:      true,
		},
	}

	registry := session.NewRegistry(session.Config{
		CodeLength:        6,
		MaxParticipants:   10,
		MaxRooms:          4,
		HostGracePeriod:   time.Minute,
		MaxAge:            12 * time.Hour,
		InactivityTimeout: 2 * time.Hour,
		RoomLimits:        room.Limits{ContentMaxLen: 500, MaxSubmissions: 100},
	})

	return cfg, registry, realtime.NewHub()
}

func TestRouterRequiresDependencies(t *testing.T) {
	cfg, registry, hub := newTestDeps(t)

	_, err := NewRouter(nil, registry, hub)
	require.Error(t, err)
	_, err = NewRouter(cfg, nil, hub)
	require.Error(t, err)
	_, err = NewRouter(cfg, registry, nil)
	require.Error(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	cfg, registry, hub := newTestDeps(t)
	r, err := NewRouter(cfg, registry, hub)
	require.NoError(t, err)

	for _, path := range []string{"/health", "/health/live", "/health/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, w.Code, path)
		require.Contains(t, w.Body.String(), `"status":"ok"`)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	cfg, registry, hub := newTestDeps(t)
	r, err := NewRouter(cfg, registry, hub)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "classpulse_")
}

func TestSessionSnapshotEndpoint(t *testing.T) {
	cfg, registry, hub := newTestDeps(t)
	r, err := NewRouter(cfg, registry, hub)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/ZZZZZZ", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/bad!", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	s, _, err := registry.Create("")
	require.NoError(t, err)
	s.AttachHost("host-1")

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sessions/"+s.Code(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), s.Code())
	require.Contains(t, w.Body.String(), `"host_connected":true`)
}

func TestUnknownRoute(t *testing.T) {
	cfg, registry, hub := newTestDeps(t)
	r, err := NewRouter(cfg, registry, hub)
	require.NoError(t, err)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "ROUTE_NOT_FOUND")
}
