package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gridlog/gridlog/internal/auth"
	"github.com/gridlog/gridlog/internal/cache"
	"github.com/gridlog/gridlog/internal/config"
	"github.com/gridlog/gridlog/internal/handlers"
	"github.com/gridlog/gridlog/internal/spoiler"
	"github.com/gridlog/gridlog/internal/store"
)

// NewRouter wires public endpoints and the viewer-scoped APIs.
// Public: /health, /ready, /metricsz
// Viewer-scoped (optional identity): /sessions...
func NewRouter(cfg config.Config, st *store.PostgresStore, rc *cache.ResponseCache) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: the DB dependency must be reachable. The cache is
	// advisory, so its state is reported but never fails readiness.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := st.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}

		resp := gin.H{"status": "ready"}
		if rc != nil && !rc.Healthy(ctx) {
			resp["cache"] = "degraded"
		}
		c.JSON(http.StatusOK, resp)
	})

	r.GET("/metricsz", gin.WrapH(promhttp.Handler()))

	engine := spoiler.NewEngine(st, rc)
	coordinator := spoiler.NewRevealCoordinator(st, rc, engine)

	// Viewer group resolves the optional identity; anonymous passes through.
	viewerGroup := r.Group("/")
	viewerGroup.Use(auth.ViewerMiddleware(cfg.ViewerTokens))

	handlers.RegisterSessionRoutes(viewerGroup, engine)
	handlers.RegisterRevealRoutes(viewerGroup, coordinator)
	handlers.RegisterEntryRoutes(viewerGroup, st, coordinator)

	return r
}
