package devserver

import (
	"log/slog"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	slogGin "github.com/samber/slog-gin"

	"github.com/docboxhq/docbox/internal/version"
)

func SetupRoutes(cfg *Config, hub *Hub, service *SyncService) http.Handler {
	r := gin.New()

	syncH := NewSyncHandler(hub, service, cfg)

	httpLogger := slog.Default().WithGroup("http")
	r.Use(slogGin.NewWithConfig(httpLogger, slogGin.Config{
		DefaultLevel:     slog.LevelInfo,
		ClientErrorLevel: slog.LevelWarn,
		ServerErrorLevel: slog.LevelError,
		WithRequestID:    true,
	}))
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	sources := r.Group("/api/sources")
	{
		// the poll fallback gets compressed and rate limited; the two
		// stream endpoints must stay uncompressed and unbounded
		sources.GET("/:sourceId/sync/status",
			gzip.Gzip(gzip.BestSpeed),
			RateLimiter(cfg.StatusRateLimit),
			TokenAuth(cfg.AuthToken),
			syncH.Status,
		)
		sources.GET("/:sourceId/sync/progress", TokenAuth(cfg.AuthToken), syncH.Events)
		sources.GET("/:sourceId/sync/progress/ws", syncH.Websocket)

		sources.POST("/:sourceId/sync/start", TokenAuth(cfg.AuthToken), syncH.Start)
		sources.POST("/:sourceId/sync/cancel", TokenAuth(cfg.AuthToken), syncH.Cancel)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "not found",
		})
	})

	r.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{
			"error": "method not allowed",
		})
	})

	return r.Handler()
}

func IndexHandler(ctx *gin.Context) {
	ctx.String(http.StatusOK, version.DetailedWithApp())
}

func HealthHandler(ctx *gin.Context) {
	ctx.PureJSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
