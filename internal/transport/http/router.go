package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	sloggin "github.com/samber/slog-gin"

	"github.com/ordinaut/ordinaut/internal/health"
	"github.com/ordinaut/ordinaut/internal/transport/http/handler"
	"github.com/ordinaut/ordinaut/internal/transport/http/middleware"
)

// NewRouter wires the task, run, and event HTTP surfaces behind the bearer
// auth, request-id, per-request structured logging, metrics, and
// security-header middleware, plus unauthenticated liveness/readiness
// probes for orchestrators.
func NewRouter(
	logger *slog.Logger,
	taskHandler *handler.TaskHandler,
	runHandler *handler.RunHandler,
	eventHandler *handler.EventHandler,
	checker *health.Checker,
	jwtKey []byte,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Security())
	r.Use(sloggin.New(logger))
	r.Use(middleware.Metrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, checker.Liveness(c.Request.Context()))
	})
	r.GET("/readyz", func(c *gin.Context) {
		result := checker.Readiness(c.Request.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, result)
	})

	api := r.Group("/v1", middleware.Auth(jwtKey))

	tasks := api.Group("/tasks")
	tasks.POST("", taskHandler.Create)
	tasks.GET("", taskHandler.List)
	tasks.GET("/:id", taskHandler.Get)
	tasks.PATCH("/:id", taskHandler.Update)
	tasks.DELETE("/:id", taskHandler.Delete)
	tasks.POST("/:id/pause", taskHandler.Pause)
	tasks.POST("/:id/resume", taskHandler.Resume)
	tasks.POST("/:id/cancel", taskHandler.Cancel)
	tasks.POST("/:id/run-now", taskHandler.RunNow)
	tasks.POST("/:id/snooze", taskHandler.Snooze)
	tasks.GET("/:id/stats", runHandler.TaskStats)

	runs := api.Group("/runs")
	runs.GET("", runHandler.List)
	runs.GET("/:id", runHandler.Get)

	events := api.Group("/events")
	events.POST("", eventHandler.Publish)

	return r
}
