package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photobomb/internal/api/handlers"
	"github.com/your-org/photobomb/internal/api/ws"
	"github.com/your-org/photobomb/internal/auth"
	"github.com/your-org/photobomb/internal/pipeline"
	"github.com/your-org/photobomb/internal/queue"
	"github.com/your-org/photobomb/internal/storage"
)

type RouterConfig struct {
	APIKey       string
	DB           *storage.PostgresStore
	Objects      *storage.ObjectStore
	Producer     *queue.Producer
	Orchestrator *pipeline.Orchestrator
	Hub          *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Objects, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API v1 (with auth)
	v1 := r.Group("/v1")
	v1.Use(auth.APIKeyMiddleware(cfg.APIKey))

	// WebSocket progress feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	// Pipelines
	pipelineH := handlers.NewPipelineHandler(cfg.DB, cfg.Orchestrator)
	v1.POST("/pipelines", pipelineH.Submit)
	v1.GET("/pipelines", pipelineH.List)
	v1.GET("/pipelines/:id", pipelineH.Get)
	v1.GET("/pipelines/:id/tasks", pipelineH.ListTasks)
	v1.POST("/pipelines/:id/cancel", pipelineH.Cancel)
	v1.POST("/pipelines/:id/rerun", pipelineH.Rerun)
	v1.DELETE("/pipelines/:id", pipelineH.Delete)

	// Clustering
	clusterH := handlers.NewClusteringHandler(cfg.Orchestrator)
	v1.POST("/clustering/run", clusterH.Trigger)

	return r
}
