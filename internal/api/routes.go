package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/config"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/metrics"
	"github.com/alphagov/transition-mappings/internal/middleware"
	"github.com/alphagov/transition-mappings/internal/service"
)

// Deps holds what the handlers need
type Deps struct {
	DB      *gorm.DB
	Auth    config.AuthConfig
	Batches *service.BatchService
	Queue   Enqueuer
	Log     logger.Logger
}

// NewRouter builds the HTTP routes
func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Log))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
			"service":   "transition-mappings",
		})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	r.POST("/auth/login", LoginHandler(deps.DB, deps.Auth, deps.Log))

	authorized := r.Group("/")
	authorized.Use(middleware.JWTRequired(deps.Auth.JWTSecret, deps.Log))
	{
		authorized.POST("/sites/:abbr/batches", CreateBatchHandler(deps.DB, deps.Batches, deps.Log))
		authorized.POST("/sites/:abbr/imports", CreateImportHandler(deps.DB, deps.Batches, deps.Log))
		authorized.POST("/sites/:abbr/host_paths", CreateHostPathHandler(deps.DB, deps.Log))
		authorized.GET("/batches/:id", GetBatchHandler(deps.Batches, deps.Log))
		authorized.POST("/batches/:id/process", ProcessBatchHandler(deps.Batches, deps.Queue, deps.Log))
		authorized.DELETE("/batches/:id", DeleteBatchHandler(deps.Batches, deps.Log))
	}

	return r
}
