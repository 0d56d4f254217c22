package router

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/logger"
	"github.com/pageza/foodgram/backend/internal/middleware"
)

// Options configures the parts of the engine that sit outside the API group.
type Options struct {
	CORSOrigins []string
	Metrics     *middleware.Metrics
	Ping        func(ctx context.Context) error
}

// SetupRouter configures the application routes
func SetupRouter(deps *api.Dependencies, opts Options) *gin.Engine {
	if deps.Log == nil {
		deps.Log = logger.Nop()
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Log))
	router.Use(opts.Metrics.Middleware())
	router.Use(middleware.CORS(opts.CORSOrigins))
	router.Use(middleware.ErrorHandler(deps.Log))

	router.GET("/health", api.HealthCheck(opts.Ping))
	if opts.Metrics != nil {
		router.GET("/metrics", opts.Metrics.Handler())
	}

	api.RegisterRoutes(router.Group("/api"), deps)
	return router
}
