package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/robotdriver/internal/api/middleware"
	"github.com/GriffinCanCode/robotdriver/internal/api/ws"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/logging"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/robotdriver/internal/infrastructure/tracing"
)

// RouterConfig configures NewRouter.
type RouterConfig struct {
	Prefix         string
	Logger         *logging.Logger
	Metrics        *monitoring.Metrics
	Tracer         *tracing.Tracer
	CORS           middleware.CORSConfig
	RateLimit      *middleware.RateLimitConfig
	StreamInterval time.Duration
}

// NewRouter builds the gin engine. A nil RateLimit disables limiting.
func NewRouter(robot Robot, cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.CORS))
	router.Use(monitoring.Middleware(cfg.Metrics))
	if cfg.Tracer != nil {
		router.Use(tracing.HTTPMiddleware(cfg.Tracer))
	}

	h := NewHandlers(robot, cfg.Prefix, cfg.Logger)
	stream := ws.NewHandler(robot, cfg.Prefix, cfg.Logger, cfg.Metrics, cfg.StreamInterval)

	router.GET("/healthz", h.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	v1 := router.Group("/v1/robot")
	{
		v1.GET("/ready", h.Ready)
		v1.GET("/state", h.State)
		v1.GET("/stream", stream.HandleConnection)

		target := []gin.HandlerFunc{h.Target}
		if cfg.RateLimit != nil {
			target = append([]gin.HandlerFunc{middleware.RateLimit(*cfg.RateLimit)}, target...)
		}
		v1.POST("/target", target...)
	}

	return router
}
