package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/clinic-finance/internal/handler/health"
	promhandler "github.com/jwalitptl/clinic-finance/internal/handler/prometheus"
	"github.com/jwalitptl/clinic-finance/internal/middleware"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

// Handler is a resource handler; guard runs before its mutating routes.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, guard ...gin.HandlerFunc)
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	RateIdleTTL    time.Duration
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSConfig     middleware.CORSConfig
	// WriteRoles may call mutating routes. Empty means any authenticated
	// caller may.
	WriteRoles []string
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   *health.Handler
	handlers []Handler
	gatherer prometheus.Gatherer
	config   RouterConfig
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *health.Handler,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	config RouterConfig,
	handlers ...Handler,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	middleware.RegisterValidators()

	engine := gin.New()

	if config.RequestTimeout <= 0 {
		config.RequestTimeout = middleware.DefaultTimeoutConfig().Duration
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 1 << 20
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Metrics(m),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(config.MaxBodyBytes),
		middleware.CORS(config.CORSConfig),
	)

	if config.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:    config.RateLimit,
			Burst:   config.RateBurst,
			IdleTTL: config.RateIdleTTL,
		})
		engine.Use(limiter.RateLimit())
	}

	return &Router{
		engine:   engine,
		auth:     auth,
		health:   healthH,
		handlers: handlers,
		gatherer: gatherer,
		config:   config,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", promhandler.Handler(r.gatherer))

	api := r.engine.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})

	r.health.RegisterRoutes(api)

	protected := api.Group("")
	protected.Use(r.auth.Authenticate())

	var guard []gin.HandlerFunc
	if len(r.config.WriteRoles) > 0 {
		guard = append(guard, r.auth.RequireRole(r.config.WriteRoles...))
	}
	for _, h := range r.handlers {
		h.RegisterRoutes(protected, guard...)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
