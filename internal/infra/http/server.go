package http

import (
	"net/http"
	"time"

	"vigil/internal/config"
	"vigil/internal/domain"
	"vigil/internal/infra/db"
	"vigil/internal/infra/metrics"
	"vigil/internal/infra/providers"
	"vigil/internal/infra/ratelimit"
	"vigil/internal/usecase"

	"github.com/gin-gonic/gin"
)

// PulseController is the admin-facing slice of the pulse monitor.
type PulseController interface {
	Reset() string
}

type Server struct {
	cfg   config.Config
	store *db.Store
	r     *gin.Engine

	generate *usecase.GenerateImage
	pipeline usecase.GenerateImageDeps
	registry *providers.Registry
	metrics  *metrics.Registry
	events   domain.EventLog
	pulse    PulseController

	rateLimiter       domain.RateLimiter
	rateLimitRequests int
	rateLimitWindow   time.Duration
}

type ServerDeps struct {
	Pipeline    usecase.GenerateImageDeps
	Registry    *providers.Registry
	Metrics     *metrics.Registry
	Events      domain.EventLog
	Pulse       PulseController
	Store       *db.Store
	RateLimiter domain.RateLimiter
}

func NewServerWithDeps(cfg config.Config, deps ServerDeps) *Server {
	r := gin.New()
	r.Use(gin.Recovery())

	s := &Server{
		cfg:      cfg,
		store:    deps.Store,
		r:        r,
		generate: usecase.NewGenerateImage(deps.Pipeline),
		pipeline: deps.Pipeline,
		registry: deps.Registry,
		metrics:  deps.Metrics,
		events:   deps.Events,
		pulse:    deps.Pulse,
	}
	s.initRateLimit(deps.RateLimiter)
	s.routes()
	return s
}

func (s *Server) initRateLimit(override domain.RateLimiter) {
	if override != nil {
		s.rateLimiter = override
	}
	if s.rateLimiter == nil && s.cfg.RateLimitRequests > 0 {
		if s.cfg.RedisAddr != "" {
			if limiter, err := ratelimit.NewRedisLimiter(s.cfg.RedisAddr, s.cfg.RedisPassword, s.cfg.RedisDB, nil); err == nil {
				s.rateLimiter = limiter
			}
		}
		if s.rateLimiter == nil {
			s.rateLimiter = ratelimit.NewMemoryLimiter(ratelimit.MemoryLimiterConfig{
				MaxKeys: s.cfg.RateLimitMaxKeys,
			})
		}
	}
	s.rateLimitRequests = s.cfg.RateLimitRequests
	if s.cfg.RateLimitWindowSeconds > 0 {
		s.rateLimitWindow = s.cfg.RateLimitWindow()
	}
}

func (s *Server) routes() {
	s.r.GET("/healthz", func(c *gin.Context) {
		dbMode := "no-db"
		if s.store != nil && s.store.Enabled() {
			dbMode = "db"
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok", "mode": dbMode})
	})

	s.r.POST("/image/generate", s.handleGenerate)
	s.r.GET("/metrics", s.handleMetrics)
	s.r.GET("/events", s.handleEvents)

	admin := s.r.Group("/admin")
	{
		admin.POST("/metrics/reset", s.handleMetricsReset)
		admin.POST("/pulse/reset", s.handlePulseReset)
	}

	s.r.NoRoute(func(c *gin.Context) {
		writeErrorCode(c, http.StatusNotFound, "NOT_FOUND", "route not found")
	})
}

func (s *Server) Run() error {
	return s.r.Run(s.cfg.HTTPAddr)
}
