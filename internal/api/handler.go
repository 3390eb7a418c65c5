package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"advisor-core/internal/coordinator"
	"advisor-core/internal/events"
	"advisor-core/internal/history"
	"advisor-core/internal/monitor"
	"advisor-core/internal/workflow"
)

// Pipeline starts one advice run.
type Pipeline interface {
	Process(ctx context.Context, req workflow.Request) *events.Stream
}

// ProviderSource reports breaker state.
type ProviderSource interface {
	Providers() []coordinator.ProviderStatus
}

// Server wires HTTP endpoints around the advice pipeline.
type Server struct {
	Router    *gin.Engine
	Workflow  Pipeline
	History   history.Store
	Providers ProviderSource
	Metrics   *monitor.SystemMetrics
	Logger    *zap.Logger
	JWTSecret string
	Meta      SystemMeta

	now func() time.Time
}

// SystemMeta describes runtime status exposed on /health.
type SystemMeta struct {
	Version string
	Mock    bool
	HostID  string
}

// Deps collects what NewServer needs. History, Providers and Metrics are optional.
type Deps struct {
	Workflow       Pipeline
	History        history.Store
	Providers      ProviderSource
	Metrics        *monitor.SystemMetrics
	Logger         *zap.Logger
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
	Meta           SystemMeta
}

func NewServer(d Deps) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	hist := d.History
	if hist == nil {
		hist = history.NewMemoryStore()
	}

	limiter := newIPLimiter(d.RateLimitRPS, d.RateLimitBurst)
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())                      // Panic recovery (first)
	r.Use(RequestIDMiddleware())               // Request ID tracking
	r.Use(RequestLogger(logger, d.Metrics))    // Request logging (after ID is set)
	r.Use(RateLimitMiddleware(limiter, logger)) // Rate limiting
	r.Use(CORSMiddleware())                    // CORS (last before routes)

	s := &Server{
		Router:    r,
		Workflow:  d.Workflow,
		History:   hist,
		Providers: d.Providers,
		Metrics:   d.Metrics,
		Logger:    logger,
		JWTSecret: d.JWTSecret,
		Meta:      d.Meta,
		now:       time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)

	api := s.Router.Group("/api")
	{
		api.GET("/providers", s.getProviders)
		api.GET("/metrics", s.getMetrics)
	}

	ai := s.Router.Group("/ai")
	if s.JWTSecret != "" {
		ai.Use(AuthMiddleware(s.JWTSecret))
	}
	{
		ai.POST("/chat", s.chat)
		ai.POST("/workflow/chat", s.workflowChat)
		ai.GET("/ws", s.websocket)

		hist := ai.Group("/history")
		hist.GET("/getChatIds", s.getChatIDs)
		hist.GET("/get/:chatId", s.getChatHistory)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.Meta.Version,
		"mock":    s.Meta.Mock,
		"host_id": s.Meta.HostID,
	})
}

// Handler exposes the router for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.Router
}
