package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/victoralfred/qrisk/internal/config"
	"github.com/victoralfred/qrisk/internal/domain/ratelimit"
	"github.com/victoralfred/qrisk/internal/handlers"
	"github.com/victoralfred/qrisk/internal/middleware"
)

// Server is the HTTP front of the risk API
type Server interface {
	Setup()
	Start(ctx context.Context) error
	Router() *gin.Engine
}

// HTTPServer implements the Server interface
type HTTPServer struct {
	router   *gin.Engine
	config   *config.Config
	logger   *zap.Logger
	services *Services
}

// Services holds the handler and middleware dependencies
type Services struct {
	TokenService middleware.TokenService
	RateLimiter  ratelimit.Limiter // nil disables rate limiting

	RiskHandler   *handlers.RiskHandler
	HealthHandler *handlers.HealthHandler
	DocsHandler   *handlers.DocsHandler
}

// New creates a new server instance
func New(cfg *config.Config, svcs *Services, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		config:   cfg,
		services: svcs,
		logger:   logger,
	}
}

// Setup builds the router
func (s *HTTPServer) Setup() {
	if s.config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()
}

func (s *HTTPServer) setupMiddleware() {
	s.router.Use(ginzap.Ginzap(s.logger, time.RFC3339, true))
	s.router.Use(ginzap.RecoveryWithZap(s.logger, true))
	s.router.Use(middleware.RequestID())
	if s.config.Metrics.Enabled {
		s.router.Use(middleware.Metrics())
	}

	maxAge := s.config.CORS.MaxAge
	if maxAge <= 0 {
		maxAge = 12 * time.Hour
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins:     s.config.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: s.config.CORS.AllowCredentials,
		MaxAge:           maxAge,
	}))
}

func (s *HTTPServer) setupRoutes() {
	if h := s.services.HealthHandler; h != nil {
		s.router.GET("/", h.Info)
		s.router.GET("/health", h.Health)
	}

	if s.config.Metrics.Enabled {
		path := s.config.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		s.router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	if h := s.services.DocsHandler; h != nil {
		s.router.GET("/docs", h.GetSwaggerUI)
		s.router.GET("/docs/swagger.json", h.GetSwaggerJSON)
	}

	api := s.router.Group("/api/portfolio")
	api.Use(middleware.Auth(s.services.TokenService))
	if s.config.RateLimit.Enabled && s.services.RateLimiter != nil {
		rl := s.config.RateLimit
		api.Use(middleware.RedisRateLimit(
			s.services.RateLimiter,
			ratelimit.NewConfig(rl.Global, rl.PerUser, rl.PerIP, rl.Window),
			s.logger,
		))
	}

	if h := s.services.RiskHandler; h != nil {
		api.POST("/var", h.CalculateVaR)
		api.POST("/stress-test", h.StressTest)
		api.POST("/optimize", h.Optimize)
		api.GET("/:portfolio_id/history", h.History)
	}
}

// Start serves until ctx is canceled, then shuts down gracefully
func (s *HTTPServer) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting server",
			zap.Int("port", s.config.Server.Port),
			zap.String("environment", s.config.Server.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")

	timeout := s.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Server forced to shutdown", zap.Error(err))
		return err
	}

	s.logger.Info("Server exited")
	return nil
}

// Router returns the gin router for testing
func (s *HTTPServer) Router() *gin.Engine {
	return s.router
}
