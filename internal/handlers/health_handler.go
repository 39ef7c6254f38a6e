package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	statusHealthy      = "healthy"
	statusDegraded     = "degraded"
	statusConnected    = "connected"
	statusDisconnected = "disconnected"
	statusDisabled     = "disabled"

	pingTimeout = 2 * time.Second
)

// Pinger is a dependency whose reachability is reported by /health
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthConfig describes what the health endpoint reports
type HealthConfig struct {
	Version     string
	Environment string
	DataSource  string
	StartTime   time.Time
}

// HealthHandler serves service health and API info
type HealthHandler struct {
	database Pinger
	redis    Pinger
	config   HealthConfig
	logger   *zap.Logger
}

// NewHealthHandler creates a health handler. A nil Pinger is reported as disabled.
func NewHealthHandler(database, redis Pinger, config HealthConfig, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		database: database,
		redis:    redis,
		config:   config,
		logger:   logger,
	}
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	Version        string    `json:"version"`
	Uptime         float64   `json:"uptime"`
	DatabaseStatus string    `json:"database_status"`
	RedisStatus    string    `json:"redis_status"`
	EngineStatus   string    `json:"engine_status"`
	DataSource     string    `json:"data_source"`
}

// Health handles GET /health. Unreachable dependencies degrade the status
// but the endpoint itself still answers 200.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), pingTimeout)
	defer cancel()

	resp := HealthResponse{
		Status:         statusHealthy,
		Timestamp:      time.Now().UTC(),
		Version:        h.config.Version,
		Uptime:         time.Since(h.config.StartTime).Seconds(),
		DatabaseStatus: h.probe(ctx, "postgres", h.database),
		RedisStatus:    h.probe(ctx, "redis", h.redis),
		EngineStatus:   "operational",
		DataSource:     h.config.DataSource,
	}
	if resp.DatabaseStatus == statusDisconnected || resp.RedisStatus == statusDisconnected {
		resp.Status = statusDegraded
	}

	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) probe(ctx context.Context, name string, p Pinger) string {
	if p == nil {
		return statusDisabled
	}
	if err := p.Ping(ctx); err != nil {
		h.logger.Warn("health probe failed", zap.String("dependency", name), zap.Error(err))
		return statusDisconnected
	}
	return statusConnected
}

// Info handles GET /
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":          "qrisk portfolio risk API",
		"version":       h.config.Version,
		"environment":   h.config.Environment,
		"documentation": "/docs",
		"endpoints": []string{
			"POST /api/portfolio/var",
			"POST /api/portfolio/stress-test",
			"POST /api/portfolio/optimize",
			"GET /api/portfolio/:portfolio_id/history",
			"GET /health",
			"GET /metrics",
		},
	})
}
