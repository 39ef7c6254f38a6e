package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func healthy(context.Context) error { return nil }

func TestHealthHandler_Health(t *testing.T) {
	tests := []struct {
		name         string
		database     Pinger
		redis        Pinger
		wantStatus   string
		wantDatabase string
		wantRedis    string
	}{
		{
			name:         "all dependencies reachable",
			database:     pingFunc(healthy),
			redis:        pingFunc(healthy),
			wantStatus:   "healthy",
			wantDatabase: "connected",
			wantRedis:    "connected",
		},
		{
			name:         "optional dependencies disabled",
			wantStatus:   "healthy",
			wantDatabase: "disabled",
			wantRedis:    "disabled",
		},
		{
			name:     "redis down",
			database: pingFunc(healthy),
			redis: pingFunc(func(context.Context) error {
				return errors.New("dial tcp: connection refused")
			}),
			wantStatus:   "degraded",
			wantDatabase: "connected",
			wantRedis:    "disconnected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			gin.SetMode(gin.TestMode)
			handler := NewHealthHandler(tt.database, tt.redis, HealthConfig{
				Version:    "1.0.0",
				DataSource: "synthetic",
				StartTime:  time.Now().Add(-time.Minute),
			}, zap.NewNop())
			router := gin.New()
			router.GET("/health", handler.Health)

			// Act
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", "/health", nil)
			router.ServeHTTP(w, req)

			// Assert
			assert.Equal(t, http.StatusOK, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.wantDatabase, resp.DatabaseStatus)
			assert.Equal(t, tt.wantRedis, resp.RedisStatus)
			assert.Equal(t, "operational", resp.EngineStatus)
			assert.Equal(t, "1.0.0", resp.Version)
			assert.GreaterOrEqual(t, resp.Uptime, 60.0)
		})
	}
}

func TestHealthHandler_PingIsBounded(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	var deadline time.Time
	handler := NewHealthHandler(pingFunc(func(ctx context.Context) error {
		deadline, _ = ctx.Deadline()
		return nil
	}), nil, HealthConfig{}, zap.NewNop())
	router := gin.New()
	router.GET("/health", handler.Health)

	// Act
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, req)

	// Assert
	require.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(pingTimeout), deadline, time.Second)
}
