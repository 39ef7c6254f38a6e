package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victoralfred/qrisk/internal/middleware"
	"github.com/victoralfred/qrisk/internal/services"
)

func TestTokenServiceAdapter_WithJWT(t *testing.T) {
	// Arrange
	gin.SetMode(gin.TestMode)
	tokens := services.NewTokenService("0123456789abcdef0123456789abcdef", "qrisk", time.Hour)
	other := services.NewTokenService("fedcba9876543210fedcba9876543210", "qrisk", time.Hour)

	router := gin.New()
	router.Use(middleware.Auth(middleware.NewTokenServiceAdapter(tokens)))
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id"))
	})

	valid, err := tokens.IssueToken("analyst-7", []string{"analyst"})
	require.NoError(t, err)
	forged, err := other.IssueToken("analyst-7", nil)
	require.NoError(t, err)

	// Act
	okRec := httptest.NewRecorder()
	okReq, _ := http.NewRequest("GET", "/test", nil)
	okReq.Header.Set("Authorization", "Bearer "+valid)
	router.ServeHTTP(okRec, okReq)

	badRec := httptest.NewRecorder()
	badReq, _ := http.NewRequest("GET", "/test", nil)
	badReq.Header.Set("Authorization", "Bearer "+forged)
	router.ServeHTTP(badRec, badReq)

	// Assert
	assert.Equal(t, http.StatusOK, okRec.Code)
	assert.Equal(t, "analyst-7", okRec.Body.String())
	assert.Equal(t, http.StatusUnauthorized, badRec.Code)
	assert.Contains(t, badRec.Body.String(), "AUTH_INVALID_TOKEN")
}
