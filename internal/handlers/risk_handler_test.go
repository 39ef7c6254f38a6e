package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/victoralfred/qrisk/internal/domain/audit"
	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
	"github.com/victoralfred/qrisk/internal/services"
)

// MockCalculator for testing
type MockCalculator struct {
	mock.Mock
}

func (m *MockCalculator) CalculateVaR(ctx context.Context, req *services.CalculationRequest) (*risk.Report, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Report), args.Error(1)
}

// MockAnalyzer for testing
type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) StressTest(ctx context.Context, req *services.StressRequest) (*risk.StressReport, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.StressReport), args.Error(1)
}

func (m *MockAnalyzer) Optimize(ctx context.Context, call *services.OptimizationCall) (*risk.OptimizationReport, error) {
	args := m.Called(ctx, call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.OptimizationReport), args.Error(1)
}

func (m *MockAnalyzer) History(ctx context.Context, portfolioID string, days int) (*risk.HistoryReport, error) {
	args := m.Called(ctx, portfolioID, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.HistoryReport), args.Error(1)
}

func newRiskRouter(calc VaRCalculator, analyzer PortfolioAnalyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewRiskHandler(calc, analyzer, zap.NewNop())

	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("user_id", "analyst-7")
		c.Set("request_id", "req-1")
		c.Next()
	})
	api := router.Group("/api/portfolio")
	api.POST("/var", handler.CalculateVaR)
	api.POST("/stress-test", handler.StressTest)
	api.POST("/optimize", handler.Optimize)
	api.GET("/:portfolio_id/history", handler.History)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("POST", path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Success bool          `json:"success"`
	Error   ErrorResponse `json:"error"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	return body
}

const varBody = `{
	"portfolio_request": {
		"portfolio_id": "pf-1",
		"positions": [{"symbol": "AAPL", "weight": 0.6}, {"symbol": "MSFT", "weight": 0.4}]
	},
	"risk_params": {"confidence_level": 0.99, "method": "historical"}
}`

func TestRiskHandler_CalculateVaR_Success(t *testing.T) {
	// Arrange
	calc := new(MockCalculator)
	report := &risk.Report{
		CalculationID: "calc-1",
		PortfolioID:   "pf-1",
		RiskMetrics:   risk.Metrics{VaR95: 1234.5, Currency: "USD"},
		Warnings:      []string{},
	}
	calc.On("CalculateVaR", mock.Anything, mock.MatchedBy(func(req *services.CalculationRequest) bool {
		return req.Portfolio.ID == "pf-1" &&
			len(req.Portfolio.Positions) == 2 &&
			req.Params.ConfidenceLevel == 0.99 &&
			req.Params.Method == portfolio.MethodHistorical &&
			req.Params.TimeHorizon == portfolio.DefaultTimeHorizon &&
			req.UserID == "analyst-7" &&
			req.RequestID == "req-1"
	})).Return(report, nil)
	router := newRiskRouter(calc, new(MockAnalyzer))

	// Act
	w := postJSON(router, "/api/portfolio/var", varBody)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	var got risk.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "calc-1", got.CalculationID)
	assert.Equal(t, 1234.5, got.RiskMetrics.VaR95)
	calc.AssertExpectations(t)
}

func TestRiskHandler_CalculateVaR_DefaultsWhenParamsOmitted(t *testing.T) {
	// Arrange
	calc := new(MockCalculator)
	calc.On("CalculateVaR", mock.Anything, mock.MatchedBy(func(req *services.CalculationRequest) bool {
		return req.Params == portfolio.DefaultRiskParameters()
	})).Return(&risk.Report{}, nil)
	router := newRiskRouter(calc, new(MockAnalyzer))

	// Act
	w := postJSON(router, "/api/portfolio/var", `{"portfolio_request": {"portfolio_id": "pf-1", "positions": [{"symbol": "AAPL", "weight": 1}]}}`)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	calc.AssertExpectations(t)
}

func TestRiskHandler_CalculateVaR_MalformedJSON(t *testing.T) {
	// Arrange
	calc := new(MockCalculator)
	router := newRiskRouter(calc, new(MockAnalyzer))

	// Act
	w := postJSON(router, "/api/portfolio/var", `{"portfolio_request": [`)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decodeError(t, w).Error.Code)
	calc.AssertNotCalled(t, "CalculateVaR", mock.Anything, mock.Anything)
}

func TestRiskHandler_CalculateVaR_ErrorMapping(t *testing.T) {
	validationErr := portfolio.NewValidator().ValidateHistoryWindow(0)

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "validation error",
			err:        validationErr,
			wantStatus: http.StatusBadRequest,
			wantCode:   "VALIDATION_ERROR",
		},
		{
			name:       "insufficient data",
			err:        risk.NewComputationError(risk.ErrInsufficientData, "not enough price history", "engine.Compute"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "INSUFFICIENT_DATA",
		},
		{
			name:       "unknown symbol",
			err:        risk.NewComputationError(risk.ErrUnknownSymbol, "unknown symbol", "engine.Compute").WithDetails("symbol", "ZZZZ"),
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   "UNKNOWN_SYMBOL",
		},
		{
			name:       "timeout",
			err:        risk.FromContext(context.DeadlineExceeded, "risk.compute"),
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   "CALCULATION_TIMEOUT",
		},
		{
			name:       "market data outage",
			err:        risk.NewComputationError(risk.ErrMarketDataUnavailable, "market data unavailable", "engine.Compute"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   "MARKET_DATA_UNAVAILABLE",
		},
		{
			name:       "numerical failure",
			err:        risk.NewComputationError(risk.ErrNumericalInstability, "covariance not positive definite", "engine.Compute"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CALCULATION_FAILED",
		},
		{
			name:       "untyped failure",
			err:        errors.New("pq: relation asset_returns does not exist"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "CALCULATION_FAILED",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			calc := new(MockCalculator)
			calc.On("CalculateVaR", mock.Anything, mock.Anything).Return(nil, tt.err)
			router := newRiskRouter(calc, new(MockAnalyzer))

			// Act
			w := postJSON(router, "/api/portfolio/var", varBody)

			// Assert
			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tt.wantCode, body.Error.Code)
			assert.NotContains(t, w.Body.String(), "asset_returns")
			assert.NotContains(t, w.Body.String(), "positive definite")
		})
	}
}

func TestRiskHandler_CalculateVaR_ValidationFields(t *testing.T) {
	// Arrange
	validator := portfolio.NewValidator()
	_, validationErr := validator.Validate(portfolio.Definition{
		ID:        "pf-1",
		Positions: []portfolio.Position{{Symbol: "AAPL", Weight: 0.5}},
	})
	require.Error(t, validationErr)

	calc := new(MockCalculator)
	calc.On("CalculateVaR", mock.Anything, mock.Anything).Return(nil, validationErr)
	router := newRiskRouter(calc, new(MockAnalyzer))

	// Act
	w := postJSON(router, "/api/portfolio/var", varBody)

	// Assert
	assert.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeError(t, w)
	require.NotEmpty(t, body.Error.Fields)
	assert.Equal(t, "positions", body.Error.Fields[0].Field)
}

func TestRiskHandler_CalculateVaR_ClientGone(t *testing.T) {
	// Arrange
	calc := new(MockCalculator)
	calc.On("CalculateVaR", mock.Anything, mock.Anything).Return(nil, risk.FromContext(context.Canceled, "risk.compute"))
	router := newRiskRouter(calc, new(MockAnalyzer))

	// Act
	w := postJSON(router, "/api/portfolio/var", varBody)

	// Assert
	assert.Equal(t, StatusClientClosedRequest, w.Code)
	assert.JSONEq(t,
		`{"success":false,"error":{"code":"CALCULATION_CANCELED","message":"Request was canceled before the calculation finished"}}`,
		w.Body.String())
}

func TestRiskHandler_StressTest(t *testing.T) {
	// Arrange
	analyzer := new(MockAnalyzer)
	report := &risk.StressReport{StressTestID: "st-1", PortfolioID: "pf-1"}
	analyzer.On("StressTest", mock.Anything, mock.MatchedBy(func(req *services.StressRequest) bool {
		return req.Portfolio.ID == "pf-1" &&
			req.Scenarios["crash"]["DEFAULT"] == -0.3 &&
			req.UserID == "analyst-7"
	})).Return(report, nil)
	router := newRiskRouter(new(MockCalculator), analyzer)

	// Act
	w := postJSON(router, "/api/portfolio/stress-test", `{
		"portfolio_request": {"portfolio_id": "pf-1", "positions": [{"symbol": "AAPL", "weight": 1}]},
		"scenarios": {"crash": {"DEFAULT": -0.3}}
	}`)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"stress_test_id":"st-1"`)
	analyzer.AssertExpectations(t)
}

func TestRiskHandler_Optimize(t *testing.T) {
	// Arrange
	analyzer := new(MockAnalyzer)
	report := &risk.OptimizationReport{
		OptimizationID: "opt-1",
		Timestamp:      time.Now().UTC(),
		Method:         portfolio.OptimizationRiskParity,
		Allocation:     risk.Allocation{Weights: []float64{0.5, 0.5}},
	}
	analyzer.On("Optimize", mock.Anything, mock.MatchedBy(func(call *services.OptimizationCall) bool {
		return len(call.Request.Symbols) == 2 &&
			call.Request.Method == portfolio.OptimizationRiskParity &&
			call.Request.RiskAversion == 2
	})).Return(report, nil)
	router := newRiskRouter(new(MockCalculator), analyzer)

	// Act
	w := postJSON(router, "/api/portfolio/optimize", `{
		"symbols": ["AAPL", "MSFT"],
		"expected_returns": [0.08, 0.1],
		"risk_aversion": 2,
		"optimization_method": "risk_parity"
	}`)

	// Assert
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"optimization_id":"opt-1"`)
	assert.Contains(t, w.Body.String(), `"optimal_weights":[0.5,0.5]`)
	analyzer.AssertExpectations(t)
}

func TestRiskHandler_History(t *testing.T) {
	t.Run("defaults to thirty days", func(t *testing.T) {
		// Arrange
		analyzer := new(MockAnalyzer)
		analyzer.On("History", mock.Anything, "pf-1", portfolio.DefaultHistoryDays).
			Return(&risk.HistoryReport{PortfolioID: "pf-1", TimePeriodDays: 30, HistoricalMetrics: []risk.HistoryPoint{}, Summary: &risk.HistorySummary{}}, nil)
		router := newRiskRouter(new(MockCalculator), analyzer)

		// Act
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/portfolio/pf-1/history", nil)
		router.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"summary_statistics":{}`)
		analyzer.AssertExpectations(t)
	})

	t.Run("rejects a non-numeric window", func(t *testing.T) {
		// Arrange
		analyzer := new(MockAnalyzer)
		router := newRiskRouter(new(MockCalculator), analyzer)

		// Act
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/portfolio/pf-1/history?days=week", nil)
		router.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "VALIDATION_ERROR", body.Error.Code)
		assert.Equal(t, "days", body.Error.Fields[0].Field)
		analyzer.AssertNotCalled(t, "History", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("reports an unavailable store", func(t *testing.T) {
		// Arrange
		analyzer := new(MockAnalyzer)
		analyzer.On("History", mock.Anything, "pf-1", 7).Return(nil, audit.ErrHistoryUnavailable)
		router := newRiskRouter(new(MockCalculator), analyzer)

		// Act
		w := httptest.NewRecorder()
		req, _ := http.NewRequest("GET", "/api/portfolio/pf-1/history?days=7", nil)
		router.ServeHTTP(w, req)

		// Assert
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "HISTORY_UNAVAILABLE", decodeError(t, w).Error.Code)
	})
}
