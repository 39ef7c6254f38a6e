package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
	"github.com/victoralfred/qrisk/internal/services"
)

// VaRCalculator runs the VaR pipeline
type VaRCalculator interface {
	CalculateVaR(ctx context.Context, req *services.CalculationRequest) (*risk.Report, error)
}

// PortfolioAnalyzer serves the supplementary analyses
type PortfolioAnalyzer interface {
	StressTest(ctx context.Context, req *services.StressRequest) (*risk.StressReport, error)
	Optimize(ctx context.Context, call *services.OptimizationCall) (*risk.OptimizationReport, error)
	History(ctx context.Context, portfolioID string, days int) (*risk.HistoryReport, error)
}

// RiskHandler handles the portfolio risk endpoints
type RiskHandler struct {
	calculator VaRCalculator
	analyzer   PortfolioAnalyzer
	logger     *zap.Logger
}

// NewRiskHandler creates a new risk handler
func NewRiskHandler(calculator VaRCalculator, analyzer PortfolioAnalyzer, logger *zap.Logger) *RiskHandler {
	return &RiskHandler{
		calculator: calculator,
		analyzer:   analyzer,
		logger:     logger,
	}
}

// VaRRequest is the body of POST /api/portfolio/var
type VaRRequest struct {
	Portfolio  portfolio.Definition          `json:"portfolio_request"`
	RiskParams *portfolio.ParameterOverrides `json:"risk_params"`
}

// StressTestRequest is the body of POST /api/portfolio/stress-test
type StressTestRequest struct {
	Portfolio portfolio.Definition          `json:"portfolio_request"`
	Scenarios map[string]map[string]float64 `json:"scenarios"`
}

// CalculateVaR handles POST /api/portfolio/var
func (h *RiskHandler) CalculateVaR(c *gin.Context) {
	var req VaRRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}

	report, err := h.calculator.CalculateVaR(c.Request.Context(), &services.CalculationRequest{
		Portfolio: req.Portfolio,
		Params:    req.RiskParams.Resolve(),
		UserID:    c.GetString("user_id"),
		RequestID: c.GetString("request_id"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// StressTest handles POST /api/portfolio/stress-test
func (h *RiskHandler) StressTest(c *gin.Context) {
	var req StressTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}

	report, err := h.analyzer.StressTest(c.Request.Context(), &services.StressRequest{
		Portfolio: req.Portfolio,
		Scenarios: req.Scenarios,
		UserID:    c.GetString("user_id"),
		RequestID: c.GetString("request_id"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// Optimize handles POST /api/portfolio/optimize
func (h *RiskHandler) Optimize(c *gin.Context) {
	var req portfolio.OptimizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidRequest(c)
		return
	}

	report, err := h.analyzer.Optimize(c.Request.Context(), &services.OptimizationCall{
		Request:   req,
		UserID:    c.GetString("user_id"),
		RequestID: c.GetString("request_id"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// History handles GET /api/portfolio/:portfolio_id/history?days=N
func (h *RiskHandler) History(c *gin.Context) {
	days := portfolio.DefaultHistoryDays
	if raw, ok := c.GetQuery("days"); ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			abortWithError(c, http.StatusBadRequest, ErrorResponse{
				Code:    "VALIDATION_ERROR",
				Message: "Invalid request data",
				Fields:  []portfolio.FieldError{{Field: "days", Message: "must be an integer"}},
			})
			return
		}
		days = n
	}

	report, err := h.analyzer.History(c.Request.Context(), c.Param("portfolio_id"), days)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
