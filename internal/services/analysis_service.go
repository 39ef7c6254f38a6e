package services

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/victoralfred/qrisk/internal/domain/audit"
	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
)

const (
	historyLimit        = 1000
	trendThreshold      = 0.05
	trendIncreasing     = "increasing"
	trendDecreasing     = "decreasing"
	trendStable         = "stable"
	metaScenarios       = "scenarios"
	metaWorstScenario   = "worst_scenario"
	metaWorstImpact     = "worst_impact_percentage"
	metaOptimizedAssets = "assets"
	metaExpectedReturn  = "expected_return"
	metaConverged       = "converged"
)

// StressRequest is one stress test request after decoding.
type StressRequest struct {
	Portfolio portfolio.Definition
	Scenarios map[string]map[string]float64
	UserID    string
	RequestID string
}

// OptimizationCall is one optimisation request after decoding.
type OptimizationCall struct {
	Request   portfolio.OptimizationRequest
	UserID    string
	RequestID string
}

// AnalysisService serves stress tests, optimisation and risk history.
type AnalysisService struct {
	validator      *portfolio.Validator
	stress         risk.StressTester
	optimizer      risk.Optimizer
	history        audit.HistoryReader
	audit          audit.Logger
	logger         *zap.Logger
	computeTimeout time.Duration
	now            func() time.Time
}

// NewAnalysisService creates the service. history may be nil when the audit
// sink cannot be queried.
func NewAnalysisService(
	validator *portfolio.Validator,
	stress risk.StressTester,
	optimizer risk.Optimizer,
	history audit.HistoryReader,
	auditLogger audit.Logger,
	logger *zap.Logger,
	computeTimeout time.Duration,
) *AnalysisService {
	if computeTimeout <= 0 {
		computeTimeout = 20 * time.Second
	}
	return &AnalysisService{
		validator:      validator,
		stress:         stress,
		optimizer:      optimizer,
		history:        history,
		audit:          auditLogger,
		logger:         logger,
		computeTimeout: computeTimeout,
		now:            time.Now,
	}
}

// StressTest applies each scenario to the portfolio.
func (s *AnalysisService) StressTest(ctx context.Context, req *StressRequest) (*risk.StressReport, error) {
	validated, err := s.validator.Validate(req.Portfolio)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateScenarios(req.Scenarios); err != nil {
		return nil, err
	}

	results, summary := s.stress.Stress(validated, req.Scenarios)
	report := &risk.StressReport{
		StressTestID:   uuid.NewString(),
		PortfolioID:    validated.ID,
		Timestamp:      s.now().UTC(),
		PortfolioValue: s.stress.Notional(validated),
		Currency:       validated.BaseCurrency,
		Results:        results,
		Summary:        summary,
		Warnings:       append(make([]string, 0, len(validated.Warnings)), validated.Warnings...),
	}

	entry := audit.NewLogEntry(audit.EventTypeStressTest, report.StressTestID, report.PortfolioID, req.UserID)
	entry.RequestID = req.RequestID
	entry.Metadata[metaScenarios] = summary.ScenariosTested
	entry.Metadata[metaWorstScenario] = summary.WorstCase.Scenario
	entry.Metadata[metaWorstImpact] = summary.WorstCase.ImpactPercentage
	if summary.WorstCase.ImpactPercentage <= -30 {
		entry.Severity = audit.SeverityWarning
	}
	s.audit.Log(ctx, entry)

	return report, nil
}

// Optimize computes target weights for the requested assets.
func (s *AnalysisService) Optimize(ctx context.Context, call *OptimizationCall) (*risk.OptimizationReport, error) {
	const op = "analysis.Optimize"

	req := call.Request
	req.ApplyDefaults()
	if err := s.validator.ValidateOptimization(req); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.computeTimeout)
	defer cancel()

	alloc, err := s.optimizer.Optimize(ctx, req)
	if err != nil {
		return nil, risk.Normalize(err, op)
	}

	report := &risk.OptimizationReport{
		OptimizationID: uuid.NewString(),
		Timestamp:      s.now().UTC(),
		Method:         req.Method,
		Allocation:     *alloc,
	}

	entry := audit.NewLogEntry(audit.EventTypeOptimization, report.OptimizationID, "", call.UserID)
	entry.RequestID = call.RequestID
	entry.Metadata[audit.MetaMethod] = string(req.Method)
	entry.Metadata[metaOptimizedAssets] = len(req.Symbols)
	entry.Metadata[metaExpectedReturn] = alloc.ExpectedReturn
	entry.Metadata[metaConverged] = alloc.Convergence.Success
	s.audit.Log(ctx, entry)

	return report, nil
}

// History returns the VaR calculations recorded for a portfolio over the
// last days days, oldest first.
func (s *AnalysisService) History(ctx context.Context, portfolioID string, days int) (*risk.HistoryReport, error) {
	if err := s.validator.ValidateHistoryWindow(days); err != nil {
		return nil, err
	}
	if s.history == nil {
		return nil, audit.ErrHistoryUnavailable
	}

	since := s.now().Add(-time.Duration(days) * 24 * time.Hour)
	entries, err := s.history.ListByPortfolio(ctx, portfolioID, audit.EventTypeVaRCalculation, since, historyLimit)
	if err != nil {
		s.logger.Error("failed to read risk history", zap.String("portfolio_id", portfolioID), zap.Error(err))
		return nil, audit.ErrHistoryUnavailable
	}

	points := make([]risk.HistoryPoint, 0, len(entries))
	for _, e := range entries {
		p := risk.HistoryPoint{
			CalculationID: e.CalculationID,
			Timestamp:     e.Timestamp,
			Method:        e.String(audit.MetaMethod),
			CacheHit:      e.CacheHit,
		}
		p.VaR95, _ = e.Float(audit.MetaVaR95)
		p.VaR99, _ = e.Float(audit.MetaVaR99)
		p.CVaR95, _ = e.Float(audit.MetaCVaR95)
		p.VolatilityAnnual, _ = e.Float(audit.MetaVolatilityAnnual)
		points = append(points, p)
	}

	return &risk.HistoryReport{
		PortfolioID:       portfolioID,
		TimePeriodDays:    days,
		HistoricalMetrics: points,
		Summary:           summarizeHistory(points),
	}, nil
}

// summarizeHistory aggregates VaR figures. The volatility trend compares the
// mean annual volatility of the later half of the window to the earlier half.
func summarizeHistory(points []risk.HistoryPoint) *risk.HistorySummary {
	if len(points) == 0 {
		return &risk.HistorySummary{}
	}

	vars := make([]float64, len(points))
	vols := make([]float64, len(points))
	summary := &risk.HistorySummary{MaxVaR: math.Inf(-1), MinVaR: math.Inf(1)}
	for i, p := range points {
		vars[i] = p.VaR95
		vols[i] = p.VolatilityAnnual
		summary.MaxVaR = math.Max(summary.MaxVaR, p.VaR95)
		summary.MinVaR = math.Min(summary.MinVaR, p.VaR95)
	}
	summary.AverageVaR = math.Round(stat.Mean(vars, nil)*100) / 100
	summary.VolatilityTrend = trend(vols)
	return summary
}

func trend(series []float64) string {
	if len(series) < 2 {
		return trendStable
	}
	half := len(series) / 2
	early := stat.Mean(series[:half], nil)
	late := stat.Mean(series[len(series)-half:], nil)
	if early == 0 {
		return trendStable
	}
	switch change := (late - early) / early; {
	case change > trendThreshold:
		return trendIncreasing
	case change < -trendThreshold:
		return trendDecreasing
	default:
		return trendStable
	}
}
