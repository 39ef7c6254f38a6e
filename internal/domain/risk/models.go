package risk

import (
	"encoding/json"
	"time"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
)

// Metrics are the risk figures for one portfolio. Loss figures are positive
// amounts in the portfolio currency over the requested horizon.
type Metrics struct {
	VaR95             float64 `json:"var_95"`
	VaR99             float64 `json:"var_99"`
	CVaR95            float64 `json:"cvar_95"`
	CVaR99            float64 `json:"cvar_99"`
	VaRAtConfidence   float64 `json:"var_at_confidence"`
	CVaRAtConfidence  float64 `json:"cvar_at_confidence"`
	VolatilityDaily   float64 `json:"volatility_daily"`
	VolatilityAnnual  float64 `json:"volatility_annual"`
	SharpeRatio       float64 `json:"sharpe_ratio"`
	MaxDrawdown       float64 `json:"max_drawdown"`
	MaxDrawdownAmount float64 `json:"max_drawdown_amount"`
	PortfolioValue    float64 `json:"portfolio_value"`
	Currency          string  `json:"currency"`
}

// Methodology describes how Metrics were produced.
type Methodology struct {
	ModelType         string  `json:"model_type"`
	ConfidenceLevel   float64 `json:"confidence_level"`
	TimeHorizonDays   int     `json:"time_horizon_days"`
	SimulationPaths   int     `json:"simulation_paths"`
	RiskFreeRate      float64 `json:"risk_free_rate"`
	Observations      int     `json:"observations"`
	VarianceReduction string  `json:"variance_reduction,omitempty"`
	DataSource        string  `json:"data_source"`
}

// Result is what a Provider returns for one calculation.
type Result struct {
	Metrics     Metrics
	Methodology Methodology
}

// Report is the response body of a VaR calculation.
type Report struct {
	CalculationID     string      `json:"calculation_id"`
	Timestamp         time.Time   `json:"timestamp"`
	PortfolioID       string      `json:"portfolio_id"`
	RiskMetrics       Metrics     `json:"risk_metrics"`
	Methodology       Methodology `json:"methodology"`
	Warnings          []string    `json:"warnings"`
	ComputationTimeMs float64     `json:"computation_time_ms"`
	FromCache         bool        `json:"from_cache"`
}

// Severity grades the outcome of a stress scenario.
type Severity string

const (
	SeverityPositive Severity = "positive"
	SeverityLow      Severity = "low"
	SeverityModerate Severity = "moderate"
	SeverityHigh     Severity = "high"
	SeveritySevere   Severity = "severe"
)

// ClassifySeverity maps a fractional portfolio impact to a severity band.
func ClassifySeverity(impact float64) Severity {
	switch {
	case impact >= 0:
		return SeverityPositive
	case impact > -0.05:
		return SeverityLow
	case impact > -0.15:
		return SeverityModerate
	case impact > -0.30:
		return SeverityHigh
	default:
		return SeveritySevere
	}
}

// StressResult is the outcome of one scenario.
type StressResult struct {
	Scenario                  string   `json:"scenario"`
	PortfolioImpactPercentage float64  `json:"portfolio_impact_percentage"`
	PortfolioImpactAmount     float64  `json:"portfolio_impact_amount"`
	Severity                  Severity `json:"severity"`
}

// ScenarioOutcome names a scenario and its percentage impact.
type ScenarioOutcome struct {
	Scenario         string  `json:"scenario"`
	ImpactPercentage float64 `json:"impact_percentage"`
}

// StressSummary aggregates a stress run.
type StressSummary struct {
	WorstCase       ScenarioOutcome `json:"worst_case_scenario"`
	BestCase        ScenarioOutcome `json:"best_case_scenario"`
	ScenariosTested int             `json:"scenarios_tested"`
}

// StressReport is the response body of a stress test.
type StressReport struct {
	StressTestID   string         `json:"stress_test_id"`
	PortfolioID    string         `json:"portfolio_id"`
	Timestamp      time.Time      `json:"timestamp"`
	PortfolioValue float64        `json:"portfolio_value"`
	Currency       string         `json:"currency"`
	Results        []StressResult `json:"results"`
	Summary        StressSummary  `json:"summary"`
	Warnings       []string       `json:"warnings"`
}

// ConvergenceInfo reports optimiser progress.
type ConvergenceInfo struct {
	Success    bool `json:"success"`
	Iterations int  `json:"iterations"`
}

// Allocation is an optimised set of weights, ordered like the request symbols.
type Allocation struct {
	Weights              []float64       `json:"optimal_weights"`
	ExpectedReturn       float64         `json:"expected_return"`
	Volatility           float64         `json:"volatility"`
	SharpeRatio          float64         `json:"sharpe_ratio"`
	Convergence          ConvergenceInfo `json:"convergence_info"`
	ConstraintsSatisfied bool            `json:"constraints_satisfied"`
}

// OptimizationReport is the response body of an optimisation.
type OptimizationReport struct {
	OptimizationID string                       `json:"optimization_id"`
	Timestamp      time.Time                    `json:"timestamp"`
	Method         portfolio.OptimizationMethod `json:"optimization_method"`
	Allocation
}

// HistoryPoint is one recorded VaR calculation.
type HistoryPoint struct {
	CalculationID    string    `json:"calculation_id"`
	Timestamp        time.Time `json:"timestamp"`
	Method           string    `json:"method"`
	VaR95            float64   `json:"var_95"`
	VaR99            float64   `json:"var_99"`
	CVaR95           float64   `json:"cvar_95"`
	VolatilityAnnual float64   `json:"volatility_annual"`
	CacheHit         bool      `json:"cache_hit"`
}

// HistorySummary aggregates history points. Empty when there are none.
type HistorySummary struct {
	AverageVaR      float64 `json:"average_var"`
	MaxVaR          float64 `json:"max_var"`
	MinVaR          float64 `json:"min_var"`
	VolatilityTrend string  `json:"volatility_trend"`
}

// MarshalJSON renders a summary of no data as an empty object.
func (s HistorySummary) MarshalJSON() ([]byte, error) {
	if s.VolatilityTrend == "" {
		return []byte("{}"), nil
	}
	type plain HistorySummary
	return json.Marshal(plain(s))
}

// HistoryReport is the response body of the history endpoint.
type HistoryReport struct {
	PortfolioID       string          `json:"portfolio_id"`
	TimePeriodDays    int             `json:"time_period_days"`
	HistoricalMetrics []HistoryPoint  `json:"historical_metrics"`
	Summary           *HistorySummary `json:"summary_statistics"`
}
