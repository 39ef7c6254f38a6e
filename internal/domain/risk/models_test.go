package risk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifySeverity(t *testing.T) {
	tests := []struct {
		impact float64
		want   Severity
	}{
		{0.02, SeverityPositive},
		{0, SeverityPositive},
		{-0.01, SeverityLow},
		{-0.05, SeverityModerate},
		{-0.149, SeverityModerate},
		{-0.15, SeverityHigh},
		{-0.30, SeveritySevere},
		{-0.9, SeveritySevere},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClassifySeverity(tt.impact), "impact %v", tt.impact)
	}
}

func TestHistoryReport_JSON(t *testing.T) {
	empty, err := json.Marshal(HistoryReport{PortfolioID: "P1", TimePeriodDays: 30, HistoricalMetrics: []HistoryPoint{}, Summary: &HistorySummary{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"portfolio_id":"P1","time_period_days":30,"historical_metrics":[],"summary_statistics":{}}`, string(empty))

	full, err := json.Marshal(HistorySummary{AverageVaR: 10, MaxVaR: 12, MinVaR: 8, VolatilityTrend: "stable"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"average_var":10,"max_var":12,"min_var":8,"volatility_trend":"stable"}`, string(full))
}

func TestOptimizationReport_FlattensAllocation(t *testing.T) {
	data, err := json.Marshal(OptimizationReport{
		OptimizationID: "o-1",
		Method:         "risk_parity",
		Allocation: Allocation{
			Weights:              []float64{0.25, 0.75},
			Convergence:          ConvergenceInfo{Success: true, Iterations: 3},
			ConstraintsSatisfied: true,
		},
	})
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "risk_parity", raw["optimization_method"])
	assert.Equal(t, []interface{}{0.25, 0.75}, raw["optimal_weights"])
	assert.Contains(t, raw, "convergence_info")
	assert.NotContains(t, raw, "Allocation")
}
