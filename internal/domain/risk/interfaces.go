package risk

import (
	"context"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
)

// Provider computes risk metrics for a validated portfolio.
type Provider interface {
	Compute(ctx context.Context, p *portfolio.ValidatedPortfolio, params portfolio.RiskParameters) (*Result, error)
}

// StressTester applies shock scenarios to a portfolio.
type StressTester interface {
	Stress(p *portfolio.ValidatedPortfolio, scenarios map[string]map[string]float64) ([]StressResult, StressSummary)
	Notional(p *portfolio.ValidatedPortfolio) float64
}

// Optimizer computes target weights.
type Optimizer interface {
	Optimize(ctx context.Context, req portfolio.OptimizationRequest) (*Allocation, error)
}
