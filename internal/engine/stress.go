package engine

import (
	"sort"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
)

// Notional returns the portfolio value used to express losses in currency.
func (e *Engine) Notional(p *portfolio.ValidatedPortfolio) float64 {
	if p.HasMarketValue() {
		return p.MarketValue
	}
	return e.cfg.DefaultNotional
}

// Stress applies instantaneous price shocks to the portfolio. A scenario
// shocks each symbol by its own entry, or by the DEFAULT entry when it has
// none; unlisted symbols are unchanged. Results are ordered by scenario name.
func (e *Engine) Stress(p *portfolio.ValidatedPortfolio, scenarios map[string]map[string]float64) ([]risk.StressResult, risk.StressSummary) {
	notional := e.Notional(p)

	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]risk.StressResult, 0, len(names))
	var summary risk.StressSummary
	for i, name := range names {
		impact := scenarioImpact(p.Positions, scenarios[name])
		outcome := risk.ScenarioOutcome{Scenario: name, ImpactPercentage: ratio(impact * 100)}

		results = append(results, risk.StressResult{
			Scenario:                  name,
			PortfolioImpactPercentage: outcome.ImpactPercentage,
			PortfolioImpactAmount:     money(impact * notional),
			Severity:                  risk.ClassifySeverity(impact),
		})

		if i == 0 || outcome.ImpactPercentage < summary.WorstCase.ImpactPercentage {
			summary.WorstCase = outcome
		}
		if i == 0 || outcome.ImpactPercentage > summary.BestCase.ImpactPercentage {
			summary.BestCase = outcome
		}
	}
	summary.ScenariosTested = len(results)
	return results, summary
}

func scenarioImpact(positions []portfolio.Position, shocks map[string]float64) float64 {
	fallback, hasDefault := shocks[portfolio.DefaultShockKey]
	impact := 0.0
	for _, pos := range positions {
		shock, ok := shocks[pos.Symbol]
		if !ok {
			if !hasDefault {
				continue
			}
			shock = fallback
		}
		impact += pos.Weight * shock
	}
	return impact
}
