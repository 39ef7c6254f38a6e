package services

import (
	"time"

	"github.com/google/uuid"

	"github.com/victoralfred/qrisk/internal/cache"
	"github.com/victoralfred/qrisk/internal/domain/risk"
)

// Assemble builds the response for one request. The calculation id is
// new for every request and the computation time is this request's own
// elapsed time, so a cache hit shares only metrics and methodology with the
// request that filled the cache.
func Assemble(portfolioID string, entry *cache.Entry, warnings []string, fromCache bool, start time.Time) *risk.Report {
	return &risk.Report{
		CalculationID:     uuid.NewString(),
		Timestamp:         time.Now().UTC(),
		PortfolioID:       portfolioID,
		RiskMetrics:       entry.Metrics,
		Methodology:       entry.Methodology,
		Warnings:          append(make([]string, 0, len(warnings)), warnings...),
		ComputationTimeMs: float64(time.Since(start).Microseconds()) / 1000,
		FromCache:         fromCache,
	}
}
