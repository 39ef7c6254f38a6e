package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/victoralfred/qrisk/internal/cache"
	"github.com/victoralfred/qrisk/internal/domain/audit"
	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
	"github.com/victoralfred/qrisk/internal/metrics"
)

// RiskServiceConfig tunes the VaR pipeline.
type RiskServiceConfig struct {
	CacheTTL       time.Duration
	ComputeTimeout time.Duration
}

// CalculationRequest is one VaR request after decoding.
type CalculationRequest struct {
	Portfolio portfolio.Definition
	Params    portfolio.RiskParameters
	UserID    string
	RequestID string
}

// RiskService runs the VaR pipeline: validate, look up the result cache,
// compute on a miss, then assemble and audit.
type RiskService struct {
	validator *portfolio.Validator
	cache     cache.ResultCache
	provider  risk.Provider
	audit     audit.Logger
	logger    *zap.Logger
	config    RiskServiceConfig

	flights singleflight.Group
}

// NewRiskService creates the VaR pipeline
func NewRiskService(
	validator *portfolio.Validator,
	resultCache cache.ResultCache,
	provider risk.Provider,
	auditLogger audit.Logger,
	logger *zap.Logger,
	config RiskServiceConfig,
) *RiskService {
	if config.CacheTTL <= 0 {
		config.CacheTTL = cache.DefaultTTL
	}
	if config.ComputeTimeout <= 0 {
		config.ComputeTimeout = 20 * time.Second
	}
	return &RiskService{
		validator: validator,
		cache:     resultCache,
		provider:  provider,
		audit:     auditLogger,
		logger:    logger,
		config:    config,
	}
}

// CalculateVaR validates the request and returns risk metrics, serving them
// from the result cache when possible. Concurrent requests for the same key
// share one computation.
func (s *RiskService) CalculateVaR(ctx context.Context, req *CalculationRequest) (*risk.Report, error) {
	start := time.Now()

	validated, err := s.validator.Validate(req.Portfolio)
	if err != nil {
		return nil, err
	}
	if err := s.validator.ValidateParameters(req.Params); err != nil {
		return nil, err
	}

	key := cache.DeriveContentKey(validated, req.Params)

	entry, hit := s.lookup(ctx, key)
	if !hit {
		entry, err = s.compute(ctx, key, validated, req.Params)
		if err != nil {
			return nil, err
		}
	}

	report := Assemble(validated.ID, entry, validated.Warnings, hit, start)
	s.audit.Log(ctx, varAuditEntry(req, report, key))
	return report, nil
}

// lookup reads the cache. Failures are logged and treated as misses.
func (s *RiskService) lookup(ctx context.Context, key string) (*cache.Entry, bool) {
	entry, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		metrics.CacheLookups.WithLabelValues(metrics.CacheHit).Inc()
		return entry, true
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.CacheLookups.WithLabelValues(metrics.CacheMiss).Inc()
	default:
		metrics.CacheLookups.WithLabelValues(metrics.CacheError).Inc()
		s.logger.Warn("result cache lookup failed, computing directly",
			zap.String("cache_key", key),
			zap.Error(risk.NewCacheError("cache.Get", err)))
	}
	return nil, false
}

// compute runs the provider once per key across concurrent callers. The
// shared computation is detached from any single caller and bounded by the
// compute timeout; each caller still stops waiting when its own context ends.
func (s *RiskService) compute(ctx context.Context, key string, p *portfolio.ValidatedPortfolio, params portfolio.RiskParameters) (*cache.Entry, error) {
	const op = "risk.compute"

	ch := s.flights.DoChan(key, func() (interface{}, error) {
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.ComputeTimeout)
		defer cancel()

		began := time.Now()
		result, err := s.provider.Compute(flightCtx, p, params)
		elapsed := time.Since(began)
		if err != nil {
			metrics.ComputationDuration.WithLabelValues(string(params.Method), "error").Observe(elapsed.Seconds())
			return nil, risk.Normalize(err, op)
		}
		metrics.ComputationDuration.WithLabelValues(string(params.Method), "success").Observe(elapsed.Seconds())

		entry := cache.NewEntry(p.ID, result, time.Now(), elapsed)
		if err := s.cache.Set(flightCtx, key, entry, s.config.CacheTTL); err != nil {
			metrics.CacheWriteErrors.Inc()
			s.logger.Warn("result cache store failed",
				zap.String("cache_key", key),
				zap.Error(risk.NewCacheError("cache.Set", err)))
		}
		return entry, nil
	})

	select {
	case <-ctx.Done():
		return nil, risk.FromContext(ctx.Err(), op)
	case res := <-ch:
		if res.Shared {
			metrics.SharedComputations.Inc()
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*cache.Entry), nil
	}
}

func varAuditEntry(req *CalculationRequest, report *risk.Report, key string) *audit.LogEntry {
	entry := audit.NewLogEntry(audit.EventTypeVaRCalculation, report.CalculationID, report.PortfolioID, req.UserID)
	entry.RequestID = req.RequestID
	entry.CacheHit = report.FromCache
	entry.Metadata[audit.MetaMethod] = string(req.Params.Method)
	entry.Metadata[audit.MetaConfidenceLevel] = req.Params.ConfidenceLevel
	entry.Metadata[audit.MetaTimeHorizon] = req.Params.TimeHorizon
	entry.Metadata[audit.MetaVaR95] = report.RiskMetrics.VaR95
	entry.Metadata[audit.MetaVaR99] = report.RiskMetrics.VaR99
	entry.Metadata[audit.MetaCVaR95] = report.RiskMetrics.CVaR95
	entry.Metadata[audit.MetaVolatilityAnnual] = report.RiskMetrics.VolatilityAnnual
	entry.Metadata[audit.MetaCacheKey] = key
	return entry
}
