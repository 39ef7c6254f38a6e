package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/victoralfred/qrisk/internal/cache"
	"github.com/victoralfred/qrisk/internal/domain/audit"
	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
)

// MockProvider is a mock implementation of risk.Provider for testing
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Compute(ctx context.Context, p *portfolio.ValidatedPortfolio, params portfolio.RiskParameters) (*risk.Result, error) {
	args := m.Called(ctx, p, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Result), args.Error(1)
}

// MockResultCache is a mock implementation of cache.ResultCache for testing
type MockResultCache struct {
	mock.Mock
}

func (m *MockResultCache) Get(ctx context.Context, key string) (*cache.Entry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cache.Entry), args.Error(1)
}

func (m *MockResultCache) Set(ctx context.Context, key string, entry *cache.Entry, ttl time.Duration) error {
	args := m.Called(ctx, key, entry, ttl)
	return args.Error(0)
}

// MockSink is a mock implementation of audit.Sink for testing
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Write(ctx context.Context, entry *audit.LogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// MockHistoryReader is a mock implementation of audit.HistoryReader for testing
type MockHistoryReader struct {
	mock.Mock
}

func (m *MockHistoryReader) ListByPortfolio(ctx context.Context, portfolioID string, eventType audit.EventType, since time.Time, limit int) ([]*audit.LogEntry, error) {
	args := m.Called(ctx, portfolioID, eventType, since, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*audit.LogEntry), args.Error(1)
}

// MockOptimizer is a mock implementation of risk.Optimizer for testing
type MockOptimizer struct {
	mock.Mock
}

func (m *MockOptimizer) Optimize(ctx context.Context, req portfolio.OptimizationRequest) (*risk.Allocation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*risk.Allocation), args.Error(1)
}

// recordingAudit collects logged entries synchronously.
type recordingAudit struct {
	mu      sync.Mutex
	entries []*audit.LogEntry
}

func (r *recordingAudit) Log(_ context.Context, entry *audit.LogEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
}

func (r *recordingAudit) Entries() []*audit.LogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*audit.LogEntry(nil), r.entries...)
}
