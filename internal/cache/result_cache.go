package cache

import (
	"context"
	"errors"
	"time"

	"github.com/victoralfred/qrisk/internal/domain/risk"
)

var ErrCacheMiss = errors.New("cache miss")

const (
	// SchemaVersion is stored in every entry; entries written under another
	// version are treated as misses.
	SchemaVersion = 1

	// DefaultTTL bounds how long a result may be served.
	DefaultTTL = time.Hour
)

// Entry is the cached result of a computation. It holds only what is
// independent of the request: ids, timings and warnings are per request.
type Entry struct {
	SchemaVersion     int              `json:"schema_version"`
	PortfolioID       string           `json:"portfolio_id"`
	Metrics           risk.Metrics     `json:"metrics"`
	Methodology       risk.Methodology `json:"methodology"`
	ComputedAt        time.Time        `json:"computed_at"`
	ComputationTimeMs float64          `json:"computation_time_ms"`
}

// NewEntry wraps a provider result for storage.
func NewEntry(portfolioID string, result *risk.Result, computedAt time.Time, elapsed time.Duration) *Entry {
	return &Entry{
		SchemaVersion:     SchemaVersion,
		PortfolioID:       portfolioID,
		Metrics:           result.Metrics,
		Methodology:       result.Methodology,
		ComputedAt:        computedAt.UTC(),
		ComputationTimeMs: float64(elapsed.Microseconds()) / 1000,
	}
}

// ResultCache stores computation results by derived key. Get returns
// ErrCacheMiss for absent, expired or incompatible entries; any other error
// means the cache itself failed.
type ResultCache interface {
	Get(ctx context.Context, key string) (*Entry, error)
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error
}
