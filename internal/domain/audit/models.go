package audit

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeVaRCalculation EventType = "var_calculation"
	EventTypeStressTest     EventType = "stress_test"
	EventTypeOptimization   EventType = "portfolio_optimization"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Metadata keys shared by the writer and the history reader.
const (
	MetaMethod           = "method"
	MetaConfidenceLevel  = "confidence_level"
	MetaTimeHorizon      = "time_horizon"
	MetaVaR95            = "var_95"
	MetaVaR99            = "var_99"
	MetaCVaR95           = "cvar_95"
	MetaVolatilityAnnual = "volatility_annual"
	MetaCacheKey         = "cache_key"
)

type LogEntry struct {
	ID            uuid.UUID              `json:"id"`
	Timestamp     time.Time              `json:"timestamp"`
	EventType     EventType              `json:"event_type"`
	Severity      Severity               `json:"severity"`
	CalculationID string                 `json:"calculation_id"`
	PortfolioID   string                 `json:"portfolio_id"`
	UserID        string                 `json:"user_id"`
	RequestID     string                 `json:"request_id,omitempty"`
	CacheHit      bool                   `json:"cache_hit"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewLogEntry stamps a new entry with an id and the current time.
func NewLogEntry(eventType EventType, calculationID, portfolioID, userID string) *LogEntry {
	return &LogEntry{
		ID:            uuid.New(),
		Timestamp:     time.Now().UTC(),
		EventType:     eventType,
		Severity:      SeverityInfo,
		CalculationID: calculationID,
		PortfolioID:   portfolioID,
		UserID:        userID,
		Metadata:      make(map[string]interface{}),
	}
}

// Float reads a numeric metadata value regardless of how it was decoded.
func (e *LogEntry) Float(key string) (float64, bool) {
	switch v := e.Metadata[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String reads a string metadata value.
func (e *LogEntry) String(key string) string {
	s, _ := e.Metadata[key].(string)
	return s
}
