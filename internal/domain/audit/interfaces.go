package audit

import (
	"context"
	"errors"
	"time"
)

// Logger records calculation events. Log must not block the caller and
// never reports failure; delivery problems are handled by the implementation.
type Logger interface {
	Log(ctx context.Context, entry *LogEntry)
}

// Sink persists or forwards audit entries.
type Sink interface {
	Write(ctx context.Context, entry *LogEntry) error
}

// HistoryReader queries previously recorded entries.
type HistoryReader interface {
	ListByPortfolio(ctx context.Context, portfolioID string, eventType EventType, since time.Time, limit int) ([]*LogEntry, error)
}

// MultiSink fans an entry out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Write(ctx context.Context, entry *LogEntry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
