package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/victoralfred/qrisk/internal/domain/audit"
	"github.com/victoralfred/qrisk/internal/domain/risk"
	"github.com/victoralfred/qrisk/internal/metrics"
)

// AuditConfig controls audit delivery.
type AuditConfig struct {
	QueueSize    int
	Workers      int
	WriteTimeout time.Duration
}

// AuditService delivers audit entries to a sink in the background. Log
// never blocks: when the queue is full the entry is dropped and counted.
type AuditService struct {
	sink   audit.Sink
	config AuditConfig
	logger *zap.Logger

	queue  chan *audit.LogEntry
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAuditService creates an audit service; call Start before logging.
func NewAuditService(sink audit.Sink, config AuditConfig, logger *zap.Logger) *AuditService {
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 5 * time.Second
	}
	return &AuditService{
		sink:   sink,
		config: config,
		logger: logger,
		queue:  make(chan *audit.LogEntry, config.QueueSize),
	}
}

// Start launches the delivery workers.
func (s *AuditService) Start() {
	for i := 0; i < s.config.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
}

// Log enqueues an entry for delivery.
func (s *AuditService) Log(_ context.Context, entry *audit.LogEntry) {
	if entry == nil {
		return
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		metrics.AuditEvents.WithLabelValues(metrics.AuditDropped).Inc()
		s.logger.Warn("audit entry dropped after shutdown", zap.String("calculation_id", entry.CalculationID))
		return
	}

	select {
	case s.queue <- entry:
		metrics.AuditQueueDepth.Set(float64(len(s.queue)))
	default:
		metrics.AuditEvents.WithLabelValues(metrics.AuditDropped).Inc()
		s.logger.Warn("audit entry dropped",
			zap.String("calculation_id", entry.CalculationID),
			zap.Error(audit.ErrQueueFull))
	}
}

// Stop stops accepting entries and waits for queued ones to be delivered
// or for ctx to expire.
func (s *AuditService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *AuditService) worker() {
	defer s.wg.Done()
	for entry := range s.queue {
		metrics.AuditQueueDepth.Set(float64(len(s.queue)))
		s.deliver(entry)
	}
}

func (s *AuditService) deliver(entry *audit.LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout)
	defer cancel()

	if err := s.sink.Write(ctx, entry); err != nil {
		metrics.AuditEvents.WithLabelValues(metrics.AuditFailed).Inc()
		s.logger.Error("audit delivery failed",
			zap.String("calculation_id", entry.CalculationID),
			zap.String("event_type", string(entry.EventType)),
			zap.Error(risk.NewAuditError("audit.deliver", err)))
		return
	}
	metrics.AuditEvents.WithLabelValues(metrics.AuditWritten).Inc()
}

// LogSink writes audit entries to the structured log. It is the sink used
// when no durable store is configured.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a log-only audit sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Write implements audit.Sink.
func (s *LogSink) Write(_ context.Context, entry *audit.LogEntry) error {
	s.logger.Info("audit",
		zap.String("id", entry.ID.String()),
		zap.String("event_type", string(entry.EventType)),
		zap.String("calculation_id", entry.CalculationID),
		zap.String("portfolio_id", entry.PortfolioID),
		zap.String("user_id", entry.UserID),
		zap.String("request_id", entry.RequestID),
		zap.Bool("cache_hit", entry.CacheHit),
		zap.Any("metadata", entry.Metadata),
		zap.Time("timestamp", entry.Timestamp))
	return nil
}
