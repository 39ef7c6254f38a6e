// Package kafka streams audit entries to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/victoralfred/qrisk/internal/config"
	"github.com/victoralfred/qrisk/internal/domain/audit"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditPublisher implements audit.Sink on a Kafka topic. Messages are keyed
// by portfolio id so one portfolio's events stay ordered within a partition.
type AuditPublisher struct {
	writer messageWriter
	topic  string
}

// NewAuditPublisher creates a synchronous publisher for the configured topic.
func NewAuditPublisher(cfg config.KafkaConfig) *AuditPublisher {
	return newAuditPublisher(&kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.CRC32Balancer{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
	}, cfg.Topic)
}

func newAuditPublisher(w messageWriter, topic string) *AuditPublisher {
	return &AuditPublisher{writer: w, topic: topic}
}

// Write publishes one entry
func (p *AuditPublisher) Write(ctx context.Context, entry *audit.LogEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	key := entry.PortfolioID
	if key == "" {
		key = entry.CalculationID
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: payload,
		Time:  entry.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(entry.EventType)},
			{Key: "severity", Value: []byte(entry.Severity)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish audit entry to %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and releases the writer
func (p *AuditPublisher) Close() error {
	return p.writer.Close()
}
