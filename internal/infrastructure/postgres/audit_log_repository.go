package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victoralfred/qrisk/internal/domain/audit"
)

// AuditLogRepository stores audit entries and serves risk history from them.
// It implements audit.Sink and audit.HistoryReader.
type AuditLogRepository struct {
	db *pgxpool.Pool
}

func NewAuditLogRepository(db *pgxpool.Pool) *AuditLogRepository {
	return &AuditLogRepository{
		db: db,
	}
}

// Write inserts an entry. Replays of the same entry id are ignored.
func (r *AuditLogRepository) Write(ctx context.Context, entry *audit.LogEntry) error {
	query := `
		INSERT INTO risk_audit_logs (
			id, timestamp, event_type, severity, calculation_id, portfolio_id,
			user_id, request_id, cache_hit, metadata
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (id) DO NOTHING
	`

	var metadataJSON []byte
	if len(entry.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	var requestID interface{}
	if entry.RequestID != "" {
		requestID = entry.RequestID
	}

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.Timestamp,
		string(entry.EventType),
		string(entry.Severity),
		entry.CalculationID,
		entry.PortfolioID,
		entry.UserID,
		requestID,
		entry.CacheHit,
		metadataJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit log entry: %w", err)
	}
	return nil
}

// ListByPortfolio returns the newest limit entries of one type recorded
// for a portfolio since the given time, oldest first.
func (r *AuditLogRepository) ListByPortfolio(ctx context.Context, portfolioID string, eventType audit.EventType, since time.Time, limit int) ([]*audit.LogEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, timestamp, event_type, severity, calculation_id, portfolio_id,
			   user_id, request_id, cache_hit, metadata
		FROM (
			SELECT *
			FROM risk_audit_logs
			WHERE portfolio_id = $1 AND event_type = $2 AND timestamp >= $3
			ORDER BY timestamp DESC
			LIMIT $4
		) recent
		ORDER BY timestamp ASC
	`

	rows, err := r.db.Query(ctx, query, portfolioID, string(eventType), since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit logs: %w", err)
	}
	defer rows.Close()

	var entries []*audit.LogEntry
	for rows.Next() {
		entry, err := r.scanLogEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}
	return entries, nil
}

func (r *AuditLogRepository) scanLogEntry(row pgx.Row) (*audit.LogEntry, error) {
	var (
		entry        audit.LogEntry
		eventType    string
		severity     string
		requestID    *string
		metadataJSON []byte
	)

	err := row.Scan(
		&entry.ID,
		&entry.Timestamp,
		&eventType,
		&severity,
		&entry.CalculationID,
		&entry.PortfolioID,
		&entry.UserID,
		&requestID,
		&entry.CacheHit,
		&metadataJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit log entry: %w", err)
	}

	entry.EventType = audit.EventType(eventType)
	entry.Severity = audit.Severity(severity)
	entry.Timestamp = entry.Timestamp.UTC()
	if requestID != nil {
		entry.RequestID = *requestID
	}
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &entry.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	return &entry, nil
}

// Ping checks connectivity for health reporting
func (r *AuditLogRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
