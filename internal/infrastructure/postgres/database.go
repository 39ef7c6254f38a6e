package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victoralfred/qrisk/internal/config"
)

// NewPool connects to Postgres and verifies the connection
func NewPool(ctx context.Context, cfg config.PostgresConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS risk_audit_logs (
		id UUID PRIMARY KEY,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		event_type VARCHAR(64) NOT NULL,
		severity VARCHAR(20) NOT NULL CHECK (severity IN ('info', 'warning')),
		calculation_id VARCHAR(64) NOT NULL,
		portfolio_id VARCHAR(128) NOT NULL DEFAULT '',
		user_id VARCHAR(255) NOT NULL DEFAULT '',
		request_id VARCHAR(255),
		cache_hit BOOLEAN NOT NULL DEFAULT false,
		metadata JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_risk_audit_logs_portfolio_event_timestamp
		ON risk_audit_logs (portfolio_id, event_type, timestamp DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_risk_audit_logs_user_id
		ON risk_audit_logs (user_id) WHERE user_id <> ''`,
	`CREATE TABLE IF NOT EXISTS asset_returns (
		symbol VARCHAR(10) NOT NULL,
		trade_date DATE NOT NULL,
		daily_return DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (symbol, trade_date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_asset_returns_trade_date ON asset_returns (trade_date DESC)`,
}

// Migrate creates the audit and market data tables when missing
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	return nil
}
