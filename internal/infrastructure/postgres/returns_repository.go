package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victoralfred/qrisk/internal/marketdata"
)

const returnsSourceName = "postgres"

// DailyReturn is one stored observation.
type DailyReturn struct {
	Date   time.Time
	Return float64
}

// ReturnsRepository reads historical daily returns from asset_returns.
// It implements marketdata.ReturnsSource.
type ReturnsRepository struct {
	db *pgxpool.Pool
}

func NewReturnsRepository(db *pgxpool.Pool) *ReturnsRepository {
	return &ReturnsRepository{db: db}
}

// Name implements marketdata.ReturnsSource.
func (r *ReturnsRepository) Name() string { return returnsSourceName }

// DailyReturns returns the most recent lookback trading days on which every
// symbol has an observation, oldest first.
func (r *ReturnsRepository) DailyReturns(ctx context.Context, symbols []string, lookback int) (*marketdata.ReturnSeries, error) {
	if lookback <= 0 || len(symbols) == 0 {
		return nil, marketdata.ErrInsufficientHistory
	}
	if err := r.checkKnown(ctx, symbols); err != nil {
		return nil, err
	}

	query := `
		SELECT trade_date, symbol, daily_return
		FROM asset_returns
		WHERE symbol = ANY($1) AND trade_date IN (
			SELECT trade_date
			FROM asset_returns
			WHERE symbol = ANY($1)
			GROUP BY trade_date
			HAVING COUNT(DISTINCT symbol) = $2
			ORDER BY trade_date DESC
			LIMIT $3
		)
		ORDER BY trade_date ASC
	`

	rows, err := r.db.Query(ctx, query, symbols, len(symbols), lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset returns: %w", err)
	}
	defer rows.Close()

	column := make(map[string]int, len(symbols))
	for i, s := range symbols {
		column[s] = i
	}

	series := &marketdata.ReturnSeries{Symbols: append([]string(nil), symbols...)}
	var (
		current time.Time
		row     []float64
	)
	for rows.Next() {
		var (
			date   time.Time
			symbol string
			value  float64
		)
		if err := rows.Scan(&date, &symbol, &value); err != nil {
			return nil, fmt.Errorf("failed to scan asset return: %w", err)
		}
		if row == nil || !date.Equal(current) {
			row = make([]float64, len(symbols))
			series.Returns = append(series.Returns, row)
			current = date
		}
		row[column[symbol]] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate asset returns: %w", err)
	}

	if series.Observations() == 0 {
		return nil, marketdata.ErrInsufficientHistory
	}
	return series, nil
}

// checkKnown reports the first symbol, in request order, with no stored history.
func (r *ReturnsRepository) checkKnown(ctx context.Context, symbols []string) error {
	rows, err := r.db.Query(ctx, `SELECT DISTINCT symbol FROM asset_returns WHERE symbol = ANY($1)`, symbols)
	if err != nil {
		return fmt.Errorf("failed to query known symbols: %w", err)
	}
	known, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to read known symbols: %w", err)
	}

	seen := make(map[string]struct{}, len(known))
	for _, s := range known {
		seen[s] = struct{}{}
	}
	for _, s := range symbols {
		if _, ok := seen[s]; !ok {
			return &marketdata.SymbolError{Symbol: s}
		}
	}
	return nil
}

// Upsert stores observations for one symbol, replacing existing days.
func (r *ReturnsRepository) Upsert(ctx context.Context, symbol string, observations []DailyReturn) error {
	batch := &pgx.Batch{}
	for _, o := range observations {
		batch.Queue(`
			INSERT INTO asset_returns (symbol, trade_date, daily_return)
			VALUES ($1, $2, $3)
			ON CONFLICT (symbol, trade_date) DO UPDATE SET daily_return = EXCLUDED.daily_return
		`, symbol, o.Date, o.Return)
	}

	if err := r.db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store returns for %s: %w", symbol, err)
	}
	return nil
}
