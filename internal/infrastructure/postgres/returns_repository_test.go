package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victoralfred/qrisk/internal/marketdata"
)

func day(n int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}

func TestReturnsRepository_DailyReturns(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewReturnsRepository(pool)
	ctx := context.Background()

	// AAPL trades on days 0-4, MSFT misses day 2.
	var aapl, msft []DailyReturn
	for i := 0; i < 5; i++ {
		aapl = append(aapl, DailyReturn{Date: day(i), Return: float64(i) / 100})
		if i != 2 {
			msft = append(msft, DailyReturn{Date: day(i), Return: -float64(i) / 100})
		}
	}
	require.NoError(t, repo.Upsert(ctx, "AAPL", aapl))
	require.NoError(t, repo.Upsert(ctx, "MSFT", msft))

	t.Run("aligns on common days in request order", func(t *testing.T) {
		series, err := repo.DailyReturns(ctx, []string{"MSFT", "AAPL"}, 10)
		require.NoError(t, err)

		assert.Equal(t, []string{"MSFT", "AAPL"}, series.Symbols)
		assert.Equal(t, [][]float64{
			{0, 0},
			{-0.01, 0.01},
			{-0.03, 0.03},
			{-0.04, 0.04},
		}, series.Returns)
	})

	t.Run("lookback keeps the most recent days", func(t *testing.T) {
		series, err := repo.DailyReturns(ctx, []string{"AAPL", "MSFT"}, 2)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{0.03, -0.03}, {0.04, -0.04}}, series.Returns)
	})

	t.Run("unknown symbol", func(t *testing.T) {
		_, err := repo.DailyReturns(ctx, []string{"AAPL", "ZZZZ"}, 10)

		var symErr *marketdata.SymbolError
		require.ErrorAs(t, err, &symErr)
		assert.Equal(t, "ZZZZ", symErr.Symbol)
		assert.ErrorIs(t, err, marketdata.ErrUnknownSymbol)
	})

	t.Run("upsert replaces a day", func(t *testing.T) {
		require.NoError(t, repo.Upsert(ctx, "AAPL", []DailyReturn{{Date: day(4), Return: 0.5}}))

		series, err := repo.DailyReturns(ctx, []string{"AAPL"}, 1)
		require.NoError(t, err)
		assert.Equal(t, [][]float64{{0.5}}, series.Returns)
	})

	t.Run("non-positive lookback", func(t *testing.T) {
		_, err := repo.DailyReturns(ctx, []string{"AAPL"}, 0)
		assert.ErrorIs(t, err, marketdata.ErrInsufficientHistory)
	})

	assert.Equal(t, "postgres", repo.Name())
}
