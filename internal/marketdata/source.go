package marketdata

import (
	"context"
	"errors"
)

var (
	ErrUnknownSymbol       = errors.New("unknown symbol")
	ErrInsufficientHistory = errors.New("insufficient return history")
)

// ReturnSeries holds aligned daily simple returns. Returns[t][i] is the
// return of Symbols[i] on observation t, oldest first.
type ReturnSeries struct {
	Symbols []string
	Returns [][]float64
}

// Observations returns the number of aligned days.
func (s *ReturnSeries) Observations() int {
	return len(s.Returns)
}

// Column returns the series of one asset.
func (s *ReturnSeries) Column(i int) []float64 {
	out := make([]float64, len(s.Returns))
	for t, row := range s.Returns {
		out[t] = row[i]
	}
	return out
}

// ReturnsSource supplies historical returns for a set of symbols.
type ReturnsSource interface {
	// DailyReturns returns up to lookback aligned observations for symbols,
	// in the order given.
	DailyReturns(ctx context.Context, symbols []string, lookback int) (*ReturnSeries, error)
	// Name identifies the source in methodology output.
	Name() string
}
