package marketdata

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
)

const (
	syntheticName  = "synthetic"
	syntheticSeed  = 0x5eed_0f_4a11
	marketDailyVol = 0.011
	marketDrift    = 0.0003
)

// assetProfile is the one-factor model of a single symbol.
type assetProfile struct {
	seed     uint64
	beta     float64
	idioVol  float64
	alphaDay float64
}

// Synthetic generates deterministic returns from a one-factor market model.
// Every symbol gets stable parameters derived from its name, so the same
// request always sees the same history.
type Synthetic struct {
	// Unknown lists symbols the source refuses, for exercising error paths.
	Unknown map[string]bool
}

// NewSynthetic creates a synthetic returns source.
func NewSynthetic() *Synthetic {
	return &Synthetic{Unknown: map[string]bool{}}
}

// Name implements ReturnsSource.
func (s *Synthetic) Name() string { return syntheticName }

// DailyReturns implements ReturnsSource.
func (s *Synthetic) DailyReturns(ctx context.Context, symbols []string, lookback int) (*ReturnSeries, error) {
	if lookback <= 0 {
		return nil, ErrInsufficientHistory
	}
	profiles := make([]assetProfile, len(symbols))
	for i, sym := range symbols {
		if s.Unknown[sym] {
			return nil, &SymbolError{Symbol: sym}
		}
		profiles[i] = profileFor(sym)
	}

	market := rand.New(rand.NewPCG(syntheticSeed, uint64(lookback)))
	idio := make([]*rand.Rand, len(profiles))
	for i, p := range profiles {
		idio[i] = rand.New(rand.NewPCG(p.seed, uint64(lookback)))
	}

	out := &ReturnSeries{
		Symbols: append([]string(nil), symbols...),
		Returns: make([][]float64, lookback),
	}
	for t := 0; t < lookback; t++ {
		if t%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		m := marketDrift + marketDailyVol*market.NormFloat64()
		row := make([]float64, len(profiles))
		for i, p := range profiles {
			r := p.alphaDay + p.beta*m + p.idioVol*idio[i].NormFloat64()
			row[i] = math.Max(r, -0.95)
		}
		out.Returns[t] = row
	}
	return out, nil
}

func profileFor(symbol string) assetProfile {
	h := fnv.New64a()
	_, _ = h.Write([]byte(symbol))
	seed := h.Sum64()

	r := rand.New(rand.NewPCG(seed, seed>>17))
	return assetProfile{
		seed:     seed,
		beta:     0.6 + 0.8*r.Float64(),
		idioVol:  0.008 + 0.017*r.Float64(),
		alphaDay: (r.Float64() - 0.5) * 0.0004,
	}
}
