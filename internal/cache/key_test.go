package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	params := portfolio.DefaultRiskParameters()

	k1 := DeriveKey("pf-1", params)
	k2 := DeriveKey("pf-1", params)

	assert.Equal(t, k1, k2)
	assert.True(t, strings.HasPrefix(k1, KeyPrefix))
	assert.Len(t, strings.TrimPrefix(k1, KeyPrefix), 64)
}

func TestDeriveKey_SensitiveToEveryParameter(t *testing.T) {
	base := portfolio.DefaultRiskParameters()
	baseKey := DeriveKey("pf-1", base)

	variants := map[string]func(p *portfolio.RiskParameters){
		"confidence":  func(p *portfolio.RiskParameters) { p.ConfidenceLevel = 0.99 },
		"horizon":     func(p *portfolio.RiskParameters) { p.TimeHorizon = 10 },
		"method":      func(p *portfolio.RiskParameters) { p.Method = portfolio.MethodHistorical },
		"simulations": func(p *portfolio.RiskParameters) { p.NumSimulations = 20000 },
		"risk free":   func(p *portfolio.RiskParameters) { p.RiskFreeRate = 0.03 },
	}

	seen := map[string]string{baseKey: "base"}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			params := base
			mutate(&params)
			key := DeriveKey("pf-1", params)

			assert.NotEqual(t, baseKey, key)
			_, dup := seen[key]
			assert.False(t, dup, "key collision with %s", seen[key])
			seen[key] = name
		})
	}

	assert.NotEqual(t, baseKey, DeriveKey("pf-2", base))
}

func TestDeriveKey_DistinguishesSubMicroDifferences(t *testing.T) {
	a := portfolio.DefaultRiskParameters()

	b := a
	b.ConfidenceLevel = 0.9500004
	c := a
	c.RiskFreeRate = 0.0200004

	assert.NotEqual(t, DeriveKey("P1", a), DeriveKey("P1", b))
	assert.NotEqual(t, DeriveKey("P1", a), DeriveKey("P1", c))
	assert.NotEqual(t, DeriveKey("P1", b), DeriveKey("P1", c))
}

func TestDeriveKey_EqualValuesShareKey(t *testing.T) {
	a := portfolio.DefaultRiskParameters()
	b := a
	b.ConfidenceLevel = 0.950
	b.RiskFreeRate = 2e-2

	assert.Equal(t, DeriveKey("P1", a), DeriveKey("P1", b))
}

func TestCanonicalFloat(t *testing.T) {
	assert.Equal(t, "0.95", canonicalFloat(0.95))
	assert.Equal(t, "0.9500004", canonicalFloat(0.9500004))
	assert.Equal(t, "0.0000001", canonicalFloat(1e-7))
	assert.Equal(t, "600000.1", canonicalFloat(600_000.10))
}

func TestDeriveKey_SeparatorsInIDDoNotCollide(t *testing.T) {
	params := portfolio.DefaultRiskParameters()
	assert.NotEqual(t,
		DeriveKey(`pf";method="historical`, params),
		DeriveKey("pf", params),
	)
}

func validated(positions ...portfolio.Position) *portfolio.ValidatedPortfolio {
	return &portfolio.ValidatedPortfolio{ID: "pf-1", BaseCurrency: "USD", Positions: positions}
}

func TestDeriveContentKey(t *testing.T) {
	params := portfolio.DefaultRiskParameters()
	mv := 1000.0

	original := validated(
		portfolio.Position{Symbol: "AAPL", Weight: 0.6},
		portfolio.Position{Symbol: "MSFT", Weight: 0.4},
	)
	reordered := validated(
		portfolio.Position{Symbol: "MSFT", Weight: 0.4},
		portfolio.Position{Symbol: "AAPL", Weight: 0.6},
	)
	reweighted := validated(
		portfolio.Position{Symbol: "AAPL", Weight: 0.5},
		portfolio.Position{Symbol: "MSFT", Weight: 0.5},
	)
	valued := validated(
		portfolio.Position{Symbol: "AAPL", Weight: 0.6, MarketValue: &mv},
		portfolio.Position{Symbol: "MSFT", Weight: 0.4},
	)

	key := DeriveContentKey(original, params)

	assert.Equal(t, key, DeriveContentKey(reordered, params), "position order must not matter")
	assert.NotEqual(t, key, DeriveContentKey(reweighted, params))
	assert.NotEqual(t, key, DeriveContentKey(valued, params))

	nudged := validated(
		portfolio.Position{Symbol: "AAPL", Weight: 0.6000004},
		portfolio.Position{Symbol: "MSFT", Weight: 0.3999996},
	)
	assert.NotEqual(t, key, DeriveContentKey(nudged, params))
	assert.NotEqual(t, key, DeriveKey("pf-1", params))

	eur := validated(original.Positions...)
	eur.BaseCurrency = "EUR"
	assert.NotEqual(t, key, DeriveContentKey(eur, params))
}
