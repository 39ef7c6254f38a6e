package cache

import (
	"encoding/hex"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/blake2b"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
)

// KeyPrefix namespaces result keys; the version segment changes whenever the
// canonical encoding changes so old keys are never read back.
const KeyPrefix = "qrisk:var:v2:"

// DeriveKey returns the cache key for a portfolio id and parameter set.
// Keys depend only on values, never on field order or map iteration.
func DeriveKey(portfolioID string, params portfolio.RiskParameters) string {
	return hashFields(baseFields(portfolioID, params))
}

// DeriveContentKey extends DeriveKey with a fingerprint of the positions, so
// a changed portfolio under the same id never reads a stale entry.
func DeriveContentKey(p *portfolio.ValidatedPortfolio, params portfolio.RiskParameters) string {
	fields := baseFields(p.ID, params)
	fields["base_currency"] = p.BaseCurrency
	fields["positions"] = positionsFingerprint(p.Positions)
	return hashFields(fields)
}

func baseFields(portfolioID string, params portfolio.RiskParameters) map[string]string {
	return map[string]string{
		"portfolio_id":     portfolioID,
		"confidence_level": canonicalFloat(params.ConfidenceLevel),
		"time_horizon":     strconv.Itoa(params.TimeHorizon),
		"method":           string(params.Method),
		"num_simulations":  strconv.Itoa(params.NumSimulations),
		"risk_free_rate":   canonicalFloat(params.RiskFreeRate),
	}
}

func positionsFingerprint(positions []portfolio.Position) string {
	legs := make([]string, len(positions))
	for i, p := range positions {
		mv := "-"
		if p.MarketValue != nil {
			mv = canonicalFloat(*p.MarketValue)
		}
		legs[i] = p.Symbol + ":" + canonicalFloat(p.Weight) + ":" + mv
	}
	sort.Strings(legs)
	return strings.Join(legs, ",")
}

// canonical renders fields as sorted name=value pairs with quoted values.
func canonical(fields map[string]string) string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte(';')
		}
		b.WriteString(name)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(fields[name]))
	}
	return b.String()
}

func hashFields(fields map[string]string) string {
	sum := blake2b.Sum256([]byte(canonical(fields)))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

// canonicalFloat renders the shortest decimal that round-trips to v, without
// exponent. Distinct floats never share a rendering.
func canonicalFloat(v float64) string {
	return decimal.NewFromFloat(v).String()
}
