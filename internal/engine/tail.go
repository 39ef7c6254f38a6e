package engine

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

// tailEstimator returns VaR and expected shortfall at confidence c, as
// fractions of portfolio value. Positive numbers are losses.
type tailEstimator interface {
	tail(c float64) (valueAtRisk, shortfall float64)
}

// empirical reads the tail of a sorted sample of horizon returns.
type empirical struct {
	sorted []float64
	scale  float64
}

func newEmpirical(sample []float64, scale float64) empirical {
	sorted := append([]float64(nil), sample...)
	sort.Float64s(sorted)
	return empirical{sorted: sorted, scale: scale}
}

// newHistorical scales one-day historical losses by the square root of the horizon.
func newHistorical(daily []float64, horizon int) empirical {
	return newEmpirical(daily, math.Sqrt(float64(horizon)))
}

func (e empirical) tail(c float64) (float64, float64) {
	n := len(e.sorted)
	if n == 0 {
		return 0, 0
	}
	k := int(math.Floor((1-c)*float64(n) + 1e-9))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	sum := 0.0
	for _, r := range e.sorted[:k] {
		sum += r
	}
	return -e.sorted[k-1] * e.scale, -(sum / float64(k)) * e.scale
}

// parametric assumes normally distributed returns with the sample moments.
type parametric struct {
	mean    float64
	std     float64
	horizon int
}

func (p parametric) tail(c float64) (float64, float64) {
	h := float64(p.horizon)
	mu := p.mean * h
	sigma := p.std * math.Sqrt(h)
	alpha := 1 - c
	z := distuv.UnitNormal.Quantile(alpha)
	valueAtRisk := -(mu + z*sigma)
	shortfall := -(mu - sigma*distuv.UnitNormal.Prob(z)/alpha)
	return valueAtRisk, shortfall
}
