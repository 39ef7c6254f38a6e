package engine

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
	"github.com/victoralfred/qrisk/internal/marketdata"
)

const (
	simulationBatch = 1024
	shrinkage       = 0.1
	diagonalJitter  = 1e-12
)

// simulation draws correlated horizon log returns from a multivariate
// normal fitted to the history (geometric Brownian motion per asset).
type simulation struct {
	weights    []float64
	horizon    int
	paths      int
	antithetic bool
	seed       uint64
}

func (s simulation) run(ctx context.Context, series *marketdata.ReturnSeries) (tailEstimator, error) {
	const op = "engine.simulate"

	n := len(s.weights)
	logReturns := mat.NewDense(series.Observations(), n, nil)
	for t, row := range series.Returns {
		for i, r := range row {
			logReturns.Set(t, i, math.Log1p(r))
		}
	}

	drift := make([]float64, n)
	for i := range drift {
		drift[i] = stat.Mean(mat.Col(nil, i, logReturns), nil)
	}
	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, logReturns, nil)

	chol, ok := factorize(&cov)
	if !ok {
		return nil, risk.NewComputationError(risk.ErrNumericalInstability, "covariance matrix is not positive definite", op)
	}
	var lower mat.TriDense
	chol.LTo(&lower)

	h := float64(s.horizon)
	sqrtH := math.Sqrt(h)
	rng := rand.New(rand.NewPCG(s.seed, s.seed^0x9e3779b97f4a7c15))

	sample := make([]float64, 0, s.paths)
	z := mat.NewDense(simulationBatch, n, nil)
	var shocks mat.Dense

	for len(sample) < s.paths {
		if err := ctx.Err(); err != nil {
			return nil, risk.FromContext(err, op)
		}

		draws := simulationBatch
		perDraw := 1
		if s.antithetic {
			perDraw = 2
		}
		if remaining := (s.paths - len(sample) + perDraw - 1) / perDraw; remaining < draws {
			draws = remaining
		}

		batch := z.Slice(0, draws, 0, n).(*mat.Dense)
		for r := 0; r < draws; r++ {
			for c := 0; c < n; c++ {
				batch.Set(r, c, rng.NormFloat64())
			}
		}
		shocks.Reset()
		shocks.Mul(batch, lower.T())

		for r := 0; r < draws && len(sample) < s.paths; r++ {
			sample = append(sample, s.portfolioReturn(shocks.RawRowView(r), drift, h, sqrtH, 1))
			if s.antithetic && len(sample) < s.paths {
				sample = append(sample, s.portfolioReturn(shocks.RawRowView(r), drift, h, sqrtH, -1))
			}
		}
	}

	return newEmpirical(sample, 1), nil
}

func (s simulation) portfolioReturn(shock, drift []float64, h, sqrtH, sign float64) float64 {
	r := 0.0
	for i, w := range s.weights {
		r += w * math.Expm1(drift[i]*h+sign*sqrtH*shock[i])
	}
	return r
}

// factorize returns the Cholesky factor of cov, shrinking it toward its
// diagonal once if the sample matrix is not positive definite.
func factorize(cov *mat.SymDense) (*mat.Cholesky, bool) {
	var chol mat.Cholesky
	if chol.Factorize(cov) {
		return &chol, true
	}

	n := cov.SymmetricDim()
	shrunk := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := (1 - shrinkage) * cov.At(i, j)
			if i == j {
				v = cov.At(i, i) + diagonalJitter
			}
			shrunk.SetSym(i, j, v)
		}
	}
	if chol.Factorize(shrunk) {
		return &chol, true
	}
	return nil, false
}

// seedFor derives the simulation seed from the inputs so identical
// requests produce identical metrics.
func seedFor(positions []portfolio.Position, params portfolio.RiskParameters) uint64 {
	h := fnv.New64a()
	write := func(s string) {
		_, _ = h.Write([]byte(s))
		_, _ = h.Write([]byte{0})
	}
	for _, p := range positions {
		write(p.Symbol)
		write(strconv.FormatFloat(p.Weight, 'g', -1, 64))
	}
	write(strconv.FormatFloat(params.ConfidenceLevel, 'g', -1, 64))
	write(strconv.Itoa(params.TimeHorizon))
	write(string(params.Method))
	write(strconv.Itoa(params.NumSimulations))
	return h.Sum64()
}
