package engine

import (
	"context"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"strconv"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
)

const (
	maxGradientIterations = 20000
	maxParityIterations   = 5000
	annealingSteps        = 20000
	annealingStartTemp    = 0.05
	annealingEndTemp      = 1e-7
	convergenceTolerance  = 1e-10
	constraintTolerance   = 1e-6
	projectionIterations  = 200
	contextCheckInterval  = 256
)

// objective is the mean-variance utility over annualised inputs.
type objective struct {
	mu       []float64
	cov      *mat.SymDense
	aversion float64
	lo, hi   float64
}

func (o objective) value(w []float64) float64 {
	x := mat.NewVecDense(len(w), w)
	return mat.Dot(mat.NewVecDense(len(o.mu), o.mu), x) - 0.5*o.aversion*mat.Inner(x, o.cov, x)
}

func (o objective) variance(w []float64) float64 {
	x := mat.NewVecDense(len(w), w)
	return mat.Inner(x, o.cov, x)
}

// Optimize computes target weights for req using the annualised covariance
// of historical returns.
func (e *Engine) Optimize(ctx context.Context, req portfolio.OptimizationRequest) (*risk.Allocation, error) {
	const op = "engine.Optimize"

	series, err := e.loadReturns(ctx, req.Symbols, op)
	if err != nil {
		return nil, err
	}

	n := len(req.Symbols)
	data := mat.NewDense(series.Observations(), n, nil)
	for t, row := range series.Returns {
		data.SetRow(t, row)
	}
	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, data, nil)
	cov.ScaleSym(tradingDaysPerYear, cov)

	bounds := req.WeightBounds()
	obj := objective{mu: req.ExpectedReturns, cov: cov, aversion: req.RiskAversion, lo: bounds.MinWeight, hi: bounds.MaxWeight}

	var (
		weights    []float64
		iterations int
		converged  bool
	)
	switch req.Method {
	case portfolio.OptimizationClassicalMV:
		weights, iterations, converged, err = meanVariance(ctx, obj)
	case portfolio.OptimizationRiskParity:
		weights, iterations, converged, err = riskParity(ctx, obj)
	case portfolio.OptimizationQuantumInspired:
		weights, iterations, converged, err = anneal(ctx, obj, optimizationSeed(req))
	default:
		return nil, risk.NewComputationError(risk.ErrUnsupportedMethod, "unsupported optimization method", op).
			WithDetails("method", string(req.Method))
	}
	if err != nil {
		return nil, risk.Normalize(err, op)
	}

	expected := 0.0
	for i, w := range weights {
		expected += w * obj.mu[i]
	}
	vol := math.Sqrt(math.Max(obj.variance(weights), 0))
	sharpeRatio := 0.0
	if vol > 0 {
		sharpeRatio = (expected - req.RiskFree()) / vol
	}

	out := &risk.Allocation{
		Weights:              make([]float64, n),
		ExpectedReturn:       ratio(expected),
		Volatility:           ratio(vol),
		SharpeRatio:          ratio(sharpeRatio),
		Convergence:          risk.ConvergenceInfo{Success: converged, Iterations: iterations},
		ConstraintsSatisfied: satisfies(weights, obj.lo, obj.hi),
	}
	for i, w := range weights {
		out.Weights[i] = ratio(w)
	}

	e.logger.Debug("portfolio optimised",
		zap.String("method", string(req.Method)),
		zap.Int("assets", n),
		zap.Int("iterations", iterations),
		zap.Bool("converged", converged))

	return out, nil
}

// meanVariance maximises the utility by projected gradient ascent.
func meanVariance(ctx context.Context, o objective) ([]float64, int, bool, error) {
	n := len(o.mu)
	step := 1 / (o.aversion*mat.Trace(o.cov) + 1e-12)

	w := project(uniform(n), o.lo, o.hi)
	grad := mat.NewVecDense(n, nil)
	for it := 1; it <= maxGradientIterations; it++ {
		if it%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, it, false, err
			}
		}

		grad.MulVec(o.cov, mat.NewVecDense(n, w))
		next := make([]float64, n)
		for i := range w {
			next[i] = w[i] + step*(o.mu[i]-o.aversion*grad.AtVec(i))
		}
		next = project(next, o.lo, o.hi)

		delta := maxAbsDiff(w, next)
		w = next
		if delta < convergenceTolerance {
			return w, it, true, nil
		}
	}
	return w, maxGradientIterations, false, nil
}

// riskParity equalises each asset's contribution to portfolio variance.
func riskParity(ctx context.Context, o objective) ([]float64, int, bool, error) {
	n := len(o.mu)
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / math.Sqrt(math.Max(o.cov.At(i, i), 1e-18))
	}
	w = project(scaleToOne(w), o.lo, o.hi)

	marginal := mat.NewVecDense(n, nil)
	target := 1 / float64(n)
	for it := 1; it <= maxParityIterations; it++ {
		if it%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, it, false, err
			}
		}

		marginal.MulVec(o.cov, mat.NewVecDense(n, w))
		total := 0.0
		for i := range w {
			total += w[i] * marginal.AtVec(i)
		}
		if total <= 0 {
			return w, it, false, nil
		}

		worst := 0.0
		next := make([]float64, n)
		for i := range w {
			share := w[i] * marginal.AtVec(i) / total
			worst = math.Max(worst, math.Abs(share-target))
			if share <= 0 {
				next[i] = w[i]
				continue
			}
			next[i] = w[i] * math.Sqrt(target/share)
		}
		if worst < 1e-8 {
			return w, it, true, nil
		}
		next = project(scaleToOne(next), o.lo, o.hi)
		if maxAbsDiff(w, next) < convergenceTolerance {
			return next, it, true, nil
		}
		w = next
	}
	return w, maxParityIterations, false, nil
}

// anneal searches the utility surface with simulated annealing. Moves
// transfer weight between two assets so every state stays feasible.
func anneal(ctx context.Context, o objective, seed uint64) ([]float64, int, bool, error) {
	n := len(o.mu)
	rng := rand.New(rand.NewPCG(seed, seed>>7|1))

	current := project(uniform(n), o.lo, o.hi)
	currentValue := o.value(current)
	best := append([]float64(nil), current...)
	bestValue := currentValue

	cooling := math.Pow(annealingEndTemp/annealingStartTemp, 1/float64(annealingSteps))
	temp := annealingStartTemp
	for step := 1; step <= annealingSteps; step++ {
		if step%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, step, false, err
			}
		}

		i, j := rng.IntN(n), rng.IntN(n)
		if i == j {
			temp *= cooling
			continue
		}
		room := math.Min(current[i]-o.lo, o.hi-current[j])
		if room <= 0 {
			temp *= cooling
			continue
		}
		scale := math.Min(1, 10*math.Sqrt(temp))
		delta := room * scale * rng.Float64()

		current[i] -= delta
		current[j] += delta
		candidate := o.value(current)
		if diff := candidate - currentValue; diff >= 0 || rng.Float64() < math.Exp(diff/temp) {
			currentValue = candidate
			if candidate > bestValue {
				bestValue = candidate
				copy(best, current)
			}
		} else {
			current[i] += delta
			current[j] -= delta
		}
		temp *= cooling
	}
	return best, annealingSteps, true, nil
}

// project maps v onto {w : sum(w) = 1, lo <= w_i <= hi} by bisection on the shift.
func project(v []float64, lo, hi float64) []float64 {
	lowShift, highShift := math.Inf(1), math.Inf(-1)
	for _, x := range v {
		lowShift = math.Min(lowShift, x-hi)
		highShift = math.Max(highShift, x-lo)
	}

	out := make([]float64, len(v))
	apply := func(shift float64) float64 {
		sum := 0.0
		for i, x := range v {
			out[i] = math.Min(hi, math.Max(lo, x-shift))
			sum += out[i]
		}
		return sum
	}
	for it := 0; it < projectionIterations; it++ {
		mid := (lowShift + highShift) / 2
		if apply(mid) > 1 {
			lowShift = mid
		} else {
			highShift = mid
		}
	}
	apply((lowShift + highShift) / 2)
	return out
}

func satisfies(w []float64, lo, hi float64) bool {
	sum := 0.0
	for _, x := range w {
		if x < lo-constraintTolerance || x > hi+constraintTolerance {
			return false
		}
		sum += x
	}
	return math.Abs(sum-1) <= constraintTolerance
}

func uniform(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1 / float64(n)
	}
	return w
}

func scaleToOne(w []float64) []float64 {
	sum := 0.0
	for _, x := range w {
		sum += x
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}

func maxAbsDiff(a, b []float64) float64 {
	d := 0.0
	for i := range a {
		d = math.Max(d, math.Abs(a[i]-b[i]))
	}
	return d
}

func optimizationSeed(req portfolio.OptimizationRequest) uint64 {
	h := fnv.New64a()
	for i, sym := range req.Symbols {
		_, _ = h.Write([]byte(sym))
		_, _ = h.Write([]byte(strconv.FormatFloat(req.ExpectedReturns[i], 'g', -1, 64)))
	}
	_, _ = h.Write([]byte(strconv.FormatFloat(req.RiskAversion, 'g', -1, 64)))
	return h.Sum64()
}
