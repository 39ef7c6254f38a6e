package engine

import (
	"context"
	"errors"
	"math"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/victoralfred/qrisk/internal/domain/portfolio"
	"github.com/victoralfred/qrisk/internal/domain/risk"
	"github.com/victoralfred/qrisk/internal/marketdata"
)

const (
	tradingDaysPerYear = 252

	modelHistorical    = "historical_simulation"
	modelParametric    = "variance_covariance"
	modelMonteCarlo    = "monte_carlo_gbm"
	modelMonteCarloAnt = "monte_carlo_gbm_antithetic"

	varianceReductionAntithetic = "antithetic_variates"
)

// Reporting tiers computed for every request in addition to the requested level.
var reportingLevels = [2]float64{0.95, 0.99}

// Config tunes the engine.
type Config struct {
	LookbackDays    int
	MinObservations int
	DefaultNotional float64
}

// Engine computes risk metrics from historical daily returns. It implements risk.Provider.
type Engine struct {
	source marketdata.ReturnsSource
	cfg    Config
	logger *zap.Logger
}

// New creates an engine reading returns from source.
func New(source marketdata.ReturnsSource, cfg Config, logger *zap.Logger) *Engine {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = tradingDaysPerYear
	}
	if cfg.MinObservations <= 0 {
		cfg.MinObservations = 30
	}
	if cfg.DefaultNotional <= 0 {
		cfg.DefaultNotional = 1_000_000
	}
	return &Engine{source: source, cfg: cfg, logger: logger}
}

// SourceName returns the name of the returns source.
func (e *Engine) SourceName() string {
	return e.source.Name()
}

// Compute implements risk.Provider.
func (e *Engine) Compute(ctx context.Context, p *portfolio.ValidatedPortfolio, params portfolio.RiskParameters) (*risk.Result, error) {
	const op = "engine.Compute"

	positions := sortedPositions(p.Positions)
	symbols := make([]string, len(positions))
	raw := make([]float64, len(positions))
	for i, pos := range positions {
		symbols[i] = pos.Symbol
		raw[i] = pos.Weight
	}
	weights, err := normalize(raw)
	if err != nil {
		return nil, risk.NewComputationError(risk.ErrCalculationFailed, "portfolio has no exposure", op).WithCause(err)
	}

	series, err := e.loadReturns(ctx, symbols, op)
	if err != nil {
		return nil, err
	}

	daily := portfolioReturns(series, weights)
	mean, std := stat.MeanStdDev(daily, nil)
	if math.IsNaN(mean) || math.IsNaN(std) {
		return nil, risk.NewComputationError(risk.ErrNumericalInstability, "return statistics are undefined", op)
	}

	var estimator tailEstimator
	methodology := risk.Methodology{
		ConfidenceLevel: params.ConfidenceLevel,
		TimeHorizonDays: params.TimeHorizon,
		RiskFreeRate:    params.RiskFreeRate,
		Observations:    series.Observations(),
		DataSource:      e.source.Name(),
	}

	switch params.Method {
	case portfolio.MethodHistorical:
		methodology.ModelType = modelHistorical
		estimator = newHistorical(daily, params.TimeHorizon)
	case portfolio.MethodParametric:
		methodology.ModelType = modelParametric
		estimator = parametric{mean: mean, std: std, horizon: params.TimeHorizon}
	case portfolio.MethodMonteCarlo, portfolio.MethodQuantumMC:
		antithetic := params.Method == portfolio.MethodQuantumMC
		methodology.ModelType = modelMonteCarlo
		methodology.SimulationPaths = params.NumSimulations
		if antithetic {
			methodology.ModelType = modelMonteCarloAnt
			methodology.VarianceReduction = varianceReductionAntithetic
		}
		sim := simulation{
			weights:    weights,
			horizon:    params.TimeHorizon,
			paths:      params.NumSimulations,
			antithetic: antithetic,
			seed:       seedFor(positions, params),
		}
		estimator, err = sim.run(ctx, series)
		if err != nil {
			return nil, risk.Normalize(err, op)
		}
	default:
		return nil, risk.NewComputationError(risk.ErrUnsupportedMethod, "unsupported calculation method", op).
			WithDetails("method", string(params.Method))
	}

	notional := e.cfg.DefaultNotional
	if p.HasMarketValue() {
		notional = p.MarketValue
	}

	var95, cvar95 := estimator.tail(reportingLevels[0])
	var99, cvar99 := estimator.tail(reportingLevels[1])
	varC, cvarC := estimator.tail(params.ConfidenceLevel)
	drawdown := maxDrawdown(daily)
	volAnnual := std * math.Sqrt(tradingDaysPerYear)

	metrics := risk.Metrics{
		VaR95:             money(lossAmount(var95, notional)),
		VaR99:             money(lossAmount(var99, notional)),
		CVaR95:            money(lossAmount(cvar95, notional)),
		CVaR99:            money(lossAmount(cvar99, notional)),
		VaRAtConfidence:   money(lossAmount(varC, notional)),
		CVaRAtConfidence:  money(lossAmount(cvarC, notional)),
		VolatilityDaily:   ratio(std),
		VolatilityAnnual:  ratio(volAnnual),
		SharpeRatio:       ratio(sharpe(mean, volAnnual, params.RiskFreeRate)),
		MaxDrawdown:       ratio(drawdown),
		MaxDrawdownAmount: money(drawdown * notional),
		PortfolioValue:    money(notional),
		Currency:          p.BaseCurrency,
	}

	e.logger.Debug("risk metrics computed",
		zap.String("portfolio_id", p.ID),
		zap.String("model", methodology.ModelType),
		zap.Int("observations", series.Observations()),
		zap.Float64("var_95", metrics.VaR95))

	return &risk.Result{Metrics: metrics, Methodology: methodology}, nil
}

func (e *Engine) loadReturns(ctx context.Context, symbols []string, op string) (*marketdata.ReturnSeries, error) {
	series, err := e.source.DailyReturns(ctx, symbols, e.cfg.LookbackDays)
	if err != nil {
		var symErr *marketdata.SymbolError
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return nil, risk.FromContext(err, op)
		case errors.As(err, &symErr):
			return nil, risk.NewComputationError(risk.ErrUnknownSymbol, "no market data for symbol", op).
				WithDetails("symbol", symErr.Symbol).WithCause(err)
		case errors.Is(err, marketdata.ErrUnknownSymbol):
			return nil, risk.NewComputationError(risk.ErrUnknownSymbol, "no market data for symbol", op).WithCause(err)
		case errors.Is(err, marketdata.ErrInsufficientHistory):
			return nil, risk.NewComputationError(risk.ErrInsufficientData, "insufficient historical data", op).WithCause(err)
		default:
			return nil, risk.NewComputationError(risk.ErrMarketDataUnavailable, "market data unavailable", op).WithCause(err)
		}
	}

	if series.Observations() < e.cfg.MinObservations {
		return nil, risk.NewComputationError(risk.ErrInsufficientData, "insufficient historical data", op).
			WithDetails("observations", series.Observations()).
			WithDetails("required", e.cfg.MinObservations)
	}
	return series, nil
}

func sortedPositions(in []portfolio.Position) []portfolio.Position {
	out := append([]portfolio.Position(nil), in...)
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

var errZeroExposure = errors.New("weights sum to zero")

func normalize(weights []float64) ([]float64, error) {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	if sum <= 0 {
		return nil, errZeroExposure
	}
	out := make([]float64, len(weights))
	for i, w := range weights {
		out[i] = w / sum
	}
	return out, nil
}

func portfolioReturns(series *marketdata.ReturnSeries, weights []float64) []float64 {
	out := make([]float64, series.Observations())
	for t, row := range series.Returns {
		r := 0.0
		for i, w := range weights {
			r += w * row[i]
		}
		out[t] = r
	}
	return out
}

func sharpe(dailyMean, volAnnual, riskFree float64) float64 {
	if volAnnual == 0 {
		return 0
	}
	return (dailyMean*tradingDaysPerYear - riskFree) / volAnnual
}

// maxDrawdown returns the largest peak-to-trough fall of the wealth path as a fraction.
func maxDrawdown(returns []float64) float64 {
	wealth, peak, worst := 1.0, 1.0, 0.0
	for _, r := range returns {
		wealth *= 1 + r
		if wealth > peak {
			peak = wealth
		}
		if dd := (peak - wealth) / peak; dd > worst {
			worst = dd
		}
	}
	return worst
}

func lossAmount(lossFraction, notional float64) float64 {
	if lossFraction < 0 || math.IsNaN(lossFraction) {
		return 0
	}
	return lossFraction * notional
}
