package portfolio

import "encoding/json"

// Method selects the risk model used for a calculation.
type Method string

const (
	MethodHistorical Method = "historical"
	MethodParametric Method = "parametric"
	MethodMonteCarlo Method = "monte_carlo"
	MethodQuantumMC  Method = "quantum_mc"
)

// Defaults applied when a request omits a risk parameter.
const (
	DefaultConfidenceLevel = 0.95
	DefaultTimeHorizon     = 1
	DefaultMethod          = MethodQuantumMC
	DefaultNumSimulations  = 10000
	DefaultRiskFreeRate    = 0.02
	DefaultBaseCurrency    = "USD"

	MaxPositions = 500
)

// Position is a single holding in a portfolio definition.
type Position struct {
	Symbol      string   `json:"symbol" validate:"required,ticker"`
	Weight      float64  `json:"weight" validate:"gte=0,lte=1"`
	MarketValue *float64 `json:"market_value,omitempty" validate:"omitempty,gt=0"`
	Quantity    *float64 `json:"quantity,omitempty"`

	// weightMissing is set when a decoded position had no weight member.
	weightMissing bool
}

// UnmarshalJSON records whether the weight member was present, since a
// missing weight and an explicit zero decode to the same value.
func (p *Position) UnmarshalJSON(data []byte) error {
	type plain Position
	aux := struct {
		*plain
		Weight *float64 `json:"weight"`
	}{plain: (*plain)(p)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.weightMissing = aux.Weight == nil
	if aux.Weight != nil {
		p.Weight = *aux.Weight
	}
	return nil
}

// Definition is the caller-supplied portfolio.
type Definition struct {
	ID           string     `json:"portfolio_id" validate:"required,max=128"`
	Name         string     `json:"name" validate:"max=256"`
	Positions    []Position `json:"positions" validate:"min=1,max=500,dive"`
	BaseCurrency string     `json:"base_currency" validate:"omitempty,len=3,alpha,uppercase"`
}

// RiskParameters configure a calculation. Values are immutable once built.
type RiskParameters struct {
	ConfidenceLevel float64 `json:"confidence_level" validate:"gte=0.9,lte=0.999"`
	TimeHorizon     int     `json:"time_horizon" validate:"gte=1,lte=252"`
	Method          Method  `json:"method" validate:"oneof=historical parametric monte_carlo quantum_mc"`
	NumSimulations  int     `json:"num_simulations" validate:"gte=1000,lte=100000"`
	RiskFreeRate    float64 `json:"risk_free_rate" validate:"gte=0,lte=0.1"`
}

// DefaultRiskParameters returns the parameters used when a request supplies none.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		ConfidenceLevel: DefaultConfidenceLevel,
		TimeHorizon:     DefaultTimeHorizon,
		Method:          DefaultMethod,
		NumSimulations:  DefaultNumSimulations,
		RiskFreeRate:    DefaultRiskFreeRate,
	}
}

// ParameterOverrides carries optional request values; nil fields fall back to defaults.
type ParameterOverrides struct {
	ConfidenceLevel *float64 `json:"confidence_level"`
	TimeHorizon     *int     `json:"time_horizon"`
	Method          *string  `json:"method"`
	NumSimulations  *int     `json:"num_simulations"`
	RiskFreeRate    *float64 `json:"risk_free_rate"`
}

// Resolve merges the overrides onto the defaults.
func (o *ParameterOverrides) Resolve() RiskParameters {
	params := DefaultRiskParameters()
	if o == nil {
		return params
	}
	if o.ConfidenceLevel != nil {
		params.ConfidenceLevel = *o.ConfidenceLevel
	}
	if o.TimeHorizon != nil {
		params.TimeHorizon = *o.TimeHorizon
	}
	if o.Method != nil {
		params.Method = Method(*o.Method)
	}
	if o.NumSimulations != nil {
		params.NumSimulations = *o.NumSimulations
	}
	if o.RiskFreeRate != nil {
		params.RiskFreeRate = *o.RiskFreeRate
	}
	return params
}

// ValidatedPortfolio is a Definition that passed validation, with derived data.
type ValidatedPortfolio struct {
	ID           string
	Name         string
	BaseCurrency string
	Positions    []Position

	// MarketValue is the sum of position market values, zero unless every
	// position carries one.
	MarketValue float64
	Warnings    []string
}

// HasMarketValue reports whether the portfolio notional is known.
func (v *ValidatedPortfolio) HasMarketValue() bool {
	return v.MarketValue > 0
}
