package portfolio

// OptimizationMethod selects the allocation algorithm.
type OptimizationMethod string

const (
	OptimizationClassicalMV     OptimizationMethod = "classical_mv"
	OptimizationRiskParity      OptimizationMethod = "risk_parity"
	OptimizationQuantumInspired OptimizationMethod = "quantum_inspired"

	DefaultRiskAversion = 1.0
)

// WeightConstraints bound every optimised weight.
type WeightConstraints struct {
	MinWeight float64 `json:"min_weight" validate:"gte=0,lte=1"`
	MaxWeight float64 `json:"max_weight" validate:"gt=0,lte=1"`
}

// OptimizationRequest asks for target weights over a set of symbols.
// ExpectedReturns are annualised and aligned with Symbols.
type OptimizationRequest struct {
	Symbols         []string           `json:"symbols" validate:"min=2,max=500,dive,ticker"`
	ExpectedReturns []float64          `json:"expected_returns" validate:"min=2,max=500,dive,gte=-1,lte=5"`
	RiskAversion    float64            `json:"risk_aversion" validate:"gte=0.1,lte=10"`
	Constraints     *WeightConstraints `json:"constraints,omitempty"`
	Method          OptimizationMethod `json:"optimization_method" validate:"oneof=classical_mv risk_parity quantum_inspired"`
	RiskFreeRate    *float64           `json:"risk_free_rate,omitempty" validate:"omitempty,gte=0,lte=0.1"`
}

// ApplyDefaults fills omitted optional fields.
func (r *OptimizationRequest) ApplyDefaults() {
	if r.RiskAversion == 0 {
		r.RiskAversion = DefaultRiskAversion
	}
	if r.Method == "" {
		r.Method = OptimizationQuantumInspired
	}
}

// RiskFree returns the requested risk-free rate or the default.
func (r *OptimizationRequest) RiskFree() float64 {
	if r.RiskFreeRate == nil {
		return DefaultRiskFreeRate
	}
	return *r.RiskFreeRate
}

// WeightBounds returns the effective constraints, long-only and unlevered by default.
func (r *OptimizationRequest) WeightBounds() WeightConstraints {
	if r.Constraints == nil {
		return WeightConstraints{MinWeight: 0, MaxWeight: 1}
	}
	return *r.Constraints
}
