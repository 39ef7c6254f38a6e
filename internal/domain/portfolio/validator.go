package portfolio

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	concentrationThreshold  = 0.3
	minDiversifiedPositions = 5
	microPositionWeight     = 0.01
	maxMicroPositions       = 10

	maxScenarios = 50

	DefaultHistoryDays = 30
	MaxHistoryDays     = 365
	// DefaultShockKey applies a shock to every symbol a scenario does not name.
	DefaultShockKey = "DEFAULT"
)

var (
	tickerPattern   = regexp.MustCompile(`^[A-Z]{1,10}$`)
	weightTolerance = decimal.RequireFromString("0.01")
)

// Validator checks portfolio definitions and request parameters.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a validator with the ticker rule registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("ticker", func(fl validator.FieldLevel) bool {
		return tickerPattern.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Validate checks a portfolio definition and returns it with derived data and
// advisory warnings. Rejections carry every offending field.
func (v *Validator) Validate(def Definition) (*ValidatedPortfolio, error) {
	def.BaseCurrency = strings.ToUpper(strings.TrimSpace(def.BaseCurrency))

	var fields []FieldError
	if err := v.validate.Struct(def); err != nil {
		fields = append(fields, translate(err)...)
	}

	missing := missingWeights(def.Positions)
	fields = append(fields, missing...)

	if n := len(def.Positions); n > 0 && n <= MaxPositions {
		fields = append(fields, duplicateSymbols(def.Positions)...)
		if len(missing) == 0 {
			if fe := checkWeightSum(def.Positions); fe != nil {
				fields = append(fields, *fe)
			}
		}
	}

	if len(fields) > 0 {
		return nil, newValidationError(ErrInvalidPortfolio, fields)
	}

	currency := def.BaseCurrency
	if currency == "" {
		currency = DefaultBaseCurrency
	}

	positions := make([]Position, len(def.Positions))
	copy(positions, def.Positions)

	return &ValidatedPortfolio{
		ID:           def.ID,
		Name:         def.Name,
		BaseCurrency: currency,
		Positions:    positions,
		MarketValue:  totalMarketValue(positions),
		Warnings:     Warnings(positions),
	}, nil
}

// ValidateParameters checks risk parameter ranges.
func (v *Validator) ValidateParameters(params RiskParameters) error {
	if err := v.validate.Struct(params); err != nil {
		fields := translate(err)
		for i := range fields {
			fields[i].Field = "risk_params." + fields[i].Field
		}
		return newValidationError(ErrInvalidParameters, fields)
	}
	return nil
}

// ValidateScenarios checks stress scenario definitions.
func (v *Validator) ValidateScenarios(scenarios map[string]map[string]float64) error {
	var fields []FieldError
	if len(scenarios) == 0 {
		fields = append(fields, FieldError{Field: "scenarios", Message: "must contain at least 1 scenario"})
	}
	if len(scenarios) > maxScenarios {
		fields = append(fields, FieldError{Field: "scenarios", Message: fmt.Sprintf("must contain at most %d scenarios", maxScenarios)})
	}

	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		shocks := scenarios[name]
		if strings.TrimSpace(name) == "" || len(name) > 64 {
			fields = append(fields, FieldError{Field: "scenarios", Message: "scenario names must be 1-64 characters"})
			continue
		}
		if len(shocks) == 0 {
			fields = append(fields, FieldError{Field: "scenarios." + name, Message: "must define at least one shock"})
			continue
		}
		for symbol, shock := range shocks {
			path := "scenarios." + name + "." + symbol
			if symbol != DefaultShockKey && !tickerPattern.MatchString(symbol) {
				fields = append(fields, FieldError{Field: path, Message: "must be 1-10 upper-case letters or DEFAULT"})
			}
			if math.IsNaN(shock) || shock < -1 || shock > 10 {
				fields = append(fields, FieldError{Field: path, Message: "shock must be between -1 and 10"})
			}
		}
	}

	if len(fields) > 0 {
		sort.SliceStable(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return newValidationError(ErrInvalidParameters, fields)
	}
	return nil
}

// ValidateOptimization checks an optimisation request after defaults are applied.
func (v *Validator) ValidateOptimization(req OptimizationRequest) error {
	var fields []FieldError
	if err := v.validate.Struct(req); err != nil {
		fields = append(fields, translate(err)...)
	}

	if len(req.Symbols) != len(req.ExpectedReturns) {
		fields = append(fields, FieldError{
			Field:   "expected_returns",
			Message: fmt.Sprintf("length %d does not match symbols length %d", len(req.ExpectedReturns), len(req.Symbols)),
		})
	}

	seen := make(map[string]struct{}, len(req.Symbols))
	for i, s := range req.Symbols {
		if _, dup := seen[s]; dup {
			fields = append(fields, FieldError{Field: fmt.Sprintf("symbols[%d]", i), Message: "duplicate symbol " + s})
		}
		seen[s] = struct{}{}
	}

	c := req.WeightBounds()
	if c.MinWeight > c.MaxWeight {
		fields = append(fields, FieldError{Field: "constraints", Message: "min_weight must not exceed max_weight"})
	} else if n := float64(len(req.Symbols)); n > 0 && (c.MinWeight*n > 1 || c.MaxWeight*n < 1) {
		fields = append(fields, FieldError{Field: "constraints", Message: "weight bounds cannot sum to 1 for this number of assets"})
	}

	if len(fields) > 0 {
		return newValidationError(ErrInvalidParameters, fields)
	}
	return nil
}

// ValidateHistoryWindow checks the look-back of a history query.
func (v *Validator) ValidateHistoryWindow(days int) error {
	if days < 1 || days > MaxHistoryDays {
		return newValidationError(ErrInvalidParameters, []FieldError{{
			Field:   "days",
			Message: fmt.Sprintf("must be between 1 and %d", MaxHistoryDays),
		}})
	}
	return nil
}

// Warnings reports advisory risk observations. The order is fixed:
// concentration, diversification, micro positions.
func Warnings(positions []Position) []string {
	warnings := make([]string, 0, 3)

	maxWeight := 0.0
	micro := 0
	for _, p := range positions {
		if p.Weight > maxWeight {
			maxWeight = p.Weight
		}
		if p.Weight < microPositionWeight {
			micro++
		}
	}

	if maxWeight > concentrationThreshold {
		warnings = append(warnings, fmt.Sprintf("High concentration risk: %.1f%% in single position", maxWeight*100))
	}
	if len(positions) < minDiversifiedPositions {
		warnings = append(warnings, "Low diversification: fewer than 5 positions")
	}
	if micro > maxMicroPositions {
		warnings = append(warnings, fmt.Sprintf("Many micro positions (%d) may increase transaction costs", micro))
	}
	return warnings
}

func checkWeightSum(positions []Position) *FieldError {
	total := decimal.Zero
	for _, p := range positions {
		if math.IsNaN(p.Weight) || math.IsInf(p.Weight, 0) {
			return nil
		}
		total = total.Add(decimal.NewFromFloat(p.Weight))
	}
	if total.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(weightTolerance) {
		return &FieldError{
			Field:   "positions",
			Message: fmt.Sprintf("weights must sum to 1.0 within 0.01, got %s", total.StringFixed(4)),
		}
	}
	return nil
}

func missingWeights(positions []Position) []FieldError {
	var fields []FieldError
	for i, p := range positions {
		if p.weightMissing {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("positions[%d].weight", i),
				Message: "is required",
			})
		}
	}
	return fields
}

func duplicateSymbols(positions []Position) []FieldError {
	var fields []FieldError
	seen := make(map[string]struct{}, len(positions))
	for i, p := range positions {
		if _, dup := seen[p.Symbol]; dup {
			fields = append(fields, FieldError{
				Field:   fmt.Sprintf("positions[%d].symbol", i),
				Message: "duplicate symbol " + p.Symbol,
			})
		}
		seen[p.Symbol] = struct{}{}
	}
	return fields
}

func totalMarketValue(positions []Position) float64 {
	total := decimal.Zero
	for _, p := range positions {
		if p.MarketValue == nil {
			return 0
		}
		total = total.Add(decimal.NewFromFloat(*p.MarketValue))
	}
	return total.InexactFloat64()
}

func translate(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []FieldError{{Field: "request", Message: "malformed input"}}
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fieldPath(fe.Namespace()), Message: describe(fe)})
	}
	return fields
}

// fieldPath drops the root struct name: "Definition.positions[0].symbol" -> "positions[0].symbol".
func fieldPath(namespace string) string {
	if i := strings.IndexByte(namespace, '.'); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "ticker":
		return "must be 1-10 upper-case letters"
	case "gte":
		return "must be greater than or equal to " + fe.Param()
	case "lte":
		return "must be less than or equal to " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at least %s item(s)", fe.Param())
		}
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("must contain at most %s items", fe.Param())
		}
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "len", "alpha", "uppercase":
		return "must be a 3-letter upper-case currency code"
	default:
		return "failed " + fe.Tag() + " check"
	}
}
