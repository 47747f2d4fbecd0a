// Package cost holds the cost models charged by both backtesters. Every model
// is a pure function of its inputs and returns a non-negative magnitude.
// Components are independent and are summed, never netted, by the caller.
package cost

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Models bundles the configured fee and slippage models of a run.
type Models struct {
	Config   types.CostConfig
	Fee      FeeModel
	Slippage SlippageModel
}

// New validates cfg and builds the models it selects.
func New(cfg types.CostConfig) (*Models, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	slippage, err := NewSlippageModel(cfg.Slippage)
	if err != nil {
		return nil, err
	}

	return &Models{
		Config:   cfg,
		Fee:      NewFeeModel(cfg),
		Slippage: slippage,
	}, nil
}

// ValidateConfig rejects negative, non-finite or out-of-range rates.
func ValidateConfig(cfg types.CostConfig) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidCostRate, "invalid cost configuration", err)
	}

	if cfg.Slippage.Model == types.SlippageModelVolatilityAdjusted && cfg.Slippage.Multiplier == 0 {
		return errors.New(errors.ErrCodeInvalidCostRate, "volatility_adjusted slippage requires a positive multiplier")
	}

	return nil
}

// Transaction returns |turnover| × rate. Zero turnover costs nothing.
func Transaction(turnover float64, rate float64) float64 {
	return math.Abs(turnover) * rate
}

// Borrow returns the per-bar borrow charge: max(0, -position) × annualRate / periodsPerYear.
func Borrow(position float64, annualRate float64, periodsPerYear float64) float64 {
	if position >= 0 || periodsPerYear <= 0 {
		return 0
	}

	return -position * annualRate / periodsPerYear
}

// Funding returns |position| × rate × settlements.
func Funding(position float64, rate float64, settlements int) float64 {
	return math.Abs(position) * rate * float64(settlements)
}

// Settlements counts funding settlements in (prev, cur]. Settlements happen at
// every multiple of interval since the Unix epoch. A zero interval settles
// once per bar.
func Settlements(prev time.Time, cur time.Time, interval time.Duration) int {
	if !cur.After(prev) {
		return 0
	}

	if interval <= 0 {
		return 1
	}

	step := int64(interval)

	return int(floorDiv(cur.UnixNano(), step) - floorDiv(prev.UnixNano(), step))
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}

	return q
}
