package cost

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// FeeModel charges commission on an event-driven fill.
type FeeModel interface {
	// Calculate returns the commission in currency for a fill of quantity units at price.
	Calculate(quantity float64, price float64) float64
}

// PercentageFee charges a fraction of the traded notional.
type PercentageFee struct {
	Rate float64
}

// NewPercentageFee creates a fee charging rate × notional.
func NewPercentageFee(rate float64) FeeModel {
	return &PercentageFee{Rate: rate}
}

func (f *PercentageFee) Calculate(quantity float64, price float64) float64 {
	return Transaction(quantity*price, f.Rate)
}

// InteractiveBrokerFee charges a fixed amount per unit with a per-order minimum.
type InteractiveBrokerFee struct {
	PerUnit float64
	Minimum float64
}

// NewInteractiveBrokerFee creates the per-share schedule with a 1.0 minimum.
func NewInteractiveBrokerFee() FeeModel {
	return &InteractiveBrokerFee{PerUnit: 0.005, Minimum: 1.0}
}

func (f *InteractiveBrokerFee) Calculate(quantity float64, _ float64) float64 {
	fee := f.PerUnit * math.Abs(quantity)
	if fee < f.Minimum {
		return f.Minimum
	}

	return fee
}

// ZeroFee charges nothing.
type ZeroFee struct{}

// NewZeroFee creates a new zero commission fee.
func NewZeroFee() FeeModel {
	return &ZeroFee{}
}

// Calculate returns 0 for any quantity.
func (f *ZeroFee) Calculate(float64, float64) float64 {
	return 0.0
}

// AllFeeSchedules lists the accepted fee schedules.
var AllFeeSchedules = []any{
	types.FeeSchedulePercentage,
	types.FeeScheduleInteractiveBroker,
	types.FeeScheduleZero,
}

// NewFeeModel returns the fee model selected by cfg.FeeSchedule. An empty
// schedule charges TransactionCostRate on notional.
func NewFeeModel(cfg types.CostConfig) FeeModel {
	switch cfg.FeeSchedule {
	case types.FeeScheduleInteractiveBroker:
		return NewInteractiveBrokerFee()
	case types.FeeScheduleZero:
		return NewZeroFee()
	default:
		return NewPercentageFee(cfg.TransactionCostRate)
	}
}
