package cost

import (
	"math"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/indicator"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// TradeContext is everything a slippage model may look at. Bar is the bar the
// trade executes on; ATR is the causal ATR at that bar.
type TradeContext struct {
	Bar types.Bar
	// Quantity is the absolute traded size in units.
	Quantity float64
	// Price is the reference execution price before slippage.
	Price float64
	ATR   float64
}

// SlippageModel returns the adverse price move of a trade as a fraction of its
// price. Buys execute at price×(1+rate), sells at price×(1-rate).
type SlippageModel interface {
	Name() types.SlippageModelType
	Rate(ctx TradeContext) (float64, error)
	// NeedsATR reports whether TradeContext.ATR must be populated.
	NeedsATR() bool
}

// FixedSlippage charges k per unit of traded notional.
type FixedSlippage struct {
	K float64
}

func (s *FixedSlippage) Name() types.SlippageModelType { return types.SlippageModelFixed }

func (s *FixedSlippage) NeedsATR() bool { return false }

func (s *FixedSlippage) Rate(TradeContext) (float64, error) {
	return s.K, nil
}

// VolumeWeightedSlippage charges base_rate × sqrt(quantity / bar volume).
type VolumeWeightedSlippage struct {
	BaseRate float64
}

func (s *VolumeWeightedSlippage) Name() types.SlippageModelType {
	return types.SlippageModelVolumeWeighted
}

func (s *VolumeWeightedSlippage) NeedsATR() bool { return false }

func (s *VolumeWeightedSlippage) Rate(ctx TradeContext) (float64, error) {
	if ctx.Quantity == 0 || s.BaseRate == 0 {
		return 0, nil
	}

	if !(ctx.Bar.Volume > 0) {
		return 0, errors.Newf(errors.ErrCodeCostModelFailed, "volume-weighted slippage needs positive volume, bar at %s has %v",
			ctx.Bar.Time.Format(time.RFC3339), ctx.Bar.Volume)
	}

	return s.BaseRate * math.Sqrt(ctx.Quantity/ctx.Bar.Volume), nil
}

// VolatilityAdjustedSlippage moves the price by ATR × multiplier regardless of size.
type VolatilityAdjustedSlippage struct {
	Multiplier float64
	Period     int
}

func (s *VolatilityAdjustedSlippage) Name() types.SlippageModelType {
	return types.SlippageModelVolatilityAdjusted
}

func (s *VolatilityAdjustedSlippage) NeedsATR() bool { return true }

func (s *VolatilityAdjustedSlippage) Rate(ctx TradeContext) (float64, error) {
	if !(ctx.Price > 0) {
		return 0, errors.Newf(errors.ErrCodeCostModelFailed, "volatility-adjusted slippage needs a positive price, got %v", ctx.Price)
	}

	if math.IsNaN(ctx.ATR) || ctx.ATR < 0 {
		return 0, errors.Newf(errors.ErrCodeCostModelFailed, "ATR unavailable at %s", ctx.Bar.Time.Format(time.RFC3339))
	}

	return ctx.ATR * s.Multiplier / ctx.Price, nil
}

// NewSlippageModel returns the model selected by cfg. An empty model is fixed.
func NewSlippageModel(cfg types.SlippageConfig) (SlippageModel, error) {
	switch cfg.Model {
	case "", types.SlippageModelFixed:
		return &FixedSlippage{K: cfg.Rate}, nil
	case types.SlippageModelVolumeWeighted:
		return &VolumeWeightedSlippage{BaseRate: cfg.BaseRate}, nil
	case types.SlippageModelVolatilityAdjusted:
		period := cfg.ATRPeriod
		if period == 0 {
			period = indicator.DefaultATRPeriod
		}

		return &VolatilityAdjustedSlippage{Multiplier: cfg.Multiplier, Period: period}, nil
	default:
		return nil, errors.Newf(errors.ErrCodeInvalidCostRate, "unknown slippage model %q", cfg.Model)
	}
}

// ATRSeries precomputes the causal ATR a model needs over bars, or returns nil
// when the model does not use it.
func ATRSeries(model SlippageModel, bars []types.Bar) ([]float64, error) {
	if !model.NeedsATR() {
		return nil, nil
	}

	period := indicator.DefaultATRPeriod
	if v, ok := model.(*VolatilityAdjustedSlippage); ok {
		period = v.Period
	}

	return indicator.AverageTrueRange(bars, period)
}

// ContextAt builds the TradeContext for a trade executing on bars[t].
func ContextAt(bars []types.Bar, atr []float64, t int, quantity float64, price float64) TradeContext {
	ctx := TradeContext{
		Bar:      bars[t],
		Quantity: math.Abs(quantity),
		Price:    price,
	}

	if atr != nil {
		ctx.ATR = atr[t]
	}

	return ctx
}
