package indicator

import (
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// EMA implements an exponential moving average of close prices.
type EMA struct {
	period int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() *EMA {
	return &EMA{
		period: 20, // Default period
	}
}

// Name returns the name of the indicator.
func (e *EMA) Name() IndicatorType {
	return IndicatorTypeEMA
}

// Config expects parameters: period (int).
func (e *EMA) Config(params ...any) error {
	period, err := parsePeriod(params)
	if err != nil {
		return err
	}

	e.period = period

	return nil
}

// Series returns the exponential moving average of close prices.
func (e *EMA) Series(bars []types.Bar) ([]float64, error) {
	return ExponentialMA(types.Closes(bars), e.period)
}

// ExponentialMA returns the EMA of values with alpha 2/(period+1), seeded with
// the simple average of the first period values. out[t] is NaN for t < period-1.
func ExponentialMA(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	if len(values) < period {
		return out, nil
	}

	seed := 0.0
	for _, v := range values[:period] {
		seed += v
	}

	alpha := 2.0 / float64(period+1)
	prev := seed / float64(period)
	out[period-1] = prev

	for t := period; t < len(values); t++ {
		prev = alpha*values[t] + (1-alpha)*prev
		out[t] = prev
	}

	return out, nil
}
