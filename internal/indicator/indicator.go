// Package indicator computes causal indicator series: the value at index t
// depends only on bars[0..t]. Indexes without enough history hold NaN.
package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// IndicatorType names an indicator.
type IndicatorType string

const (
	IndicatorTypeSMA IndicatorType = "sma"
	IndicatorTypeEMA IndicatorType = "ema"
	IndicatorTypeATR IndicatorType = "atr"
)

// Indicator is a configurable causal series over bars.
type Indicator interface {
	// Name returns the name of the indicator
	Name() IndicatorType
	// Config sets the indicator parameters
	Config(params ...any) error
	// Series returns one value per bar
	Series(bars []types.Bar) ([]float64, error)
}

func parsePeriod(params []any) (int, error) {
	if len(params) != 1 {
		return 0, errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	var period int

	switch v := params[0].(type) {
	case int:
		period = v
	case float64:
		period = int(v)
	default:
		return 0, errors.New(errors.ErrCodeInvalidParameter, "invalid type for period parameter, expected int")
	}

	return period, validatePeriod(period)
}

func validatePeriod(period int) error {
	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	return nil
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}

	return out
}
