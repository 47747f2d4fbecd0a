package indicator

import (
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// MA implements a simple moving average of close prices.
type MA struct {
	period int
}

// NewMA creates a new MA indicator with default configuration.
func NewMA() *MA {
	return &MA{
		period: 20, // Default period
	}
}

// Name returns the name of the indicator.
func (m *MA) Name() IndicatorType {
	return IndicatorTypeSMA
}

// Config expects parameters: period (int).
func (m *MA) Config(params ...any) error {
	period, err := parsePeriod(params)
	if err != nil {
		return err
	}

	m.period = period

	return nil
}

// Series returns the moving average of close prices.
func (m *MA) Series(bars []types.Bar) ([]float64, error) {
	return SMA(types.Closes(bars), m.period)
}

// SMA returns the simple moving average of values. out[t] is NaN for t < period-1.
func SMA(values []float64, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	out := nanSeries(len(values))
	sum := 0.0

	for t, v := range values {
		sum += v
		if t >= period {
			sum -= values[t-period]
		}

		if t >= period-1 {
			out[t] = sum / float64(period)
		}
	}

	return out, nil
}
