package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// DefaultATRPeriod is the conventional ATR lookback.
const DefaultATRPeriod = 14

// ATR represents the Average True Range indicator.
type ATR struct {
	period int
}

// NewATR creates a new ATR indicator with default configuration.
func NewATR() *ATR {
	return &ATR{
		period: DefaultATRPeriod,
	}
}

// Name returns the name of the indicator.
func (a *ATR) Name() IndicatorType {
	return IndicatorTypeATR
}

// Config configures the ATR indicator. Expected parameters: period (int).
func (a *ATR) Config(params ...any) error {
	period, err := parsePeriod(params)
	if err != nil {
		return err
	}

	a.period = period

	return nil
}

// Series returns the ATR for every bar.
func (a *ATR) Series(bars []types.Bar) ([]float64, error) {
	return AverageTrueRange(bars, a.period)
}

// TrueRange returns max(high-low, |high-prevClose|, |low-prevClose|) per bar.
// The first bar has no previous close and uses high-low.
func TrueRange(bars []types.Bar) []float64 {
	out := make([]float64, len(bars))

	for t, bar := range bars {
		if t == 0 {
			out[t] = bar.High - bar.Low

			continue
		}

		prevClose := bars[t-1].Close
		out[t] = math.Max(
			math.Max(bar.High-bar.Low, math.Abs(bar.High-prevClose)),
			math.Abs(bar.Low-prevClose),
		)
	}

	return out
}

// AverageTrueRange returns Wilder's ATR. Until period bars are available the
// value is the mean of the true ranges seen so far, so every index is defined.
func AverageTrueRange(bars []types.Bar, period int) ([]float64, error) {
	if err := validatePeriod(period); err != nil {
		return nil, err
	}

	tr := TrueRange(bars)
	out := make([]float64, len(tr))
	sum := 0.0

	for t, v := range tr {
		if t < period {
			sum += v
			out[t] = sum / float64(t+1)

			continue
		}

		out[t] = (out[t-1]*float64(period-1) + v) / float64(period)
	}

	return out, nil
}
