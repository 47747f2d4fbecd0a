package types

import (
	"math"
	"time"

	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Bar is one OHLCV bar of one symbol at one timeframe. Bars are values and
// are never mutated after ingestion.
type Bar struct {
	Symbol string    `yaml:"symbol" json:"symbol" csv:"symbol"`
	Time   time.Time `yaml:"time" json:"time" csv:"time"`
	Open   float64   `yaml:"open" json:"open" csv:"open"`
	High   float64   `yaml:"high" json:"high" csv:"high"`
	Low    float64   `yaml:"low" json:"low" csv:"low"`
	Close  float64   `yaml:"close" json:"close" csv:"close"`
	Volume float64   `yaml:"volume" json:"volume" csv:"volume"`
}

// Timeframe is the bar interval.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe6h  Timeframe = "6h"
	Timeframe8h  Timeframe = "8h"
	Timeframe12h Timeframe = "12h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
	Timeframe1M  Timeframe = "1M"
)

// AllTimeframes lists the accepted timeframes.
var AllTimeframes = []any{
	Timeframe1m, Timeframe5m, Timeframe15m, Timeframe30m,
	Timeframe1h, Timeframe4h, Timeframe6h, Timeframe8h, Timeframe12h,
	Timeframe1d, Timeframe1w, Timeframe1M,
}

var timeframeDurations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe6h:  6 * time.Hour,
	Timeframe8h:  8 * time.Hour,
	Timeframe12h: 12 * time.Hour,
	Timeframe1d:  24 * time.Hour,
	Timeframe1w:  7 * 24 * time.Hour,
	// calendar months have no fixed length
	Timeframe1M: 0,
}

// Duration returns the fixed length of the timeframe, or 0 when it has none.
func (t Timeframe) Duration() time.Duration {
	return timeframeDurations[t]
}

// IsValid reports whether t is one of the known timeframes.
func (t Timeframe) IsValid() bool {
	_, ok := timeframeDurations[t]

	return ok
}

// DataRepair records what lenient validation changed in the input bars.
type DataRepair struct {
	// FilledFields counts OHLCV fields forward-filled from the previous close.
	FilledFields int `yaml:"filled_fields" json:"filled_fields"`
	// SyntheticBars counts bars inserted to fill timestamp gaps.
	SyntheticBars int `yaml:"synthetic_bars" json:"synthetic_bars"`
}

// IsZero reports whether nothing was repaired.
func (r DataRepair) IsZero() bool {
	return r.FilledFields == 0 && r.SyntheticBars == 0
}

// ValidateBars checks that bars are usable for a run and returns the bars to
// simulate on. Timestamps must be strictly increasing in every mode. Missing
// OHLC fields and, when timeframe has a fixed length, timestamp gaps are data
// errors unless lenient is set, in which case they are forward-filled from the
// previous close and counted in the returned DataRepair. The input slice is
// never modified.
func ValidateBars(bars []Bar, timeframe Timeframe, lenient bool) ([]Bar, DataRepair, error) {
	var repair DataRepair

	if len(bars) == 0 {
		return nil, repair, errors.New(errors.ErrCodeEmptyData, "no bars to simulate")
	}

	if timeframe != "" && !timeframe.IsValid() {
		return nil, repair, errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown timeframe %q", timeframe)
	}

	step := timeframe.Duration()
	out := make([]Bar, 0, len(bars))

	for i, bar := range bars {
		if i > 0 && !bar.Time.After(bars[i-1].Time) {
			return nil, repair, errors.Newf(errors.ErrCodeNonMonotonicTimestamp,
				"bar %d at %s does not come after %s", i, bar.Time.Format(time.RFC3339), bars[i-1].Time.Format(time.RFC3339))
		}

		if len(out) > 0 && step > 0 {
			prev := out[len(out)-1]
			missing := int(bar.Time.Sub(prev.Time)/step) - 1

			if missing > 0 {
				if !lenient {
					return nil, repair, errors.Newf(errors.ErrCodeDataGap,
						"%d missing %s bars after %s", missing, timeframe, prev.Time.Format(time.RFC3339))
				}

				for k := 1; k <= missing; k++ {
					out = append(out, Bar{
						Symbol: prev.Symbol,
						Time:   prev.Time.Add(time.Duration(k) * step),
						Open:   prev.Close,
						High:   prev.Close,
						Low:    prev.Close,
						Close:  prev.Close,
						Volume: 0,
					})
				}

				repair.SyntheticBars += missing
			}
		}

		filled, n, err := fillMissingFields(bar, out, lenient)
		if err != nil {
			return nil, repair, errors.Wrapf(errors.ErrCodeMissingField, err, "bar %d at %s", i, bar.Time.Format(time.RFC3339))
		}

		repair.FilledFields += n
		out = append(out, filled)
	}

	return out, repair, nil
}

func fillMissingFields(bar Bar, prior []Bar, lenient bool) (Bar, int, error) {
	fields := []*float64{&bar.Open, &bar.High, &bar.Low, &bar.Close}
	names := []string{"open", "high", "low", "close"}
	filled := 0

	for i, f := range fields {
		if isValidPrice(*f) {
			continue
		}

		if !lenient {
			return bar, 0, errors.Newf(errors.ErrCodeMissingField, "%s is missing or non-positive", names[i])
		}

		if len(prior) == 0 {
			return bar, 0, errors.Newf(errors.ErrCodeMissingField, "%s is missing on the first bar and cannot be forward-filled", names[i])
		}

		*f = prior[len(prior)-1].Close
		filled++
	}

	if math.IsNaN(bar.Volume) || math.IsInf(bar.Volume, 0) || bar.Volume < 0 {
		if !lenient {
			return bar, 0, errors.New(errors.ErrCodeMissingField, "volume is missing or negative")
		}

		bar.Volume = 0
		filled++
	}

	return bar, filled, nil
}

func isValidPrice(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

// Closes returns the close prices of bars.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	return closes
}

// Times returns the timestamps of bars.
func Times(bars []Bar) []time.Time {
	times := make([]time.Time, len(bars))
	for i, bar := range bars {
		times[i] = bar.Time
	}

	return times
}
