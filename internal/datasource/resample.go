package datasource

import (
	"fmt"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// bucketInterval returns the DuckDB interval literal of a timeframe.
func bucketInterval(timeframe types.Timeframe) (string, error) {
	switch timeframe {
	case types.Timeframe1M:
		return "1 month", nil
	case types.Timeframe1w:
		return "7 days", nil
	}

	if !timeframe.IsValid() {
		return "", errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported timeframe: %s", timeframe)
	}

	return fmt.Sprintf("%d minutes", int(timeframe.Duration()/time.Minute)), nil
}

// bucketStart returns the start of the bucket containing t. Buckets are
// aligned to UTC.
func bucketStart(t time.Time, timeframe types.Timeframe) time.Time {
	t = t.UTC()

	if timeframe == types.Timeframe1M {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}

	return t.Truncate(timeframe.Duration())
}

// Resample aggregates ascending bars into timeframe buckets: first open,
// highest high, lowest low, last close and summed volume. Each output bar is
// stamped with its bucket start.
func Resample(bars []types.Bar, timeframe types.Timeframe) ([]types.Bar, error) {
	if !timeframe.IsValid() {
		return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "unsupported timeframe: %s", timeframe)
	}

	out := make([]types.Bar, 0, len(bars))

	for _, bar := range bars {
		start := bucketStart(bar.Time, timeframe)

		if n := len(out); n > 0 && out[n-1].Time.Equal(start) {
			agg := &out[n-1]
			agg.High = max(agg.High, bar.High)
			agg.Low = min(agg.Low, bar.Low)
			agg.Close = bar.Close
			agg.Volume += bar.Volume

			continue
		}

		bar.Time = start
		out = append(out, bar)
	}

	return out, nil
}
