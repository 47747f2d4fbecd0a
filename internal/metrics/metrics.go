// Package metrics derives performance statistics from a completed run.
// Undefined statistics are reported as 0 with a flag; no NaN or Inf escapes.
package metrics

import (
	"math"
	"sort"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// Input is everything Calculate looks at.
type Input struct {
	// Returns are per-bar net returns.
	Returns []float64
	// Equity is the equity at the end of each bar.
	Equity []float64
	// InitialCapital is the equity before the first bar. When 0, Equity[0] is used.
	InitialCapital float64
	// Positions are per-bar exposures, used for the exposure ratio.
	Positions []float64
	Trades    []types.Trade
	Costs     types.CostBreakdown
	// PeriodsPerYear annualises CAGR, Sharpe and Sortino. Required.
	PeriodsPerYear float64
	// SkipFirstReturn drops Returns[0] when it is undefined.
	SkipFirstReturn bool
}

type flagSet struct {
	flags []types.MetricFlag
}

func (f *flagSet) add(flag types.MetricFlag) {
	for _, existing := range f.flags {
		if existing == flag {
			return
		}
	}

	f.flags = append(f.flags, flag)
}

// Calculate computes every metric of a run.
func Calculate(in Input) (types.Metrics, error) {
	if !(in.PeriodsPerYear > 0) || math.IsInf(in.PeriodsPerYear, 0) {
		return types.Metrics{}, errors.Newf(errors.ErrCodeInvalidConfiguration,
			"periods_per_year must be positive, got %v", in.PeriodsPerYear)
	}

	var flags flagSet

	returns := in.Returns
	if in.SkipFirstReturn && len(returns) > 0 {
		returns = returns[1:]
	}

	returns = finite(returns, &flags)
	equity := finite(in.Equity, &flags)

	m := types.Metrics{}

	if len(returns) == 0 {
		flags.add(types.FlagNoReturns)
	}

	initial := in.InitialCapital
	if initial <= 0 && len(equity) > 0 {
		initial = equity[0]
	}

	if len(equity) > 0 && initial > 0 {
		m.TotalReturn = equity[len(equity)-1]/initial - 1
	}

	cagr, ok := CAGR(initial, lastOr(equity, initial), len(returns), in.PeriodsPerYear)
	if !ok {
		flags.add(types.FlagCAGRUndefined)
	}

	m.CAGR = cagr

	sharpe, ok := Sharpe(returns, in.PeriodsPerYear)
	if !ok {
		flags.add(types.FlagSharpeUndefined)
	}

	m.Sharpe = sharpe

	sortino, ok := Sortino(returns, in.PeriodsPerYear)
	if !ok {
		flags.add(types.FlagSortinoUndefined)
	}

	m.Sortino = sortino

	m.MaxDrawdown = MaxDrawdown(equity)

	if m.MaxDrawdown == 0 {
		flags.add(types.FlagCalmarUndefined)
	} else {
		m.Calmar = sanitize(m.CAGR/math.Abs(m.MaxDrawdown), &flags, types.FlagCalmarUndefined)
	}

	tradeStats(&m, in.Trades, &flags)

	m.TotalCosts = sanitize(in.Costs.Totals().Total, &flags, types.FlagNonFiniteInput)
	m.Exposure = exposure(in.Positions)
	m.Flags = flags.flags

	return m, nil
}

// CAGR returns (final/initial)^(periodsPerYear/periods) - 1. The bool is false
// when the value is undefined and 0 is returned.
func CAGR(initial, final float64, periods int, periodsPerYear float64) (float64, bool) {
	if periods <= 0 || initial <= 0 || final < 0 {
		return 0, false
	}

	v := math.Pow(final/initial, periodsPerYear/float64(periods)) - 1
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}

	return v, true
}

// Sharpe returns mean/std × sqrt(periodsPerYear) using the sample standard
// deviation. The bool is false when std is zero or fewer than two returns exist.
func Sharpe(returns []float64, periodsPerYear float64) (float64, bool) {
	if len(returns) < 2 {
		return 0, false
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, false
	}

	return mean / std * math.Sqrt(periodsPerYear), true
}

// Sortino is Sharpe with the standard deviation of negative returns only.
func Sortino(returns []float64, periodsPerYear float64) (float64, bool) {
	downside := make([]float64, 0, len(returns))

	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}

	if len(downside) < 2 {
		return 0, false
	}

	std := stat.StdDev(downside, nil)
	if std == 0 || math.IsNaN(std) {
		return 0, false
	}

	return stat.Mean(returns, nil) / std * math.Sqrt(periodsPerYear), true
}

// MaxDrawdown returns min_t(equity[t]/max(equity[0..t]) - 1). It is always <= 0
// and 0 only for a non-decreasing curve.
func MaxDrawdown(equity []float64) float64 {
	peak := math.Inf(-1)
	mdd := 0.0

	for _, e := range equity {
		if e > peak {
			peak = e
		}

		if peak <= 0 {
			continue
		}

		if dd := e/peak - 1; dd < mdd {
			mdd = dd
		}
	}

	return mdd
}

// Drawdowns returns the drawdown series of equity.
func Drawdowns(equity []float64) []float64 {
	out := make([]float64, len(equity))
	peak := math.Inf(-1)

	for i, e := range equity {
		if e > peak {
			peak = e
		}

		if peak > 0 {
			out[i] = e/peak - 1
		}
	}

	return out
}

// Percentile returns the p-th percentile (0-100) of the finite values, linearly
// interpolating the empirical distribution. values is not modified.
func Percentile(values []float64, p float64) float64 {
	sorted := make([]float64, 0, len(values))

	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			sorted = append(sorted, v)
		}
	}

	if len(sorted) == 0 {
		return 0
	}

	sort.Float64s(sorted)

	return stat.Quantile(math.Min(math.Max(p, 0), 100)/100, stat.LinInterp, sorted, nil)
}

func tradeStats(m *types.Metrics, trades []types.Trade, flags *flagSet) {
	m.TotalTrades = len(trades)

	if len(trades) == 0 {
		flags.add(types.FlagWinRateUndefined)
		flags.add(types.FlagProfitFactorUndefined)

		return
	}

	grossWin, grossLoss, holding := 0.0, 0.0, 0.0

	for _, t := range trades {
		switch {
		case t.IsWin():
			m.WinningTrades++
			grossWin += t.PnL
		case t.IsLoss():
			m.LosingTrades++
			grossLoss += t.PnL
		}

		holding += float64(t.HoldingBars)
	}

	m.WinRate = float64(m.WinningTrades) / float64(len(trades))
	m.AvgTradeDuration = holding / float64(len(trades))

	if grossLoss == 0 {
		flags.add(types.FlagProfitFactorUndefined)
	} else {
		m.ProfitFactor = sanitize(grossWin/math.Abs(grossLoss), flags, types.FlagProfitFactorUndefined)
	}
}

func exposure(positions []float64) float64 {
	if len(positions) == 0 {
		return 0
	}

	held := 0

	for _, p := range positions {
		if p != 0 && !math.IsNaN(p) {
			held++
		}
	}

	return float64(held) / float64(len(positions))
}

func finite(values []float64, flags *flagSet) []float64 {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			flags.add(types.FlagNonFiniteInput)

			out := make([]float64, 0, len(values))

			for _, x := range values {
				if !math.IsNaN(x) && !math.IsInf(x, 0) {
					out = append(out, x)
				}
			}

			return out
		}
	}

	return values
}

func sanitize(v float64, flags *flagSet, flag types.MetricFlag) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		flags.add(flag)

		return 0
	}

	return v
}

func lastOr(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}

	return values[len(values)-1]
}
