// Package vectorized implements the bulk backtester: the whole signal series
// is known up front and every series is derived in a single pass.
package vectorized

import (
	"context"
	"math"
	"strconv"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/cost"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// Backtester is the vectorized backtester.
type Backtester struct {
	config  engine.Config
	options engine.Options
}

// NewBacktester creates a vectorized backtester. The configuration is
// validated when a run starts.
func NewBacktester(config engine.Config, opts ...engine.Option) *Backtester {
	return &Backtester{
		config:  config,
		options: engine.NewOptions(config, opts...),
	}
}

// Mode implements engine.Backtester.
func (b *Backtester) Mode() types.Mode {
	return types.ModeVectorized
}

// Run implements engine.Backtester.
func (b *Backtester) Run(ctx context.Context, in engine.Inputs) (*types.BacktestResult, error) {
	if b.config.Costs.FeeSchedule == types.FeeScheduleInteractiveBroker {
		return nil, errors.New(errors.ErrCodeUnsupportedMode, "the interactive_broker fee schedule charges per unit and needs the event-driven backtester")
	}

	run, err := engine.Prepare(ctx, b.config, in)
	if err != nil {
		return nil, err
	}

	observer := b.options.Observer
	observer.Observe(run.Event(log.EventRunStart, -1, "vectorized run started"))

	models, err := cost.New(b.config.Costs)
	if err != nil {
		return nil, run.Fail(observer, -1, err)
	}

	signals, err := run.SignalSeries()
	if err != nil {
		return nil, run.Fail(observer, -1, err)
	}

	positions := Positions(signals, !b.options.PreShiftedSignals)

	result, err := b.simulate(run, models, positions)
	if err != nil {
		return nil, run.Fail(observer, -1, err)
	}

	if err := engine.Finalize(result); err != nil {
		return nil, run.Fail(observer, -1, err)
	}

	end := run.Event(log.EventRunEnd, -1, "vectorized run finished")
	end.Fields = map[string]string{"trades": strconv.Itoa(len(result.Trades))}
	observer.Observe(end)

	return result, nil
}

// Positions turns a signal series into the exposure held through each bar.
// With shift set the signal observed at bar t is held over bar t+1 and the
// first bar is flat. NaN means "no new signal" and carries the previous
// exposure forward; 0 is flat.
func Positions(signals []float64, shift bool) []float64 {
	positions := make([]float64, len(signals))
	current := 0.0

	for t := range positions {
		src := t
		if shift {
			src = t - 1
		}

		if src >= 0 && !types.IsNoSignal(signals[src]) {
			current = signals[src]
		}

		positions[t] = current
	}

	return positions
}

func (b *Backtester) simulate(run *engine.Run, models *cost.Models, positions []float64) (*types.BacktestResult, error) {
	bars := run.Bars
	n := len(bars)
	cfg := b.config

	atr, err := cost.ATRSeries(models.Slippage, bars)
	if err != nil {
		return nil, err
	}

	costs := types.NewCostBreakdown(n)
	returns := make([]float64, n)
	equity := make([]float64, n)
	turnover := make([]float64, n)

	prevEquity := cfg.InitialCapital
	ruined := false

	for t := 0; t < n; t++ {
		if err := b.options.Progress(t+1, n); err != nil {
			return nil, err
		}

		if ruined {
			positions[t] = 0
			equity[t] = 0

			continue
		}

		prev := max(t-1, 0)
		prevPos := 0.0

		if t > 0 {
			prevPos = positions[t-1]
		}

		turnover[t] = math.Abs(positions[t] - prevPos)

		marketReturn := 0.0
		if t > 0 {
			marketReturn = bars[t].Close/bars[t-1].Close - 1
		}

		gross := positions[t] * marketReturn

		if turnover[t] > 0 {
			costs.Transaction[t] = cost.Transaction(turnover[t], cfg.Costs.TransactionCostRate)

			price := bars[prev].Close
			units := turnover[t] * prevEquity / price

			rate, err := models.Slippage.Rate(cost.ContextAt(bars, atr, prev, units, price))
			if err != nil {
				return nil, errors.Wrapf(errors.ErrCodeCostModelFailed, err, "slippage at bar %d", t)
			}

			costs.Slippage[t] = turnover[t] * rate
		}

		// carry costs accrue over (previous bar, bar], which bar 0 does not have
		if t > 0 {
			settlements := cost.Settlements(bars[t-1].Time, bars[t].Time, cfg.Costs.FundingInterval)
			costs.Funding[t] = cost.Funding(positions[t], cfg.Costs.FundingRate, settlements)
			costs.Borrow[t] = cost.Borrow(positions[t], cfg.Costs.BorrowRate, cfg.PeriodsPerYear)
		}

		returns[t] = gross - costs.At(t)

		if 1+returns[t] <= 0 {
			b.options.Logger.Warn("equity ruined", zap.String("run_id", run.ID), zap.Int("bar", t))

			returns[t] = -1
			equity[t] = 0
			ruined = true

			continue
		}

		equity[t] = prevEquity * (1 + returns[t])
		prevEquity = equity[t]
	}

	times := run.Times()
	trades, open := Trades(run.Symbol, bars, positions, turnover, costs, equity, cfg.InitialCapital)

	result := &types.BacktestResult{
		Times:     times,
		Equity:    equity,
		Returns:   returns,
		Positions: positions,
		Trades:    trades,
		Fills:     []types.Fill{},
		Costs:     costs,
		Metadata:  run.Metadata(cfg, types.ModeVectorized),
	}

	result.Metadata.FirstReturnUndefined = true
	result.Metadata.OpenPosition = open

	return result, nil
}
