package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/metrics"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// signalsStrategyName names runs driven by a precomputed signal series.
const signalsStrategyName = "signals"

// Run is a validated set of Inputs ready to simulate.
type Run struct {
	ID         string
	Symbol     string
	Bars       []types.Bar
	Warmup     []types.Bar
	Signals    []float64
	Strategy   strategy.Strategy
	Parameters map[string]any
	Repairs    types.DataRepair
	SplitIndex int
	// Continuous accepts signal weights in [-1, 1] instead of only -1, 0 and +1.
	Continuous bool
}

// Prepare validates cfg and in and returns the run to simulate. Every
// configuration and data error surfaces here, before any bar is simulated.
func Prepare(ctx context.Context, cfg Config, in Inputs) (*Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if in.Signals == nil && in.Strategy == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "either signals or a strategy is required")
	}

	if in.Signals != nil && len(in.Signals) != len(in.Bars) {
		return nil, errors.Newf(errors.ErrCodeSignalLengthMismatch, "%d signals for %d bars", len(in.Signals), len(in.Bars))
	}

	bars, repairs, err := types.ValidateBars(in.Bars, cfg.Timeframe, cfg.LenientData)
	if err != nil {
		return nil, err
	}

	signals, err := alignSignals(in.Bars, bars, in.Signals, cfg.ContinuousSignals)
	if err != nil {
		return nil, err
	}

	if len(in.Warmup) > 0 && !in.Warmup[len(in.Warmup)-1].Time.Before(bars[0].Time) {
		return nil, errors.New(errors.ErrCodeNonMonotonicTimestamp, "warm-up bars must end before the first simulated bar")
	}

	run := &Run{
		ID:         in.RunID,
		Symbol:     in.Symbol,
		Bars:       bars,
		Warmup:     in.Warmup,
		Signals:    signals,
		Strategy:   in.Strategy,
		Parameters: in.Parameters,
		Repairs: types.DataRepair{
			FilledFields:  in.DataRepairs.FilledFields + repairs.FilledFields,
			SyntheticBars: in.DataRepairs.SyntheticBars + repairs.SyntheticBars,
		},
		SplitIndex: in.SplitIndex,
		Continuous: cfg.ContinuousSignals,
	}

	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	if run.Symbol == "" {
		run.Symbol = bars[0].Symbol
	}

	if run.Parameters == nil && run.Strategy != nil {
		run.Parameters = strategy.ParametersOf(run.Strategy)
	}

	return run, nil
}

// alignSignals validates signals and maps them onto the validated bars. Bars
// inserted by lenient validation get "no new signal".
func alignSignals(original []types.Bar, bars []types.Bar, signals []float64, continuous bool) ([]float64, error) {
	if signals == nil {
		return nil, nil
	}

	for i, s := range signals {
		if !types.IsNoSignal(s) && !types.IsValidSignal(s, continuous) {
			return nil, errors.Newf(errors.ErrCodeInvalidSignal, "invalid signal %v at bar %d", s, i)
		}
	}

	if len(bars) == len(original) {
		return signals, nil
	}

	byTime := make(map[int64]float64, len(original))
	for i, b := range original {
		byTime[b.Time.UnixNano()] = signals[i]
	}

	aligned := make([]float64, len(bars))
	for i, b := range bars {
		s, ok := byTime[b.Time.UnixNano()]
		if !ok {
			s = types.NoSignal()
		}

		aligned[i] = s
	}

	return aligned, nil
}

// StrategyName returns the name recorded for the run.
func (r *Run) StrategyName() string {
	if r.Strategy == nil {
		return signalsStrategyName
	}

	return r.Strategy.Name()
}

// SignalSeries returns the precomputed signals, or derives them causally from
// the strategy over warm-up plus bars.
func (r *Run) SignalSeries() ([]float64, error) {
	if r.Signals != nil {
		return r.Signals, nil
	}

	signals, err := strategy.SignalSeries(r.Strategy, r.Warmup, r.Bars)
	if err != nil {
		return nil, err
	}

	for t, sig := range signals {
		if !types.IsValidSignal(sig, r.Continuous) {
			return nil, errors.Newf(errors.ErrCodeStrategyFailed, "strategy %s returned invalid signal %v at bar %d", r.StrategyName(), sig, t)
		}
	}

	return signals, nil
}

// Metadata returns the metadata every result of this run carries.
func (r *Run) Metadata(cfg Config, mode types.Mode) types.Metadata {
	return types.Metadata{
		SchemaVersion:  version.ResultSchemaVersion,
		EngineVersion:  version.GetVersion(),
		RunID:          r.ID,
		Mode:           mode,
		Strategy:       r.StrategyName(),
		Parameters:     r.Parameters,
		Symbol:         r.Symbol,
		Timeframe:      cfg.Timeframe,
		DataStart:      r.Bars[0].Time,
		DataEnd:        r.Bars[len(r.Bars)-1].Time,
		Bars:           len(r.Bars),
		InitialCapital: cfg.InitialCapital,
		PeriodsPerYear: cfg.PeriodsPerYear,
		Costs:          cfg.Costs,
		DataRepairs:    r.Repairs,
	}
}

// Event returns an observer event tagged with this run.
func (r *Run) Event(kind log.EventKind, bar int, message string) log.Event {
	event := log.Event{
		Kind:       kind,
		RunID:      r.ID,
		Strategy:   r.StrategyName(),
		Symbol:     r.Symbol,
		SplitIndex: r.SplitIndex,
		BarIndex:   bar,
		Message:    message,
	}

	if bar >= 0 && bar < len(r.Bars) {
		event.Time = r.Bars[bar].Time
	}

	return event
}

// Times returns the bar timestamps of the run.
func (r *Run) Times() []time.Time {
	return types.Times(r.Bars)
}

// Finalize computes the metrics of result in place.
func Finalize(result *types.BacktestResult) error {
	m, err := metrics.Calculate(metrics.Input{
		Returns:         result.Returns,
		Equity:          result.Equity,
		InitialCapital:  result.Metadata.InitialCapital,
		Positions:       result.Positions,
		Trades:          result.Trades,
		Costs:           result.Costs,
		PeriodsPerYear:  result.Metadata.PeriodsPerYear,
		SkipFirstReturn: result.Metadata.FirstReturnUndefined,
	})
	if err != nil {
		return err
	}

	result.Metrics = m

	return nil
}

// Fail reports a fatal error to the observer and returns it.
func (r *Run) Fail(observer log.Observer, bar int, err error) error {
	event := r.Event(log.EventFatalError, bar, "run aborted")
	event.Err = err
	observer.Observe(event)

	return err
}
