// Package walkforward validates a strategy on rolling out-of-sample windows.
// Each split fits the strategy on its train window only, simulates the test
// window with the train bars as warm-up history, and the test segments are
// pooled into one out-of-sample track record.
package walkforward

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/metrics"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SplitResult is the out-of-sample run of one split.
type SplitResult struct {
	Split      TrainTestSplit        `yaml:"split" json:"split"`
	Train      Range                 `yaml:"train" json:"train"`
	Test       Range                 `yaml:"test" json:"test"`
	Strategy   string                `yaml:"strategy" json:"strategy"`
	Parameters map[string]any        `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Result     *types.BacktestResult `yaml:"-" json:"result"`
}

// WalkForwardResult pools every split's test segment in split order.
type WalkForwardResult struct {
	Splits []SplitResult `yaml:"splits" json:"splits"`
	// Times, Returns, Equity and Positions are the concatenated out-of-sample
	// series. Equity compounds the pooled returns from the initial capital.
	Times     []time.Time         `yaml:"times" json:"times"`
	Returns   []float64           `yaml:"returns" json:"returns"`
	Equity    []float64           `yaml:"equity" json:"equity"`
	Positions []float64           `yaml:"positions" json:"positions"`
	Trades    []types.Trade       `yaml:"trades" json:"trades"`
	Costs     types.CostBreakdown `yaml:"costs" json:"costs"`
	Metrics   types.Metrics       `yaml:"metrics" json:"metrics"`
	// Reserve is the untouched tail kept for a final go/no-go test.
	Reserve Range `yaml:"reserve" json:"reserve"`
}

// Validator runs walk-forward validation with one backtester.
type Validator struct {
	config     SplitConfig
	backtester engine.Backtester
	workers    int
	observer   log.Observer
	logger     *logger.Logger
	onSplit    func(done int, total int)
}

// Option configures a Validator.
type Option func(*Validator)

// WithWorkers bounds how many splits run at once. Defaults to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(v *Validator) {
		v.workers = n
	}
}

// WithObserver sets the observer receiving split_start and split_end.
func WithObserver(observer log.Observer) Option {
	return func(v *Validator) {
		v.observer = observer
	}
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(v *Validator) {
		v.logger = l
	}
}

// WithSplitProgress sets a callback invoked as splits finish.
func WithSplitProgress(callback func(done int, total int)) Option {
	return func(v *Validator) {
		v.onSplit = callback
	}
}

// NewValidator creates a validator simulating each split with backtester.
func NewValidator(config SplitConfig, backtester engine.Backtester, opts ...Option) *Validator {
	v := &Validator{
		config:     config,
		backtester: backtester,
		workers:    runtime.GOMAXPROCS(0),
		logger:     logger.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(v)
	}

	v.observer = log.OrNop(v.observer)

	if v.workers <= 0 {
		v.workers = runtime.GOMAXPROCS(0)
	}

	return v
}

// Validate runs every split and aggregates the out-of-sample results. Any
// failing split fails the validation; once ctx is cancelled or a split
// fails, no further split is started.
func (v *Validator) Validate(ctx context.Context, bars []types.Bar, factory strategy.Factory) (*WalkForwardResult, error) {
	if factory == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "a strategy factory is required")
	}

	if len(bars) == 0 {
		return nil, errors.New(errors.ErrCodeEmptyData, "no bars to validate on")
	}

	schedule, err := GenerateSplits(len(bars), v.config)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	results := make([]SplitResult, len(schedule.Splits))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)

	for _, split := range schedule.Splits {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			result, err := v.runSplit(gctx, runID, bars, split, factory)
			if err != nil {
				return err
			}

			results[split.Index] = result

			mu.Lock()
			done++
			current := done
			mu.Unlock()

			if v.onSplit != nil {
				v.onSplit(current, len(schedule.Splits))
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slices.SortFunc(results, func(a, b SplitResult) int {
		return a.Test.StartTime.Compare(b.Test.StartTime)
	})

	out, err := aggregate(results)
	if err != nil {
		return nil, err
	}

	out.Reserve = schedule.Reserve(bars)

	v.logger.Info("walk-forward validation finished",
		zap.String("run_id", runID),
		zap.Int("splits", len(results)),
		zap.Int("oos_bars", len(out.Returns)),
		zap.Int("reserve_bars", out.Reserve.Len()))

	return out, nil
}

func (v *Validator) runSplit(ctx context.Context, runID string, bars []types.Bar, split TrainTestSplit, factory strategy.Factory) (SplitResult, error) {
	train := split.Train(bars)
	test := split.Test(bars)

	if err := ctx.Err(); err != nil {
		return SplitResult{}, err
	}

	sr := SplitResult{
		Split: split,
		Train: Range{Start: split.TrainStart, End: split.TrainEnd, StartTime: train[0].Time, EndTime: train[len(train)-1].Time},
		Test:  Range{Start: split.TestStart, End: split.TestEnd, StartTime: test[0].Time, EndTime: test[len(test)-1].Time},
	}

	start := v.event(log.EventSplitStart, runID, split, test[0], "split started")
	start.Fields = map[string]string{
		"train_bars": strconv.Itoa(len(train)),
		"test_bars":  strconv.Itoa(len(test)),
	}
	v.observer.Observe(start)

	fitted, err := strategy.Fit(factory, train)
	if err != nil {
		return sr, v.fail(runID, split, test[0], errors.Wrapf(errors.ErrCodeStrategyFitFailed, err, "split %d", split.Index))
	}

	sr.Strategy = fitted.Name()
	sr.Parameters = strategy.ParametersOf(fitted)

	result, err := v.backtester.Run(ctx, engine.Inputs{
		RunID:      fmt.Sprintf("%s-split-%d", runID, split.Index),
		Bars:       test,
		Warmup:     train,
		Strategy:   fitted,
		Parameters: sr.Parameters,
		SplitIndex: split.Index,
	})
	if err != nil {
		return sr, v.fail(runID, split, test[0], err)
	}

	sr.Result = result

	end := v.event(log.EventSplitEnd, runID, split, test[0], "split finished")
	end.Strategy = sr.Strategy
	end.Fields = map[string]string{
		"trades":       strconv.Itoa(len(result.Trades)),
		"total_return": strconv.FormatFloat(result.Metrics.TotalReturn, 'f', 6, 64),
	}
	v.observer.Observe(end)

	return sr, nil
}

func (v *Validator) event(kind log.EventKind, runID string, split TrainTestSplit, first types.Bar, message string) log.Event {
	return log.Event{
		Kind:       kind,
		RunID:      runID,
		Symbol:     first.Symbol,
		SplitIndex: split.Index,
		BarIndex:   -1,
		Time:       first.Time,
		Message:    message,
	}
}

func (v *Validator) fail(runID string, split TrainTestSplit, first types.Bar, err error) error {
	event := v.event(log.EventFatalError, runID, split, first, "split failed")
	event.Err = err
	v.observer.Observe(event)

	v.logger.Error("walk-forward split failed", zap.Int("split", split.Index), zap.Error(err))

	return err
}

// aggregate pools the ordered split results into one out-of-sample record.
func aggregate(splits []SplitResult) (*WalkForwardResult, error) {
	out := &WalkForwardResult{
		Splits: splits,
		Trades: make([]types.Trade, 0),
		Costs:  types.NewCostBreakdown(0),
	}

	first := splits[0].Result.Metadata
	initial := first.InitialCapital
	equity := initial

	for _, sr := range splits {
		r := sr.Result

		out.Times = append(out.Times, r.Times...)
		out.Positions = append(out.Positions, r.Positions...)
		out.Trades = append(out.Trades, r.Trades...)
		out.Costs = out.Costs.Concat(r.Costs)

		for _, ret := range r.Returns {
			if math.IsNaN(ret) || math.IsInf(ret, 0) {
				ret = 0
			}

			equity *= 1 + ret
			out.Returns = append(out.Returns, ret)
			out.Equity = append(out.Equity, equity)
		}
	}

	m, err := metrics.Calculate(metrics.Input{
		Returns:         out.Returns,
		Equity:          out.Equity,
		InitialCapital:  initial,
		Positions:       out.Positions,
		Trades:          out.Trades,
		Costs:           out.Costs,
		PeriodsPerYear:  first.PeriodsPerYear,
		SkipFirstReturn: first.FirstReturnUndefined,
	})
	if err != nil {
		return nil, err
	}

	out.Metrics = m

	return out, nil
}

// AsResult presents the pooled out-of-sample record in the shared result
// contract so it can be written or resampled like a single run.
func (r *WalkForwardResult) AsResult() *types.BacktestResult {
	metadata := r.Splits[0].Result.Metadata
	last := r.Splits[len(r.Splits)-1].Result.Metadata

	metadata.RunID = strings.TrimSuffix(metadata.RunID, "-split-0")
	metadata.DataEnd = last.DataEnd
	metadata.Bars = len(r.Returns)
	metadata.Parameters = nil
	metadata.SkippedBars = nil
	metadata.HaltedBars = 0
	metadata.OpenPosition = last.OpenPosition

	for _, sr := range r.Splits {
		metadata.HaltedBars += sr.Result.Metadata.HaltedBars
	}

	return &types.BacktestResult{
		Times:     r.Times,
		Equity:    r.Equity,
		Returns:   r.Returns,
		Positions: r.Positions,
		Trades:    r.Trades,
		Fills:     []types.Fill{},
		Costs:     r.Costs,
		Metrics:   r.Metrics,
		Metadata:  metadata,
	}
}
