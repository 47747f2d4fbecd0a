// Package engine holds what the vectorized and event-driven backtesters share:
// configuration, run inputs, injected collaborators and the result contract
// bookkeeping around a run.
package engine

import (
	"context"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/cost"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/risk"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Backtester simulates one strategy over one symbol's bars.
type Backtester interface {
	// Mode reports which simulation model the backtester implements.
	Mode() types.Mode
	// Run simulates the inputs and returns an immutable result. The context is
	// only checked before the simulation starts; runs are CPU bound.
	Run(ctx context.Context, in Inputs) (*types.BacktestResult, error)
}

// Inputs is what a single run simulates.
type Inputs struct {
	// RunID defaults to a random UUID.
	RunID string
	// Symbol defaults to the symbol of the first bar.
	Symbol string
	Bars   []types.Bar
	// Warmup bars precede Bars and are visible to the strategy but never traded.
	Warmup []types.Bar
	// Signals, when set, replace Strategy.GenerateSignal and must have one entry per bar.
	Signals  []float64
	Strategy strategy.Strategy
	// Parameters recorded in result metadata. Defaults to the strategy's own parameters.
	Parameters map[string]any
	// DataRepairs made while loading the bars, merged with any made by the backtester.
	DataRepairs types.DataRepair
	// SplitIndex tags observer events during walk-forward validation. -1 otherwise.
	SplitIndex int
}

// OnProcessDataCallback is called after each simulated bar.
type OnProcessDataCallback func(current int, total int) error

// Options are the collaborators injected into a backtester.
type Options struct {
	Logger      *logger.Logger
	Observer    log.Observer
	RiskManager risk.Manager
	HaltPolicy  risk.HaltPolicy
	// PreShiftedSignals tells the vectorized backtester that Signals[t] already
	// is the position held over bar t, so it must not shift them again.
	PreShiftedSignals bool
	OnProcessData     *OnProcessDataCallback
}

// Option mutates Options.
type Option func(*Options)

// WithLogger sets the logger used for per-bar diagnostics.
func WithLogger(l *logger.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithObserver sets the observer receiving run checkpoints.
func WithObserver(observer log.Observer) Option {
	return func(o *Options) {
		o.Observer = observer
	}
}

// WithRiskManager overrides the sizing and pre-trade check collaborator.
func WithRiskManager(m risk.Manager) Option {
	return func(o *Options) {
		o.RiskManager = m
	}
}

// WithHaltPolicy overrides the halt condition.
func WithHaltPolicy(p risk.HaltPolicy) Option {
	return func(o *Options) {
		o.HaltPolicy = p
	}
}

// WithPreShiftedSignals disables the vectorized one-bar signal shift.
func WithPreShiftedSignals() Option {
	return func(o *Options) {
		o.PreShiftedSignals = true
	}
}

// WithProgress sets a callback invoked after each bar.
func WithProgress(callback OnProcessDataCallback) Option {
	return func(o *Options) {
		o.OnProcessData = &callback
	}
}

// NewOptions applies opts over defaults derived from cfg: a no-op logger and
// observer, a DefaultManager and the drawdown halt configured in cfg.
func NewOptions(cfg Config, opts ...Option) Options {
	o := Options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}

	o.Observer = log.OrNop(o.Observer)

	if o.RiskManager == nil {
		manager := risk.NewDefaultManager(cfg.MaxLeverage, cost.NewFeeModel(cfg.Costs))
		manager.DecimalPrecision = cfg.QuantityPrecision()
		o.RiskManager = manager
	}

	if o.HaltPolicy == nil {
		o.HaltPolicy = risk.NewHaltPolicy(cfg.MaxDrawdownHalt)
	}

	return o
}

// Progress reports bar progress through the configured callback.
func (o Options) Progress(current int, total int) error {
	if o.OnProcessData == nil {
		return nil
	}

	return (*o.OnProcessData)(current, total)
}
