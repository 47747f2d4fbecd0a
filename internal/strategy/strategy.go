// Package strategy defines what the backtesters drive: a decision function
// that only ever sees bars up to the current simulated time.
package strategy

import (
	"fmt"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Strategy produces a target signal from causally visible history.
type Strategy interface {
	// Name identifies the strategy in results.
	Name() string
	// GenerateSignal returns +1, 0, -1 (or a weight in continuous mode) for the
	// last bar of history, or NaN for "no new signal".
	GenerateSignal(history History) (types.Signal, error)
}

// OrderStrategy drives the event-driven backtester with explicit orders.
type OrderStrategy interface {
	Strategy
	// OnBar returns the orders to submit after the last bar of history closed.
	OnBar(history History, state types.PortfolioState) ([]types.OrderIntent, error)
}

// Parameterized strategies report the parameters recorded in result metadata.
type Parameterized interface {
	Parameters() map[string]any
}

// Factory fits or configures a strategy on training bars. Walk-forward calls
// it once per split with that split's train range only.
type Factory func(train []types.Bar) (Strategy, error)

// FixedFactory returns a Factory that ignores training data.
func FixedFactory(s Strategy) Factory {
	return func([]types.Bar) (Strategy, error) {
		return s, nil
	}
}

// ParametersOf returns s's parameters, or nil.
func ParametersOf(s Strategy) map[string]any {
	if p, ok := s.(Parameterized); ok {
		return p.Parameters()
	}

	return nil
}

// Signal calls s.GenerateSignal and converts errors and panics into strategy errors.
func Signal(s Strategy, history History) (sig types.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeStrategyPanicked, "strategy %s panicked at bar %s: %v",
				s.Name(), history.Last().Time, r)
		}
	}()

	sig, err = s.GenerateSignal(history)
	if err != nil {
		return 0, errors.Wrapf(errors.ErrCodeStrategyFailed, err, "strategy %s failed at bar %s", s.Name(), history.Last().Time)
	}

	return sig, nil
}

// Orders calls s.OnBar and converts errors and panics into strategy errors.
func Orders(s OrderStrategy, history History, state types.PortfolioState) (intents []types.OrderIntent, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Newf(errors.ErrCodeStrategyPanicked, "strategy %s panicked at bar %s: %v",
				s.Name(), history.Last().Time, r)
		}
	}()

	intents, err = s.OnBar(history, state)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeStrategyFailed, err, "strategy %s failed at bar %s", s.Name(), history.Last().Time)
	}

	return intents, nil
}

// Fit calls factory and converts errors and panics into fit errors.
func Fit(factory Factory, train []types.Bar) (s Strategy, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeStrategyFitFailed, fmt.Sprintf("strategy fit panicked: %v", r))
		}
	}()

	s, err = factory(train)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStrategyFitFailed, "strategy fit failed", err)
	}

	if s == nil {
		return nil, errors.New(errors.ErrCodeStrategyFitFailed, "strategy factory returned nil")
	}

	return s, nil
}

// SignalSeries evaluates s on every bar of bars, giving it warmup followed by
// bars[0..t] at step t. The result has one signal per bar in bars.
func SignalSeries(s Strategy, warmup []types.Bar, bars []types.Bar) ([]float64, error) {
	all := Join(warmup, bars)
	signals := make([]float64, len(bars))

	for t := range bars {
		sig, err := Signal(s, NewHistory(all, len(warmup)+t))
		if err != nil {
			return nil, err
		}

		signals[t] = sig
	}

	return signals, nil
}

// Join returns warmup followed by bars without modifying either.
func Join(warmup []types.Bar, bars []types.Bar) []types.Bar {
	if len(warmup) == 0 {
		return bars
	}

	all := make([]types.Bar, 0, len(warmup)+len(bars))
	all = append(all, warmup...)

	return append(all, bars...)
}
