// Package backtest selects a backtester implementation by mode.
package backtest

import (
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/eventdriven"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/vectorized"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// AllModes lists the simulation models New accepts.
var AllModes = []types.Mode{types.ModeVectorized, types.ModeEventDriven}

// New returns the backtester for mode. Both implementations honour the same
// result contract.
func New(mode types.Mode, config engine.Config, opts ...engine.Option) (engine.Backtester, error) {
	switch mode {
	case types.ModeVectorized:
		return vectorized.NewBacktester(config, opts...), nil
	case types.ModeEventDriven:
		return eventdriven.NewBacktester(config, opts...), nil
	default:
		return nil, errors.Newf(errors.ErrCodeUnsupportedMode, "unknown backtest mode %q", mode)
	}
}

// ParseMode accepts the mode names used on the command line.
func ParseMode(name string) (types.Mode, error) {
	switch name {
	case "vectorized", "vector":
		return types.ModeVectorized, nil
	case "event_driven", "event-driven", "event":
		return types.ModeEventDriven, nil
	default:
		return "", errors.Newf(errors.ErrCodeUnsupportedMode, "unknown backtest mode %q", name)
	}
}
