package risk

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// HaltPolicy decides whether new entries are blocked on the current bar.
// Existing positions are still marked and carried while halted.
type HaltPolicy interface {
	Halted(state types.PortfolioState) bool
}

// NoHalt never halts.
type NoHalt struct{}

func (NoHalt) Halted(types.PortfolioState) bool {
	return false
}

// DrawdownHalt halts once drawdown from peak equity reaches MaxDrawdown (e.g. 0.2 for 20%).
// It holds no state so one policy can serve concurrent runs.
type DrawdownHalt struct {
	MaxDrawdown float64
}

// NewHaltPolicy returns a DrawdownHalt, or NoHalt when maxDrawdown is 0.
func NewHaltPolicy(maxDrawdown float64) HaltPolicy {
	if maxDrawdown <= 0 {
		return NoHalt{}
	}

	return &DrawdownHalt{MaxDrawdown: maxDrawdown}
}

func (h *DrawdownHalt) Halted(state types.PortfolioState) bool {
	if state.PeakEquity <= 0 {
		return false
	}

	return -state.Drawdown >= math.Abs(h.MaxDrawdown)
}
