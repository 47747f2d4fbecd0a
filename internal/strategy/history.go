package strategy

import (
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// History is a read-only view of bars up to and including the current bar.
// Its backing slice is capped at the current bar so no reslicing or append
// can reach a later bar.
type History struct {
	bars []types.Bar
}

// NewHistory returns the view of all[0..t].
func NewHistory(all []types.Bar, t int) History {
	return History{bars: all[: t+1 : t+1]}
}

// Len returns the number of visible bars.
func (h History) Len() int {
	return len(h.bars)
}

// At returns the i-th visible bar.
func (h History) At(i int) types.Bar {
	return h.bars[i]
}

// Last returns the current bar.
func (h History) Last() types.Bar {
	if len(h.bars) == 0 {
		return types.Bar{}
	}

	return h.bars[len(h.bars)-1]
}

// Now returns the current simulated time.
func (h History) Now() time.Time {
	return h.Last().Time
}

// Bars returns the visible bars. Callers must not modify them.
func (h History) Bars() []types.Bar {
	return h.bars
}

// Tail returns the last n visible bars, or fewer when history is shorter.
func (h History) Tail(n int) []types.Bar {
	if n >= len(h.bars) {
		return h.bars
	}

	return h.bars[len(h.bars)-n:]
}

// Closes returns the close prices of the last n visible bars.
func (h History) Closes(n int) []float64 {
	return types.Closes(h.Tail(n))
}
