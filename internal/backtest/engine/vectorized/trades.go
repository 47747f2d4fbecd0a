package vectorized

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// tradeLog reconstructs round trips from a position series. A trade opens
// when exposure leaves zero or flips sign and closes when it returns to zero
// or flips. Orders execute at the close of the bar before the change, so that
// close is the entry and exit price.
type tradeLog struct {
	symbol    string
	bars      []types.Bar
	positions []float64
	turnover  []float64
	costs     types.CostBreakdown
	equity    []float64
	initial   float64
}

// Trades returns the closed trades of a position series and the position
// still open after the last bar, if any.
func Trades(
	symbol string,
	bars []types.Bar,
	positions []float64,
	turnover []float64,
	costs types.CostBreakdown,
	equity []float64,
	initial float64,
) ([]types.Trade, *types.Position) {
	l := &tradeLog{
		symbol:    symbol,
		bars:      bars,
		positions: positions,
		turnover:  turnover,
		costs:     costs,
		equity:    equity,
		initial:   initial,
	}

	trades := make([]types.Trade, 0)
	entry := -1

	for t := range positions {
		prev := 0.0
		if t > 0 {
			prev = positions[t-1]
		}

		if sign(positions[t]) == sign(prev) {
			continue
		}

		if entry >= 0 {
			trades = append(trades, l.trade(entry, t))
			entry = -1
		}

		if positions[t] != 0 {
			entry = t
		}
	}

	if entry < 0 {
		return trades, nil
	}

	ref := max(entry-1, 0)
	last := len(bars) - 1

	return trades, &types.Position{
		Symbol:      symbol,
		Quantity:    positions[last],
		EntryPrice:  bars[ref].Close,
		EntryTime:   bars[ref].Time,
		EntryBar:    ref,
		MarketPrice: bars[last].Close,
	}
}

// trade builds the trade held over bars [entry, exit).
func (l *tradeLog) trade(entry int, exit int) types.Trade {
	entryRef := max(entry-1, 0)
	exitRef := exit - 1

	entryTx, entrySlip := l.share(entry, l.positions[entry])
	exitTx, exitSlip := l.share(exit, l.positions[exitRef])

	growth := 1.0

	for t := entry; t < exit; t++ {
		step := l.positions[t]*marketReturn(l.bars, t) - l.costs.Funding[t] - l.costs.Borrow[t]
		if t > entry {
			// exposure resized without changing direction
			step -= l.costs.Transaction[t] + l.costs.Slippage[t]
		}

		growth *= 1 + step
	}

	ret := math.Max((1-entryTx-entrySlip)*growth*(1-exitTx-exitSlip)-1, -1)

	base := l.initial
	if entry > 0 {
		base = l.equity[entry-1]
	}

	exitBase := l.equity[exitRef]

	return types.Trade{
		Symbol:      l.symbol,
		Direction:   direction(l.positions[entry]),
		EntryTime:   l.bars[entryRef].Time,
		ExitTime:    l.bars[exitRef].Time,
		EntryBar:    entryRef,
		ExitBar:     exitRef,
		EntryPrice:  l.bars[entryRef].Close,
		ExitPrice:   l.bars[exitRef].Close,
		Quantity:    math.Abs(l.positions[entry]),
		PnL:         base * ret,
		ReturnPct:   ret,
		Commission:  base*entryTx + exitBase*exitTx,
		Slippage:    base*entrySlip + exitBase*exitSlip,
		HoldingBars: exit - entry,
	}
}

// share returns the part of bar t's transaction and slippage cost caused by
// trading |position| of its turnover. A flip splits the bar's cost between
// the closing and the opening trade.
func (l *tradeLog) share(t int, position float64) (float64, float64) {
	if t >= len(l.turnover) || l.turnover[t] == 0 {
		return 0, 0
	}

	w := math.Abs(position) / l.turnover[t]

	return l.costs.Transaction[t] * w, l.costs.Slippage[t] * w
}

func marketReturn(bars []types.Bar, t int) float64 {
	if t == 0 {
		return 0
	}

	return bars[t].Close/bars[t-1].Close - 1
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

func direction(position float64) types.PositionType {
	if position < 0 {
		return types.PositionTypeShort
	}

	return types.PositionTypeLong
}
