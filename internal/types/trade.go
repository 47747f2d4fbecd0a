package types

import (
	"math"
	"time"
)

// Trade is a closed round trip from an entry to an exit. Trades are derived
// from fills (or position changes in vectorized mode) and never mutated.
type Trade struct {
	Symbol     string       `yaml:"symbol" json:"symbol" csv:"symbol"`
	Direction  PositionType `yaml:"direction" json:"direction" csv:"direction"`
	EntryTime  time.Time    `yaml:"entry_time" json:"entry_time" csv:"entry_time"`
	ExitTime   time.Time    `yaml:"exit_time" json:"exit_time" csv:"exit_time"`
	EntryBar   int          `yaml:"entry_bar" json:"entry_bar" csv:"entry_bar"`
	ExitBar    int          `yaml:"exit_bar" json:"exit_bar" csv:"exit_bar"`
	EntryPrice float64      `yaml:"entry_price" json:"entry_price" csv:"entry_price"`
	ExitPrice  float64      `yaml:"exit_price" json:"exit_price" csv:"exit_price"`
	// Quantity is units in event-driven mode and the exposure weight in vectorized mode.
	Quantity float64 `yaml:"quantity" json:"quantity" csv:"quantity"`
	// PnL is the realised profit and loss in currency, net of commission and slippage.
	PnL float64 `yaml:"pnl" json:"pnl" csv:"pnl"`
	// ReturnPct is the net PnL relative to portfolio equity when the trade opened.
	ReturnPct   float64 `yaml:"return_pct" json:"return_pct" csv:"return_pct"`
	Commission  float64 `yaml:"commission" json:"commission" csv:"commission"`
	Slippage    float64 `yaml:"slippage" json:"slippage" csv:"slippage"`
	HoldingBars int     `yaml:"holding_bars" json:"holding_bars" csv:"holding_bars"`
}

// IsWin reports whether the trade made money.
func (t Trade) IsWin() bool {
	return t.PnL > 0
}

// IsLoss reports whether the trade lost money.
func (t Trade) IsLoss() bool {
	return t.PnL < 0
}

// Position is the signed holding of one symbol.
type Position struct {
	Symbol string `yaml:"symbol" json:"symbol"`
	// Quantity is signed: positive long, negative short. Units in event-driven
	// mode and exposure weight in vectorized mode.
	Quantity    float64   `yaml:"quantity" json:"quantity"`
	EntryPrice  float64   `yaml:"entry_price" json:"entry_price"`
	EntryTime   time.Time `yaml:"entry_time" json:"entry_time"`
	EntryBar    int       `yaml:"entry_bar" json:"entry_bar"`
	MarketPrice float64   `yaml:"market_price" json:"market_price"`
}

// IsFlat reports whether no quantity is held.
func (p Position) IsFlat() bool {
	return p.Quantity == 0
}

// Direction returns LONG or SHORT. A flat position reports LONG.
func (p Position) Direction() PositionType {
	if p.Quantity < 0 {
		return PositionTypeShort
	}

	return PositionTypeLong
}

// MarketValue returns the signed value of the holding at MarketPrice.
func (p Position) MarketValue() float64 {
	return p.Quantity * p.MarketPrice
}

// UnrealizedPnL returns the open profit and loss at MarketPrice.
func (p Position) UnrealizedPnL() float64 {
	return (p.MarketPrice - p.EntryPrice) * p.Quantity
}

// UnrealizedReturn returns the open return relative to the entry price.
func (p Position) UnrealizedReturn() float64 {
	if p.EntryPrice == 0 || p.IsFlat() {
		return 0
	}

	return (p.MarketPrice/p.EntryPrice - 1) * math.Copysign(1, p.Quantity)
}

// PortfolioState is the read-only snapshot handed to strategies and the risk manager.
type PortfolioState struct {
	Time       time.Time `yaml:"time" json:"time"`
	BarIndex   int       `yaml:"bar_index" json:"bar_index"`
	Cash       float64   `yaml:"cash" json:"cash"`
	Equity     float64   `yaml:"equity" json:"equity"`
	PeakEquity float64   `yaml:"peak_equity" json:"peak_equity"`
	// Drawdown is Equity/PeakEquity - 1, always <= 0.
	Drawdown float64  `yaml:"drawdown" json:"drawdown"`
	Position Position `yaml:"position" json:"position"`
	// Exposure is the position's market value as a fraction of equity.
	Exposure      float64 `yaml:"exposure" json:"exposure"`
	PendingOrders int     `yaml:"pending_orders" json:"pending_orders"`
	Halted        bool    `yaml:"halted" json:"halted"`
}
