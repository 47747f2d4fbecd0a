package types

import "time"

// Mode identifies which backtester produced a result.
type Mode string

const (
	ModeVectorized  Mode = "vectorized"
	ModeEventDriven Mode = "event_driven"
)

// Metadata describes how a result was produced.
type Metadata struct {
	SchemaVersion  string         `yaml:"schema_version" json:"schema_version"`
	EngineVersion  string         `yaml:"engine_version" json:"engine_version"`
	RunID          string         `yaml:"run_id" json:"run_id"`
	Mode           Mode           `yaml:"mode" json:"mode"`
	Strategy       string         `yaml:"strategy" json:"strategy"`
	Parameters     map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Symbol         string         `yaml:"symbol" json:"symbol"`
	Timeframe      Timeframe      `yaml:"timeframe,omitempty" json:"timeframe,omitempty"`
	DataStart      time.Time      `yaml:"data_start" json:"data_start"`
	DataEnd        time.Time      `yaml:"data_end" json:"data_end"`
	Bars           int            `yaml:"bars" json:"bars"`
	InitialCapital float64        `yaml:"initial_capital" json:"initial_capital"`
	PeriodsPerYear float64        `yaml:"periods_per_year" json:"periods_per_year"`
	Costs          CostConfig     `yaml:"costs" json:"costs"`
	// FirstReturnUndefined is set when Returns[0] has no prior close and is stored as 0.
	FirstReturnUndefined bool       `yaml:"first_return_undefined" json:"first_return_undefined"`
	DataRepairs          DataRepair `yaml:"data_repairs" json:"data_repairs"`
	// SkippedBars lists bars where a sizing or cost failure was treated as no trade.
	SkippedBars []int `yaml:"skipped_bars,omitempty" json:"skipped_bars,omitempty"`
	// HaltedBars counts bars on which the halt policy suppressed new decisions.
	HaltedBars int `yaml:"halted_bars" json:"halted_bars"`
	// OpenPosition is the position still held after the last bar. It is not a trade.
	OpenPosition *Position `yaml:"open_position,omitempty" json:"open_position,omitempty"`
}

// BacktestResult is the output contract shared by every backtester. All
// per-bar series have one entry per simulated bar. A result is never modified
// after it is returned.
type BacktestResult struct {
	Times []time.Time `yaml:"times" json:"times"`
	// Equity is the portfolio value at the end of each bar.
	Equity []float64 `yaml:"equity" json:"equity"`
	// Returns are net of all costs.
	Returns []float64 `yaml:"returns" json:"returns"`
	// Positions is the exposure held through each bar as a fraction of equity.
	Positions []float64     `yaml:"positions" json:"positions"`
	Trades    []Trade       `yaml:"trades" json:"trades"`
	Fills     []Fill        `yaml:"fills" json:"fills"`
	Costs     CostBreakdown `yaml:"costs" json:"costs"`
	Metrics   Metrics       `yaml:"metrics" json:"metrics"`
	Metadata  Metadata      `yaml:"metadata" json:"metadata"`
}

// Len returns the number of simulated bars.
func (r *BacktestResult) Len() int {
	return len(r.Equity)
}

// FinalEquity returns the equity after the last bar, or the initial capital
// for an empty result.
func (r *BacktestResult) FinalEquity() float64 {
	if len(r.Equity) == 0 {
		return r.Metadata.InitialCapital
	}

	return r.Equity[len(r.Equity)-1]
}
