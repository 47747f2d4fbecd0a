package types

// MetricFlag marks a metric that was undefined for the input and reported as 0.
type MetricFlag string

const (
	FlagSharpeUndefined       MetricFlag = "sharpe_undefined"
	FlagSortinoUndefined      MetricFlag = "sortino_undefined"
	FlagWinRateUndefined      MetricFlag = "win_rate_undefined"
	FlagProfitFactorUndefined MetricFlag = "profit_factor_undefined"
	FlagCalmarUndefined       MetricFlag = "calmar_undefined"
	FlagCAGRUndefined         MetricFlag = "cagr_undefined"
	FlagNonFiniteInput        MetricFlag = "non_finite_input"
	FlagNoReturns             MetricFlag = "no_returns"
)

// Metrics are the performance statistics of one run. No field is ever NaN or
// infinite; undefined values are 0 with a matching flag.
type Metrics struct {
	TotalReturn  float64 `yaml:"total_return" json:"total_return"`
	CAGR         float64 `yaml:"cagr" json:"cagr"`
	Sharpe       float64 `yaml:"sharpe" json:"sharpe"`
	Sortino      float64 `yaml:"sortino" json:"sortino"`
	MaxDrawdown  float64 `yaml:"max_drawdown" json:"max_drawdown"`
	Calmar       float64 `yaml:"calmar" json:"calmar"`
	WinRate      float64 `yaml:"win_rate" json:"win_rate"`
	ProfitFactor float64 `yaml:"profit_factor" json:"profit_factor"`

	TotalTrades   int `yaml:"total_trades" json:"total_trades"`
	WinningTrades int `yaml:"winning_trades" json:"winning_trades"`
	LosingTrades  int `yaml:"losing_trades" json:"losing_trades"`
	// AvgTradeDuration is the mean holding period in bars.
	AvgTradeDuration float64 `yaml:"avg_trade_duration" json:"avg_trade_duration"`
	// TotalCosts is the sum of all cost series, in units of returns.
	TotalCosts float64 `yaml:"total_costs" json:"total_costs"`
	// Exposure is the fraction of bars with a non-zero position.
	Exposure float64 `yaml:"exposure" json:"exposure"`

	Flags []MetricFlag `yaml:"flags,omitempty" json:"flags,omitempty"`
}

// HasFlag reports whether flag was raised.
func (m Metrics) HasFlag(flag MetricFlag) bool {
	for _, f := range m.Flags {
		if f == flag {
			return true
		}
	}

	return false
}

// AsMap returns the numeric metrics keyed by their serialized names.
func (m Metrics) AsMap() map[string]float64 {
	return map[string]float64{
		"total_return":       m.TotalReturn,
		"cagr":               m.CAGR,
		"sharpe":             m.Sharpe,
		"sortino":            m.Sortino,
		"max_drawdown":       m.MaxDrawdown,
		"calmar":             m.Calmar,
		"win_rate":           m.WinRate,
		"profit_factor":      m.ProfitFactor,
		"total_trades":       float64(m.TotalTrades),
		"winning_trades":     float64(m.WinningTrades),
		"losing_trades":      float64(m.LosingTrades),
		"avg_trade_duration": m.AvgTradeDuration,
		"total_costs":        m.TotalCosts,
		"exposure":           m.Exposure,
	}
}
