package types

import "time"

// SlippageModelType selects the slippage model.
type SlippageModelType string

const (
	SlippageModelFixed              SlippageModelType = "fixed"
	SlippageModelVolumeWeighted     SlippageModelType = "volume_weighted"
	SlippageModelVolatilityAdjusted SlippageModelType = "volatility_adjusted"
)

// FeeSchedule selects how event-driven fills are charged commission.
type FeeSchedule string

const (
	// FeeSchedulePercentage charges notional × transaction_cost_rate.
	FeeSchedulePercentage FeeSchedule = "percentage"
	// FeeScheduleInteractiveBroker charges a per-unit fee with a minimum per order.
	FeeScheduleInteractiveBroker FeeSchedule = "interactive_broker"
	// FeeScheduleZero charges nothing.
	FeeScheduleZero FeeSchedule = "zero"
)

// SlippageConfig configures the slippage model.
type SlippageConfig struct {
	// Model defaults to fixed.
	Model SlippageModelType `yaml:"model" json:"model" jsonschema:"enum=fixed,enum=volume_weighted,enum=volatility_adjusted" validate:"omitempty,oneof=fixed volume_weighted volatility_adjusted"`
	// Rate is the fixed slippage fraction per unit of turnover.
	Rate float64 `yaml:"rate" json:"rate" validate:"gte=0,lt=1"`
	// BaseRate scales the square-root volume impact.
	BaseRate float64 `yaml:"base_rate" json:"base_rate" validate:"gte=0,lt=1"`
	// Multiplier scales ATR for the volatility-adjusted model.
	Multiplier float64 `yaml:"multiplier" json:"multiplier" validate:"gte=0"`
	// ATRPeriod defaults to 14.
	ATRPeriod int `yaml:"atr_period" json:"atr_period" validate:"gte=0"`
}

// CostConfig holds every cost rate a run is charged with. All components are
// independent and reported separately.
type CostConfig struct {
	// TransactionCostRate is charged on |Δposition| (fraction of traded notional).
	TransactionCostRate float64 `yaml:"transaction_cost_rate" json:"transaction_cost_rate" validate:"gte=0,lt=1"`
	// FeeSchedule applies to event-driven fills; defaults to percentage.
	FeeSchedule FeeSchedule    `yaml:"fee_schedule" json:"fee_schedule" jsonschema:"enum=percentage,enum=interactive_broker,enum=zero" validate:"omitempty,oneof=percentage interactive_broker zero"`
	Slippage    SlippageConfig `yaml:"slippage" json:"slippage"`
	// FundingRate is charged on |position| once per settlement.
	FundingRate float64 `yaml:"funding_rate" json:"funding_rate" validate:"gte=0,lt=1"`
	// FundingInterval is the settlement cadence. Zero settles every bar.
	FundingInterval time.Duration `yaml:"funding_interval" json:"funding_interval" validate:"gte=0"`
	// BorrowRate is the annualised rate charged on short exposure.
	BorrowRate float64 `yaml:"borrow_rate" json:"borrow_rate" validate:"gte=0,lt=10"`
}

// CostBreakdown keeps each cost component as its own per-bar series, expressed
// as a fraction of the prior bar's equity (the unit of Returns).
type CostBreakdown struct {
	Transaction []float64 `yaml:"transaction" json:"transaction"`
	Slippage    []float64 `yaml:"slippage" json:"slippage"`
	Funding     []float64 `yaml:"funding" json:"funding"`
	Borrow      []float64 `yaml:"borrow" json:"borrow"`
}

// CostTotals sums each component of a CostBreakdown.
type CostTotals struct {
	Transaction float64 `yaml:"transaction" json:"transaction"`
	Slippage    float64 `yaml:"slippage" json:"slippage"`
	Funding     float64 `yaml:"funding" json:"funding"`
	Borrow      float64 `yaml:"borrow" json:"borrow"`
	Total       float64 `yaml:"total" json:"total"`
}

// NewCostBreakdown returns a zeroed breakdown for n bars.
func NewCostBreakdown(n int) CostBreakdown {
	return CostBreakdown{
		Transaction: make([]float64, n),
		Slippage:    make([]float64, n),
		Funding:     make([]float64, n),
		Borrow:      make([]float64, n),
	}
}

// Len returns the number of bars covered.
func (c CostBreakdown) Len() int {
	return len(c.Transaction)
}

// At returns the summed cost of bar i.
func (c CostBreakdown) At(i int) float64 {
	return c.Transaction[i] + c.Slippage[i] + c.Funding[i] + c.Borrow[i]
}

// Totals sums each component over all bars.
func (c CostBreakdown) Totals() CostTotals {
	var t CostTotals

	for i := range c.Transaction {
		t.Transaction += c.Transaction[i]
		t.Slippage += c.Slippage[i]
		t.Funding += c.Funding[i]
		t.Borrow += c.Borrow[i]
	}

	t.Total = t.Transaction + t.Slippage + t.Funding + t.Borrow

	return t
}

// Concat returns a new breakdown with other appended after c.
func (c CostBreakdown) Concat(other CostBreakdown) CostBreakdown {
	return CostBreakdown{
		Transaction: append(append([]float64{}, c.Transaction...), other.Transaction...),
		Slippage:    append(append([]float64{}, c.Slippage...), other.Slippage...),
		Funding:     append(append([]float64{}, c.Funding...), other.Funding...),
		Borrow:      append(append([]float64{}, c.Borrow...), other.Borrow...),
	}
}
