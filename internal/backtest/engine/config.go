package engine

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/cost"
	"github.com/rxtech-lab/argo-backtest/internal/risk"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Config is shared by both backtesters. Fields a backtester does not use are ignored by it.
type Config struct {
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" jsonschema:"title=Initial Capital,description=Starting equity of the run,minimum=0" validate:"gt=0"`
	// PeriodsPerYear annualises metrics: 365 for always-on markets, 252 for session markets (daily bars).
	PeriodsPerYear float64                    `yaml:"periods_per_year" json:"periods_per_year" jsonschema:"title=Periods Per Year,description=Bars per year used to annualise metrics (e.g. 365 or 252 for daily bars),minimum=0" validate:"gt=0"`
	Timeframe      types.Timeframe            `yaml:"timeframe" json:"timeframe" jsonschema:"title=Timeframe,description=Bar interval. Enables gap detection when it has a fixed length"`
	StartTime      optional.Option[time.Time] `yaml:"start_time" json:"start_time" jsonschema:"title=Start Time,description=Optional start time for the backtest period"`
	EndTime        optional.Option[time.Time] `yaml:"end_time" json:"end_time" jsonschema:"title=End Time,description=Optional end time for the backtest period"`
	// ContinuousSignals accepts fractional signals in [-1, 1] instead of {-1, 0, +1}.
	ContinuousSignals bool `yaml:"continuous_signals" json:"continuous_signals" jsonschema:"title=Continuous Signals,description=Accept fractional target exposures in [-1, 1]"`
	// LenientData forward-fills missing fields and gaps instead of failing.
	LenientData bool `yaml:"lenient_data" json:"lenient_data" jsonschema:"title=Lenient Data,description=Forward-fill missing fields and timestamp gaps and record the repairs"`
	// MaxVolumeFraction caps an event-driven fill at this fraction of bar volume. 0 disables the cap.
	MaxVolumeFraction float64 `yaml:"max_volume_fraction" json:"max_volume_fraction" jsonschema:"title=Max Volume Fraction,description=Largest fraction of bar volume a single fill may take (0 disables),minimum=0,maximum=1" validate:"gte=0,lte=1"`
	// MaxDrawdownHalt blocks new entries once drawdown reaches this fraction. 0 disables the halt.
	MaxDrawdownHalt float64 `yaml:"max_drawdown_halt" json:"max_drawdown_halt" jsonschema:"title=Max Drawdown Halt,description=Drawdown fraction at which new entries stop (0 disables),minimum=0,maximum=1" validate:"gte=0,lt=1"`
	// RiskPerTrade is the capital fraction passed to the sizing method.
	RiskPerTrade float64           `yaml:"risk_per_trade" json:"risk_per_trade" jsonschema:"title=Risk Per Trade,description=Capital fraction committed (fixed_fraction) or risked (fixed_risk) per order,minimum=0,maximum=1" validate:"gt=0,lte=1"`
	SizingMethod risk.SizingMethod `yaml:"sizing_method" json:"sizing_method" jsonschema:"title=Sizing Method,description=How order quantity is derived from capital"`
	// MaxLeverage caps gross exposure over equity. 0 disables the cap.
	MaxLeverage float64 `yaml:"max_leverage" json:"max_leverage" jsonschema:"title=Max Leverage,description=Largest gross exposure relative to equity (0 disables),minimum=0" validate:"gte=0"`
	// DecimalPrecision rounds event-driven order quantities down. None keeps fractional units.
	DecimalPrecision optional.Option[int] `yaml:"decimal_precision" json:"decimal_precision" jsonschema:"title=Decimal Precision,description=Decimal places kept in order quantities"`
	Costs            types.CostConfig     `yaml:"costs" json:"costs" jsonschema:"title=Costs,description=Transaction fee slippage funding and borrow rates" validate:"-"`
}

// UnmarshalYAML implements custom unmarshaling for Config.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type Config struct {
		InitialCapital    float64           `yaml:"initial_capital"`
		PeriodsPerYear    float64           `yaml:"periods_per_year"`
		Timeframe         types.Timeframe   `yaml:"timeframe"`
		StartTime         *time.Time        `yaml:"start_time"`
		EndTime           *time.Time        `yaml:"end_time"`
		ContinuousSignals bool              `yaml:"continuous_signals"`
		LenientData       bool              `yaml:"lenient_data"`
		MaxVolumeFraction float64           `yaml:"max_volume_fraction"`
		MaxDrawdownHalt   float64           `yaml:"max_drawdown_halt"`
		RiskPerTrade      *float64          `yaml:"risk_per_trade"`
		SizingMethod      risk.SizingMethod `yaml:"sizing_method"`
		MaxLeverage       float64           `yaml:"max_leverage"`
		DecimalPrecision  *int              `yaml:"decimal_precision"`
		Costs             types.CostConfig  `yaml:"costs"`
	}

	var config Config
	if err := unmarshal(&config); err != nil {
		return err
	}

	c.InitialCapital = config.InitialCapital
	c.PeriodsPerYear = config.PeriodsPerYear
	c.Timeframe = config.Timeframe
	c.ContinuousSignals = config.ContinuousSignals
	c.LenientData = config.LenientData
	c.MaxVolumeFraction = config.MaxVolumeFraction
	c.MaxDrawdownHalt = config.MaxDrawdownHalt
	c.SizingMethod = config.SizingMethod
	c.MaxLeverage = config.MaxLeverage
	c.Costs = config.Costs

	c.RiskPerTrade = DefaultConfig().RiskPerTrade
	if config.RiskPerTrade != nil {
		c.RiskPerTrade = *config.RiskPerTrade
	}

	c.StartTime = optional.None[time.Time]()
	if config.StartTime != nil {
		c.StartTime = optional.Some(*config.StartTime)
	}

	c.EndTime = optional.None[time.Time]()
	if config.EndTime != nil {
		c.EndTime = optional.Some(*config.EndTime)
	}

	c.DecimalPrecision = optional.None[int]()
	if config.DecimalPrecision != nil {
		c.DecimalPrecision = optional.Some(*config.DecimalPrecision)
	}

	return nil
}

// MarshalYAML writes optional fields as plain values, or omits them when unset,
// so the output reads back through UnmarshalYAML.
func (c Config) MarshalYAML() (interface{}, error) {
	type Config struct {
		InitialCapital    float64           `yaml:"initial_capital"`
		PeriodsPerYear    float64           `yaml:"periods_per_year"`
		Timeframe         types.Timeframe   `yaml:"timeframe,omitempty"`
		StartTime         *time.Time        `yaml:"start_time,omitempty"`
		EndTime           *time.Time        `yaml:"end_time,omitempty"`
		ContinuousSignals bool              `yaml:"continuous_signals"`
		LenientData       bool              `yaml:"lenient_data"`
		MaxVolumeFraction float64           `yaml:"max_volume_fraction"`
		MaxDrawdownHalt   float64           `yaml:"max_drawdown_halt"`
		RiskPerTrade      float64           `yaml:"risk_per_trade"`
		SizingMethod      risk.SizingMethod `yaml:"sizing_method,omitempty"`
		MaxLeverage       float64           `yaml:"max_leverage"`
		DecimalPrecision  *int              `yaml:"decimal_precision,omitempty"`
		Costs             types.CostConfig  `yaml:"costs"`
	}

	out := Config{
		InitialCapital:    c.InitialCapital,
		PeriodsPerYear:    c.PeriodsPerYear,
		Timeframe:         c.Timeframe,
		ContinuousSignals: c.ContinuousSignals,
		LenientData:       c.LenientData,
		MaxVolumeFraction: c.MaxVolumeFraction,
		MaxDrawdownHalt:   c.MaxDrawdownHalt,
		RiskPerTrade:      c.RiskPerTrade,
		SizingMethod:      c.SizingMethod,
		MaxLeverage:       c.MaxLeverage,
		Costs:             c.Costs,
	}

	if c.StartTime.IsSome() {
		start := c.StartTime.Unwrap()
		out.StartTime = &start
	}

	if c.EndTime.IsSome() {
		end := c.EndTime.Unwrap()
		out.EndTime = &end
	}

	if c.DecimalPrecision.IsSome() {
		precision := c.DecimalPrecision.Unwrap()
		out.DecimalPrecision = &precision
	}

	return out, nil
}

// Validate fails fast on configuration errors before any simulation starts.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid backtest configuration", err)
	}

	if c.Timeframe != "" && !c.Timeframe.IsValid() {
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown timeframe %q", c.Timeframe)
	}

	switch c.SizingMethod {
	case "", risk.SizingFixedFraction, risk.SizingFixedRisk:
	default:
		return errors.Newf(errors.ErrCodeInvalidConfiguration, "unknown sizing method %q", c.SizingMethod)
	}

	if c.StartTime.IsSome() && c.EndTime.IsSome() && !c.EndTime.Unwrap().After(c.StartTime.Unwrap()) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "end_time must be after start_time")
	}

	if c.DecimalPrecision.IsSome() && c.DecimalPrecision.Unwrap() < 0 {
		return errors.New(errors.ErrCodeInvalidConfiguration, "decimal_precision must not be negative")
	}

	return cost.ValidateConfig(c.Costs)
}

// QuantityPrecision returns the rounding precision for order sizes, -1 when fractional.
func (c *Config) QuantityPrecision() int {
	if c.DecimalPrecision.IsNone() {
		return -1
	}

	return c.DecimalPrecision.Unwrap()
}

// InRange reports whether t lies within the optional start and end times.
func (c *Config) InRange(t time.Time) bool {
	if c.StartTime.IsSome() && t.Before(c.StartTime.Unwrap()) {
		return false
	}

	if c.EndTime.IsSome() && t.After(c.EndTime.Unwrap()) {
		return false
	}

	return true
}

// GenerateSchema generates a JSON schema for the Config.
func (c *Config) GenerateSchema() (*jsonschema.Schema, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		ExpandedStruct:             true,
		AllowAdditionalProperties:  false,
		Mapper: func(t reflect.Type) *jsonschema.Schema {
			switch t {
			case reflect.TypeOf(time.Duration(0)):
				return &jsonschema.Schema{
					Type:        "string",
					Description: "Duration such as 8h or 30m",
				}
			case reflect.TypeOf(types.Timeframe("")):
				return &jsonschema.Schema{
					Type: "string",
					Enum: types.AllTimeframes,
				}
			case reflect.TypeOf(risk.SizingMethod("")):
				return &jsonschema.Schema{
					Type: "string",
					Enum: risk.AllSizingMethods,
				}
			}

			if t.String() == "optional.Option[time.Time]" {
				return &jsonschema.Schema{
					Type:   "string",
					Format: "date-time",
				}
			}

			if strings.HasPrefix(t.String(), "optional.Option[int]") {
				return &jsonschema.Schema{
					Type: "integer",
				}
			}

			return nil
		},
	}

	schema := reflector.Reflect(c)

	schema.Title = "argo-backtest-config"
	schema.Description = "Configuration schema for the vectorized and event-driven backtesters"
	schema.Version = "http://json-schema.org/draft-07/schema#"

	return schema, nil
}

// GenerateSchemaJSON generates a JSON schema string for the Config.
func (c *Config) GenerateSchemaJSON() (string, error) {
	schema, err := c.GenerateSchema()
	if err != nil {
		return "", err
	}

	schemaBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(schemaBytes), nil
}

// DefaultConfig returns a daily, cost-free configuration for 10,000 of capital.
func DefaultConfig() Config {
	return Config{
		InitialCapital:   10000,
		PeriodsPerYear:   252,
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
		RiskPerTrade:     1,
		SizingMethod:     risk.SizingFixedFraction,
		DecimalPrecision: optional.None[int](),
	}
}

// TestConfig returns DefaultConfig with the given transaction cost rate.
func TestConfig(transactionCostRate float64) Config {
	config := DefaultConfig()
	config.Costs.TransactionCostRate = transactionCostRate

	return config
}

// EmptyConfig returns a Config with zero values. It does not validate.
func EmptyConfig() Config {
	return Config{
		StartTime:        optional.None[time.Time](),
		EndTime:          optional.None[time.Time](),
		DecimalPrecision: optional.None[int](),
	}
}
