package mocks

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// DataGenerator generates synthetic bars for tests and benchmarks.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a new DataGenerator with the given seed.
// Use a fixed seed for reproducible results in tests.
func NewDataGenerator(seed uint64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewPCG(seed, 0)),
	}
}

// GeneratorConfig configures how bars are generated.
type GeneratorConfig struct {
	Symbol    string
	StartTime time.Time
	// Interval is the duration between each bar
	Interval time.Duration
	Count    int
	// InitialPrice is the first open
	InitialPrice float64
	// Volatility is the standard deviation of each bar's return
	Volatility float64
	// Drift is the mean return per bar
	Drift float64
	// VolumeBase is the average volume per bar
	VolumeBase float64
	// VolumeVariance is the relative spread of volume (0.0 to 1.0)
	VolumeVariance float64
}

// DefaultConfig returns daily bars with 1% volatility and no drift.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "TEST",
		StartTime:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Interval:       24 * time.Hour,
		Count:          500,
		InitialPrice:   100.0,
		Volatility:     0.01,
		Drift:          0.0,
		VolumeBase:     10000,
		VolumeVariance: 0.3,
	}
}

// Generate creates bars following a geometric random walk. High and low
// always enclose open and close.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Bar {
	bars := make([]types.Bar, config.Count)
	price := config.InitialPrice
	at := config.StartTime

	for i := range bars {
		open := price

		closePrice := open * math.Exp(config.Drift+config.Volatility*g.rng.NormFloat64())

		high := math.Max(open, closePrice) * (1 + math.Abs(g.rng.NormFloat64())*config.Volatility*0.5)
		low := math.Min(open, closePrice) * (1 - math.Min(math.Abs(g.rng.NormFloat64())*config.Volatility*0.5, 0.5))

		volume := config.VolumeBase * (1 + (g.rng.Float64()*2-1)*config.VolumeVariance)
		if volume < 0 {
			volume = config.VolumeBase * 0.1
		}

		bars[i] = types.Bar{
			Symbol: config.Symbol,
			Time:   at,
			Open:   roundToDecimals(open, 4),
			High:   roundToDecimals(high, 4),
			Low:    roundToDecimals(low, 4),
			Close:  roundToDecimals(closePrice, 4),
			Volume: roundToDecimals(volume, 2),
		}

		price = bars[i].Close
		at = at.Add(config.Interval)
	}

	return bars
}

// GenerateBars returns count daily bars from a fixed seed.
func GenerateBars(symbol string, count int) []types.Bar {
	config := DefaultConfig()
	config.Symbol = symbol
	config.Count = count

	return NewDataGenerator(42).Generate(config)
}

// FlatBars returns count daily bars whose open, high, low and close all equal
// the given closes in turn.
func FlatBars(symbol string, closes ...float64) []types.Bar {
	start := DefaultConfig().StartTime
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{
			Symbol: symbol,
			Time:   start.Add(time.Duration(i) * 24 * time.Hour),
			Open:   c,
			High:   c,
			Low:    c,
			Close:  c,
			Volume: 1_000_000,
		}
	}

	return bars
}

func roundToDecimals(val float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(val*pow) / pow
}
