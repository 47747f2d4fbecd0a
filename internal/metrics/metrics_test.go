package metrics

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type MetricsTestSuite struct {
	suite.Suite
}

func TestMetricsSuite(t *testing.T) {
	suite.Run(t, new(MetricsTestSuite))
}

func (suite *MetricsTestSuite) TestPeriodsPerYearRequired() {
	for _, ppy := range []float64{0, -252, math.NaN(), math.Inf(1)} {
		_, err := Calculate(Input{Returns: []float64{0.01}, Equity: []float64{101}, InitialCapital: 100, PeriodsPerYear: ppy})
		suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
	}
}

func (suite *MetricsTestSuite) TestTotalReturnAndCAGR() {
	m, err := Calculate(Input{
		Returns:        []float64{0.1, 0.1},
		Equity:         []float64{110, 121},
		InitialCapital: 100,
		PeriodsPerYear: 2,
	})
	suite.NoError(err)
	suite.InDelta(0.21, m.TotalReturn, 1e-12)
	// two periods with two periods per year is one year
	suite.InDelta(0.21, m.CAGR, 1e-12)
}

func (suite *MetricsTestSuite) TestSharpeZeroStd() {
	m, err := Calculate(Input{
		Returns:        []float64{0, 0, 0, 0},
		Equity:         []float64{100, 100, 100, 100},
		InitialCapital: 100,
		PeriodsPerYear: 252,
	})
	suite.NoError(err)
	suite.Equal(0.0, m.Sharpe)
	suite.True(m.HasFlag(types.FlagSharpeUndefined))
	suite.True(m.HasFlag(types.FlagSortinoUndefined))
	suite.True(m.HasFlag(types.FlagCalmarUndefined))
	suite.Equal(0.0, m.MaxDrawdown)
	suite.Equal(0.0, m.Calmar)
}

func (suite *MetricsTestSuite) TestSharpeAndSortino() {
	returns := []float64{0.01, -0.02, 0.03, -0.01, 0.02}

	sharpe, ok := Sharpe(returns, 252)
	suite.True(ok)

	mean := 0.006
	variance := 0.0
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / 4)
	suite.InDelta(mean/std*math.Sqrt(252), sharpe, 1e-9)

	sortino, ok := Sortino(returns, 252)
	suite.True(ok)
	// downside {-0.02, -0.01}: sample std = 0.00707...
	suite.InDelta(mean/math.Sqrt(0.00005)*math.Sqrt(252), sortino, 1e-9)

	_, ok = Sortino([]float64{0.01, -0.01, 0.02}, 252)
	suite.False(ok)
}

func (suite *MetricsTestSuite) TestMaxDrawdown() {
	tests := []struct {
		name     string
		equity   []float64
		expected float64
	}{
		{"empty", nil, 0},
		{"monotone increasing", []float64{100, 101, 105, 110}, 0},
		{"flat", []float64{100, 100, 100}, 0},
		{"single dip", []float64{100, 120, 90, 130}, 90.0/120 - 1},
		{"two dips picks deepest", []float64{100, 80, 100, 95}, -0.2},
		{"ruin", []float64{100, 0, 0}, -1},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.InDelta(tc.expected, MaxDrawdown(tc.equity), 1e-12)
		})
	}
}

func (suite *MetricsTestSuite) TestMaxDrawdownProperty() {
	rng := rand.New(rand.NewPCG(7, 11))

	for trial := 0; trial < 200; trial++ {
		equity := make([]float64, 50)
		value := 100.0
		monotone := true

		for i := range equity {
			step := rng.NormFloat64() * 0.01
			if trial%2 == 0 {
				step = math.Abs(step)
			}

			next := value * (1 + step)
			if i > 0 && next < value {
				monotone = false
			}

			value = next
			equity[i] = value
		}

		mdd := MaxDrawdown(equity)
		suite.LessOrEqual(mdd, 0.0)

		if monotone {
			suite.Equal(0.0, mdd)
		} else {
			suite.Less(mdd, 0.0)
		}
	}
}

func (suite *MetricsTestSuite) TestDrawdowns() {
	dd := Drawdowns([]float64{100, 120, 90})
	suite.Equal([]float64{0, 0, -0.25}, dd)
}

func (suite *MetricsTestSuite) TestTradeMetrics() {
	trades := []types.Trade{
		{PnL: 100, HoldingBars: 2},
		{PnL: -50, HoldingBars: 4},
		{PnL: 30, HoldingBars: 6},
		{PnL: 0, HoldingBars: 4},
	}

	m, err := Calculate(Input{
		Returns:        []float64{0.01, -0.005},
		Equity:         []float64{101, 100.495},
		InitialCapital: 100,
		Trades:         trades,
		PeriodsPerYear: 365,
	})
	suite.NoError(err)
	suite.Equal(4, m.TotalTrades)
	suite.Equal(2, m.WinningTrades)
	suite.Equal(1, m.LosingTrades)
	suite.InDelta(0.5, m.WinRate, 1e-12)
	suite.InDelta(130.0/50.0, m.ProfitFactor, 1e-12)
	suite.InDelta(4.0, m.AvgTradeDuration, 1e-12)
	suite.False(m.HasFlag(types.FlagWinRateUndefined))
}

func (suite *MetricsTestSuite) TestNoTradesAndNoLosses() {
	m, err := Calculate(Input{Returns: []float64{0.01}, Equity: []float64{101}, InitialCapital: 100, PeriodsPerYear: 365})
	suite.NoError(err)
	suite.Equal(0.0, m.WinRate)
	suite.True(m.HasFlag(types.FlagWinRateUndefined))
	suite.True(m.HasFlag(types.FlagProfitFactorUndefined))

	m, err = Calculate(Input{
		Returns:        []float64{0.01},
		Equity:         []float64{101},
		InitialCapital: 100,
		Trades:         []types.Trade{{PnL: 1}},
		PeriodsPerYear: 365,
	})
	suite.NoError(err)
	suite.Equal(1.0, m.WinRate)
	suite.Equal(0.0, m.ProfitFactor)
	suite.True(m.HasFlag(types.FlagProfitFactorUndefined))
}

func (suite *MetricsTestSuite) TestNonFiniteInputsAreFlagged() {
	m, err := Calculate(Input{
		Returns:        []float64{0.01, math.NaN(), -0.02, 0.005},
		Equity:         []float64{101, math.Inf(1), 98.98, 99.47},
		InitialCapital: 100,
		PeriodsPerYear: 252,
	})
	suite.NoError(err)
	suite.True(m.HasFlag(types.FlagNonFiniteInput))

	for name, v := range m.AsMap() {
		suite.False(math.IsNaN(v) || math.IsInf(v, 0), name)
	}
}

func (suite *MetricsTestSuite) TestSkipFirstReturn() {
	in := Input{
		Returns:         []float64{0.5, 0.01, 0.02},
		Equity:          []float64{100, 101, 103.02},
		InitialCapital:  100,
		PeriodsPerYear:  252,
		SkipFirstReturn: true,
	}

	m, err := Calculate(in)
	suite.NoError(err)

	expected, ok := Sharpe([]float64{0.01, 0.02}, 252)
	suite.True(ok)
	suite.InDelta(expected, m.Sharpe, 1e-12)
}

func (suite *MetricsTestSuite) TestCostsAndExposure() {
	costs := types.NewCostBreakdown(4)
	costs.Transaction[1] = 0.001
	costs.Borrow[2] = 0.0002

	m, err := Calculate(Input{
		Returns:        []float64{0, 0, 0, 0},
		Equity:         []float64{100, 100, 100, 100},
		InitialCapital: 100,
		Positions:      []float64{0, 1, -1, 0},
		Costs:          costs,
		PeriodsPerYear: 252,
	})
	suite.NoError(err)
	suite.InDelta(0.0012, m.TotalCosts, 1e-15)
	suite.InDelta(0.5, m.Exposure, 1e-15)
}

func (suite *MetricsTestSuite) TestPercentile() {
	values := []float64{5, 1, 3, 2, 4}

	suite.InDelta(1.0, Percentile(values, 0), 1e-12)
	// interpolates the empirical CDF: fidx 2.5 lies halfway between 2 and 3
	suite.InDelta(2.5, Percentile(values, 50), 1e-12)
	suite.InDelta(5.0, Percentile(values, 100), 1e-12)
	suite.Equal([]float64{5, 1, 3, 2, 4}, values)
	suite.Equal(0.0, Percentile(nil, 50))
	suite.InDelta(5.0, Percentile([]float64{5, math.NaN()}, 150), 1e-12)
}
