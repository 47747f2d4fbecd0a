package vectorized

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type VectorizedTestSuite struct {
	suite.Suite
	ctx context.Context
}

func TestVectorizedSuite(t *testing.T) {
	suite.Run(t, new(VectorizedTestSuite))
}

func (suite *VectorizedTestSuite) SetupTest() {
	suite.ctx = context.Background()
}

func barsFromCloses(step time.Duration, closes ...float64) []types.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.Bar, len(closes))

	for i, c := range closes {
		bars[i] = types.Bar{
			Symbol: "BTCUSDT",
			Time:   start.Add(time.Duration(i) * step),
			Open:   c,
			High:   c * 1.01,
			Low:    c * 0.99,
			Close:  c,
			Volume: 1_000_000,
		}
	}

	return bars
}

func flatBars(n int, price float64) []types.Bar {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}

	return barsFromCloses(24*time.Hour, closes...)
}

func randomWalk(rng *rand.Rand, n int) []types.Bar {
	closes := make([]float64, n)
	price := 100.0

	for i := range closes {
		price *= 1 + rng.NormFloat64()*0.02
		closes[i] = price
	}

	return barsFromCloses(24*time.Hour, closes...)
}

func (suite *VectorizedTestSuite) TestPositionsShiftAndForwardFill() {
	nan := math.NaN()
	signals := []float64{1, nan, nan, 0, nan, -1}

	suite.Equal([]float64{0, 1, 1, 1, 0, 0}, Positions(signals, true))
	suite.Equal([]float64{1, 1, 1, 0, 0, -1}, Positions(signals, false))
}

func (suite *VectorizedTestSuite) TestFlatSignalKeepsCapital() {
	rng := rand.New(rand.NewPCG(1, 2))
	bars := randomWalk(rng, 200)

	cfg := engine.TestConfig(0.001)
	cfg.Costs.Slippage.Rate = 0.0005
	cfg.Costs.FundingRate = 0.0001
	cfg.Costs.BorrowRate = 0.05

	result, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: make([]float64, len(bars))})
	suite.Require().NoError(err)

	for t := range bars {
		suite.Equal(cfg.InitialCapital, result.Equity[t])
		suite.Equal(0.0, result.Costs.At(t))
	}

	suite.Empty(result.Trades)
	suite.NotNil(result.Fills)
	suite.Nil(result.Metadata.OpenPosition)
	suite.Equal(0.0, result.Metrics.TotalReturn)
}

func (suite *VectorizedTestSuite) TestShiftAppliedExactlyOnce() {
	rng := rand.New(rand.NewPCG(3, 4))
	bars := randomWalk(rng, 150)

	signals := make([]float64, len(bars))
	for i := range signals {
		signals[i] = float64(rng.IntN(3) - 1)
	}

	shifted := make([]float64, len(bars))
	for i := 1; i < len(bars); i++ {
		shifted[i] = signals[i-1]
	}

	cfg := engine.TestConfig(0.001)

	a, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: signals})
	suite.Require().NoError(err)

	b, err := NewBacktester(cfg, engine.WithPreShiftedSignals()).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: shifted})
	suite.Require().NoError(err)

	suite.Equal(a.Positions, b.Positions)
	suite.InDeltaSlice(a.Equity, b.Equity, 1e-9)
	suite.Equal(len(a.Trades), len(b.Trades))
}

func (suite *VectorizedTestSuite) TestFundingChargedPerSettlement() {
	bars := make([]types.Bar, 48)
	for i := range bars {
		bars[i] = types.Bar{
			Symbol: "BTCUSDT",
			Time:   time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC),
			Open:   100, High: 100, Low: 100, Close: 100, Volume: 10,
		}
	}

	signals := make([]float64, len(bars))
	for i := range signals {
		signals[i] = 0.5
	}

	cfg := engine.TestConfig(0)
	cfg.PeriodsPerYear = 24 * 365
	cfg.ContinuousSignals = true
	cfg.Costs.FundingRate = 0.0001
	cfg.Costs.FundingInterval = 8 * time.Hour

	result, err := NewBacktester(cfg, engine.WithPreShiftedSignals()).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: signals})
	suite.Require().NoError(err)

	// boundaries 08:00, 16:00, 00:00, 08:00, 16:00 fall in (00:00, 47:00]
	suite.InDelta(5*0.5*0.0001, result.Costs.Totals().Funding, 1e-15)
	suite.Equal(0.0, result.Costs.Totals().Borrow)
	suite.NotNil(result.Metadata.OpenPosition)
	suite.Empty(result.Trades)
}

func (suite *VectorizedTestSuite) TestBorrowOnlyWhileShort() {
	bars := flatBars(5, 100)
	cfg := engine.TestConfig(0)
	cfg.PeriodsPerYear = 365
	cfg.Costs.BorrowRate = 0.0365

	result, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: []float64{-1, -1, 1, 1, 1}})
	suite.Require().NoError(err)

	suite.Equal([]float64{0, -1, -1, 1, 1}, result.Positions)
	suite.InDeltaSlice([]float64{0, 0.0001, 0.0001, 0, 0}, result.Costs.Borrow, 1e-15)
}

func (suite *VectorizedTestSuite) TestNoCarryCostsOnFirstBar() {
	bars := make([]types.Bar, 3)
	for i := range bars {
		bars[i] = types.Bar{
			Symbol: "BTCUSDT",
			Time:   time.Date(2024, 1, 1, 8*i, 0, 0, 0, time.UTC),
			Open:   100, High: 100, Low: 100, Close: 100, Volume: 10,
		}
	}

	cfg := engine.TestConfig(0.001)
	cfg.PeriodsPerYear = 3 * 365
	cfg.Costs.BorrowRate = 0.1095
	cfg.Costs.FundingRate = 0.0001
	cfg.Costs.FundingInterval = 8 * time.Hour

	result, err := NewBacktester(cfg, engine.WithPreShiftedSignals()).Run(suite.ctx, engine.Inputs{
		Bars:    bars,
		Signals: []float64{-1, -1, -1},
	})
	suite.Require().NoError(err)

	suite.Equal([]float64{-1, -1, -1}, result.Positions)
	suite.InDeltaSlice([]float64{0.001, 0, 0}, result.Costs.Transaction, 1e-15)
	suite.InDeltaSlice([]float64{0, 0.0001, 0.0001}, result.Costs.Funding, 1e-15)
	suite.InDeltaSlice([]float64{0, 0.0001, 0.0001}, result.Costs.Borrow, 1e-15)
}

func (suite *VectorizedTestSuite) TestInvalidStrategySignalIsFatal() {
	bars := barsFromCloses(24*time.Hour, 100, 110, 121, 133.1)

	tests := []struct {
		name       string
		signal     float64
		continuous bool
	}{
		{"out of range discrete", 5, false},
		{"fractional discrete", 0.5, false},
		{"out of range weight", 1.5, true},
		{"infinite", math.Inf(1), true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			signals := []float64{tc.signal, tc.signal, tc.signal, tc.signal}
			replay, err := strategy.NewStaticForBars("replay", bars, signals)
			suite.Require().NoError(err)

			cfg := engine.TestConfig(0)
			cfg.ContinuousSignals = tc.continuous
			observer := log.NewMemoryObserver()

			result, err := NewBacktester(cfg, engine.WithObserver(observer)).Run(suite.ctx, engine.Inputs{Bars: bars, Strategy: replay})
			suite.Nil(result)
			suite.True(errors.HasCode(err, errors.ErrCodeStrategyFailed), "got %v", err)
			suite.True(errors.IsStrategyError(err))
			suite.Equal(1, observer.Count(log.EventFatalError))
		})
	}
}

func (suite *VectorizedTestSuite) TestContinuousStrategyWeightsAccepted() {
	bars := barsFromCloses(24*time.Hour, 100, 110, 121, 133.1)
	replay, err := strategy.NewStaticForBars("replay", bars, []float64{0.5, 0.5, 0.5, 0.5})
	suite.Require().NoError(err)

	cfg := engine.TestConfig(0)
	cfg.ContinuousSignals = true

	result, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Strategy: replay})
	suite.Require().NoError(err)
	suite.Equal([]float64{0, 0.5, 0.5, 0.5}, result.Positions)
}

func (suite *VectorizedTestSuite) TestAlternatingSignalRegression() {
	bars := flatBars(100, 100)

	signals := make([]float64, 100)
	pattern := []float64{1, 0, -1}

	for t := range signals {
		signals[t] = pattern[(t/10)%3]
	}

	cfg := engine.TestConfig(0.001)

	result, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: signals})
	suite.Require().NoError(err)

	// turnover is 1 on entries and exits and 2 on short-to-long flips
	deductions := map[int]float64{
		1: 0.001, 11: 0.001, 21: 0.001, 31: 0.002, 41: 0.001,
		51: 0.001, 61: 0.002, 71: 0.001, 81: 0.001, 91: 0.002,
	}

	expected := make([]float64, 100)
	equity := 10000.0

	for t := range expected {
		equity *= 1 - deductions[t]
		expected[t] = equity
	}

	suite.InDeltaSlice(expected, result.Equity, 1e-9)
	suite.InDelta(10000*math.Pow(0.999, 7)*math.Pow(0.998, 3), result.FinalEquity(), 1e-9)

	charged := 0
	for t := range bars {
		if result.Costs.Transaction[t] != 0 {
			charged++
			suite.InDelta(deductions[t], result.Costs.Transaction[t], 1e-15)
		}

		suite.InDelta(-result.Costs.At(t), result.Returns[t], 1e-15)
	}

	suite.Equal(10, charged)
	suite.True(result.Metadata.FirstReturnUndefined)
	suite.Len(result.Trades, 6)
	suite.NotNil(result.Metadata.OpenPosition)
	suite.Equal(1.0, result.Metadata.OpenPosition.Quantity)
}

func (suite *VectorizedTestSuite) TestTradeReconstruction() {
	bars := barsFromCloses(24*time.Hour, 100, 110, 121, 121, 121)

	result, err := NewBacktester(engine.TestConfig(0)).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: []float64{1, 1, 0, 0, 0}})
	suite.Require().NoError(err)
	suite.Require().Len(result.Trades, 1)

	trade := result.Trades[0]
	suite.Equal(types.PositionTypeLong, trade.Direction)
	suite.Equal(0, trade.EntryBar)
	suite.Equal(2, trade.ExitBar)
	suite.Equal(100.0, trade.EntryPrice)
	suite.Equal(121.0, trade.ExitPrice)
	suite.Equal(2, trade.HoldingBars)
	suite.InDelta(0.21, trade.ReturnPct, 1e-12)
	suite.InDelta(2100, trade.PnL, 1e-9)
	suite.InDelta(12100, result.FinalEquity(), 1e-9)
	suite.Equal(1, result.Metrics.TotalTrades)
	suite.Equal(1.0, result.Metrics.WinRate)
}

func (suite *VectorizedTestSuite) TestTradeCostsAttributedToTrades() {
	bars := flatBars(6, 100)

	result, err := NewBacktester(engine.TestConfig(0.01)).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: []float64{1, -1, 0, 0, 0, 0}})
	suite.Require().NoError(err)
	suite.Require().Len(result.Trades, 2)

	// the flip at bar 2 is split between the closing long and the opening short
	suite.InDelta(100+99, result.Trades[0].Commission, 1e-9)
	suite.InDelta(-(1-0.99*0.99)*10000, result.Trades[0].PnL, 1e-9)
	suite.Equal(types.PositionTypeShort, result.Trades[1].Direction)
}

func (suite *VectorizedTestSuite) TestStrategyDerivedSignalsMatchPrecomputed() {
	rng := rand.New(rand.NewPCG(5, 6))
	bars := randomWalk(rng, 120)

	sma, err := strategy.NewSMACrossover(5, 20, true)
	suite.Require().NoError(err)

	signals, err := strategy.SignalSeries(sma, nil, bars)
	suite.Require().NoError(err)

	cfg := engine.TestConfig(0.001)

	fromStrategy, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Strategy: sma})
	suite.Require().NoError(err)

	fromSignals, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: signals})
	suite.Require().NoError(err)

	suite.Equal(fromSignals.Equity, fromStrategy.Equity)
	suite.Equal("sma_crossover", fromStrategy.Metadata.Strategy)
	suite.Equal(20, fromStrategy.Metadata.Parameters["slow"])
	suite.Equal("signals", fromSignals.Metadata.Strategy)
}

func (suite *VectorizedTestSuite) TestEquityRuinPinsToZero() {
	bars := barsFromCloses(24*time.Hour, 100, 100, 250, 260, 270)
	cfg := engine.TestConfig(0)
	cfg.ContinuousSignals = true

	result, err := NewBacktester(cfg).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: []float64{-1, -1, -1, -1, -1}})
	suite.Require().NoError(err)

	suite.Equal([]float64{10000, 10000, 0, 0, 0}, result.Equity)
	suite.Equal(-1.0, result.Metrics.MaxDrawdown)
	suite.Equal([]float64{0, -1, -1, 0, 0}, result.Positions)
}

func (suite *VectorizedTestSuite) TestConfigurationErrors() {
	bars := flatBars(5, 100)

	tests := []struct {
		name   string
		config func() engine.Config
		inputs engine.Inputs
		code   errors.ErrorCode
	}{
		{
			name:   "empty data",
			config: func() engine.Config { return engine.TestConfig(0) },
			inputs: engine.Inputs{Bars: nil, Signals: []float64{}},
			code:   errors.ErrCodeEmptyData,
		},
		{
			name:   "signal length mismatch",
			config: func() engine.Config { return engine.TestConfig(0) },
			inputs: engine.Inputs{Bars: bars, Signals: []float64{1}},
			code:   errors.ErrCodeSignalLengthMismatch,
		},
		{
			name:   "no signals or strategy",
			config: func() engine.Config { return engine.TestConfig(0) },
			inputs: engine.Inputs{Bars: bars},
			code:   errors.ErrCodeMissingParameter,
		},
		{
			name:   "fractional signal in discrete mode",
			config: func() engine.Config { return engine.TestConfig(0) },
			inputs: engine.Inputs{Bars: bars, Signals: []float64{0.5, 0, 0, 0, 0}},
			code:   errors.ErrCodeInvalidSignal,
		},
		{
			name:   "negative cost rate",
			config: func() engine.Config { return engine.TestConfig(-0.1) },
			inputs: engine.Inputs{Bars: bars, Signals: make([]float64, 5)},
			code:   errors.ErrCodeInvalidCostRate,
		},
		{
			name: "per unit fee schedule",
			config: func() engine.Config {
				cfg := engine.TestConfig(0)
				cfg.Costs.FeeSchedule = types.FeeScheduleInteractiveBroker

				return cfg
			},
			inputs: engine.Inputs{Bars: bars, Signals: make([]float64, 5)},
			code:   errors.ErrCodeUnsupportedMode,
		},
		{
			name: "missing periods per year",
			config: func() engine.Config {
				cfg := engine.TestConfig(0)
				cfg.PeriodsPerYear = 0

				return cfg
			},
			inputs: engine.Inputs{Bars: bars, Signals: make([]float64, 5)},
			code:   errors.ErrCodeInvalidConfiguration,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			result, err := NewBacktester(tc.config()).Run(suite.ctx, tc.inputs)
			suite.Nil(result)
			suite.True(errors.HasCode(err, tc.code), "got %v", err)
			suite.True(errors.IsConfigurationError(err))
		})
	}
}

func (suite *VectorizedTestSuite) TestVolumeWeightedSlippageFailureIsFatal() {
	bars := flatBars(4, 100)
	bars[0].Volume = 0

	cfg := engine.TestConfig(0)
	cfg.Costs.Slippage = types.SlippageConfig{Model: types.SlippageModelVolumeWeighted, BaseRate: 0.01}

	observer := log.NewMemoryObserver()

	_, err := NewBacktester(cfg, engine.WithObserver(observer)).Run(suite.ctx, engine.Inputs{Bars: bars, Signals: []float64{1, 1, 1, 1}})
	suite.True(errors.HasCode(err, errors.ErrCodeCostModelFailed))
	suite.Equal(1, observer.Count(log.EventFatalError))
}

func (suite *VectorizedTestSuite) TestCancelledContext() {
	ctx, cancel := context.WithCancel(suite.ctx)
	cancel()

	_, err := NewBacktester(engine.TestConfig(0)).Run(ctx, engine.Inputs{Bars: flatBars(3, 1), Signals: make([]float64, 3)})
	suite.ErrorIs(err, context.Canceled)
}

func (suite *VectorizedTestSuite) TestObserverCheckpoints() {
	observer := log.NewMemoryObserver()

	_, err := NewBacktester(engine.TestConfig(0), engine.WithObserver(observer)).Run(suite.ctx, engine.Inputs{
		RunID:   "run-1",
		Bars:    flatBars(3, 1),
		Signals: make([]float64, 3),
	})
	suite.Require().NoError(err)

	events := observer.Events()
	suite.Len(events, 2)
	suite.Equal(log.EventRunStart, events[0].Kind)
	suite.Equal(log.EventRunEnd, events[1].Kind)
	suite.Equal("run-1", events[1].RunID)
}
