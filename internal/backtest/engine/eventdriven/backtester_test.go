package eventdriven

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine/vectorized"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/risk"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type BacktesterTestSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	observer *log.MemoryObserver
}

func TestBacktesterSuite(t *testing.T) {
	suite.Run(t, new(BacktesterTestSuite))
}

func (suite *BacktesterTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.observer = log.NewMemoryObserver()
}

func (suite *BacktesterTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func ohlc(i int, open, high, low, closePrice float64) types.Bar {
	return types.Bar{
		Symbol: "TEST",
		Time:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: 1_000_000,
	}
}

// scripted returns an order strategy placing intents on the first bar only.
func (suite *BacktesterTestSuite) scripted(intents ...types.OrderIntent) *mocks.MockOrderStrategy {
	s := mocks.NewMockOrderStrategy(suite.ctrl)
	s.EXPECT().Name().Return("scripted").AnyTimes()
	s.EXPECT().OnBar(gomock.Any(), gomock.Any()).Return(intents, nil).Times(1)
	s.EXPECT().OnBar(gomock.Any(), gomock.Any()).Return(nil, nil).AnyTimes()

	return s
}

func buy(quantity float64) types.OrderIntent {
	return types.OrderIntent{Type: types.OrderTypeMarket, Side: types.PurchaseTypeBuy, Quantity: optional.Some(quantity)}
}

func protectiveStop(price float64, quantity float64) types.OrderIntent {
	return types.OrderIntent{
		Type:      types.OrderTypeStop,
		Side:      types.PurchaseTypeSell,
		Quantity:  optional.Some(quantity),
		StopPrice: optional.Some(price),
		Reason:    types.OrderReasonStopLoss,
	}
}

func (suite *BacktesterTestSuite) run(cfg engine.Config, in engine.Inputs, opts ...engine.Option) (*types.BacktestResult, error) {
	opts = append([]engine.Option{engine.WithObserver(suite.observer)}, opts...)

	return NewBacktester(cfg, opts...).Run(context.Background(), in)
}

func (suite *BacktesterTestSuite) TestStopFillsAtTrigger() {
	bars := []types.Bar{
		ohlc(0, 100, 100, 100, 100),
		ohlc(1, 99, 100, 94, 96),
		ohlc(2, 96, 96, 96, 96),
	}

	result, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:     bars,
		Strategy: suite.scripted(buy(10), protectiveStop(95, 10)),
	})
	suite.Require().NoError(err)

	suite.Equal(types.ModeEventDriven, result.Metadata.Mode)
	suite.Require().Len(result.Trades, 1)
	suite.Equal(95.0, result.Trades[0].ExitPrice)
	suite.InDelta(-50, result.Trades[0].PnL, 1e-9)
	suite.Equal(1, result.Trades[0].ExitBar)
	suite.Nil(result.Metadata.OpenPosition)
	suite.Len(result.Fills, 2)
	suite.InDelta(10000, result.Equity[0], 1e-9)
	suite.InDelta(9950, result.Equity[2], 1e-9)
	suite.Equal(0.0, result.Positions[2])
	suite.InDelta(9950.0/10000-1, result.Returns[1], 1e-12)
}

func (suite *BacktesterTestSuite) TestStopGapFillsAtOpen() {
	bars := []types.Bar{
		ohlc(0, 100, 100, 100, 100),
		ohlc(1, 90, 92, 88, 91),
	}

	result, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:     bars,
		Strategy: suite.scripted(buy(10), protectiveStop(95, 10)),
	})
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(90.0, result.Trades[0].ExitPrice)
	suite.InDelta(-100, result.Trades[0].PnL, 1e-9)
}

func (suite *BacktesterTestSuite) TestTakeProfitCancelsStop() {
	takeProfit := types.OrderIntent{
		Type:       types.OrderTypeTakeProfit,
		Side:       types.PurchaseTypeSell,
		Quantity:   optional.Some(10.0),
		LimitPrice: optional.Some(110.0),
		Reason:     types.OrderReasonTakeProfit,
	}

	bars := []types.Bar{
		ohlc(0, 100, 100, 100, 100),
		ohlc(1, 100, 111, 99, 108),
		ohlc(2, 108, 108, 90, 92),
	}

	result, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:     bars,
		Strategy: suite.scripted(buy(10), protectiveStop(95, 10), takeProfit),
	})
	suite.Require().NoError(err)

	suite.Require().Len(result.Trades, 1)
	suite.Equal(110.0, result.Trades[0].ExitPrice)
	suite.InDelta(100, result.Trades[0].PnL, 1e-9)
	suite.Len(result.Fills, 2)
	suite.InDelta(10100, result.FinalEquity(), 1e-9)
}

func (suite *BacktesterTestSuite) TestFlatSignalKeepsCapital() {
	bars := mocks.GenerateBars("TEST", 30)

	result, err := suite.run(engine.TestConfig(0.001), engine.Inputs{
		Bars:    bars,
		Signals: make([]float64, len(bars)),
	})
	suite.Require().NoError(err)

	suite.Empty(result.Fills)
	suite.Empty(result.Trades)

	for _, eq := range result.Equity {
		suite.Equal(10000.0, eq)
	}

	suite.Equal(0.0, result.Costs.Totals().Total)
}

func (suite *BacktesterTestSuite) TestMatchesVectorizedWithoutCosts() {
	bars := mocks.GenerateBars("TEST", 120)
	signals := make([]float64, len(bars))

	for i := range signals {
		switch {
		case i%20 < 8:
			signals[i] = types.SignalLong
		case i%20 < 12:
			signals[i] = types.NoSignal()
		default:
			signals[i] = types.SignalFlat
		}
	}

	cfg := engine.TestConfig(0)
	in := engine.Inputs{Bars: bars, Signals: signals}

	eventDriven, err := suite.run(cfg, in)
	suite.Require().NoError(err)

	bulk, err := vectorized.NewBacktester(cfg).Run(context.Background(), in)
	suite.Require().NoError(err)

	suite.Require().Len(eventDriven.Equity, len(bulk.Equity))

	for t := range bars {
		suite.InDelta(bulk.Equity[t], eventDriven.Equity[t], 1e-6, "bar %d", t)
	}

	suite.Equal(len(bulk.Trades), len(eventDriven.Trades))
}

func (suite *BacktesterTestSuite) TestStrategyPanicIsFatal() {
	s := mocks.NewMockStrategy(suite.ctrl)
	s.EXPECT().Name().Return("explosive").AnyTimes()
	s.EXPECT().GenerateSignal(gomock.Any()).DoAndReturn(func(any) (float64, error) {
		panic("index out of range")
	})

	_, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:     mocks.GenerateBars("TEST", 5),
		Strategy: s,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyPanicked))
	suite.Equal(1, suite.observer.Count(log.EventFatalError))
}

func (suite *BacktesterTestSuite) TestStrategyErrorIsFatal() {
	s := mocks.NewMockStrategy(suite.ctrl)
	s.EXPECT().Name().Return("broken").AnyTimes()
	s.EXPECT().GenerateSignal(gomock.Any()).Return(types.SignalLong, nil).Times(2)
	s.EXPECT().GenerateSignal(gomock.Any()).Return(0.0, fmt.Errorf("feature store offline"))

	_, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:     mocks.GenerateBars("TEST", 5),
		Strategy: s,
	})
	suite.True(errors.HasCode(err, errors.ErrCodeStrategyFailed))
	suite.Contains(err.Error(), "feature store offline")
}

func (suite *BacktesterTestSuite) TestSizingFailureSkipsBar() {
	manager := mocks.NewMockManager(suite.ctrl)
	manager.EXPECT().CalculateSize(gomock.Any()).Return(0.0, fmt.Errorf("no quote")).Times(3)

	result, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:    mocks.FlatBars("TEST", 100, 101, 102),
		Signals: []float64{1, 1, 1},
	}, engine.WithRiskManager(manager))
	suite.Require().NoError(err)

	suite.Equal([]int{0, 1, 2}, result.Metadata.SkippedBars)
	suite.Empty(result.Fills)
	suite.Equal(3, suite.observer.Count(log.EventBarSkipped))

	for _, e := range suite.observer.Events() {
		if e.Kind == log.EventBarSkipped {
			suite.True(errors.HasCode(e.Err, errors.ErrCodeSizingFailed))
		}
	}
}

func (suite *BacktesterTestSuite) TestRejectionSubmitsNothing() {
	manager := mocks.NewMockManager(suite.ctrl)
	manager.EXPECT().CalculateSize(gomock.Any()).Return(5.0, nil).Times(3)
	manager.EXPECT().ValidateTrade(gomock.Any(), gomock.Any()).Return(risk.Reject("too large")).Times(3)

	result, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:    mocks.FlatBars("TEST", 100, 101, 102),
		Signals: []float64{1, 1, 1},
	}, engine.WithRiskManager(manager))
	suite.Require().NoError(err)

	suite.Empty(result.Fills)
	suite.Empty(result.Metadata.SkippedBars)
	suite.Nil(result.Metadata.OpenPosition)
	suite.Equal(3, suite.observer.Count(log.EventOrderRejected))
}

func (suite *BacktesterTestSuite) TestRejectedEntryRetriedWhileSignalHolds() {
	manager := mocks.NewMockManager(suite.ctrl)
	manager.EXPECT().CalculateSize(gomock.Any()).Return(5.0, nil).Times(2)
	gomock.InOrder(
		manager.EXPECT().ValidateTrade(gomock.Any(), gomock.Any()).Return(risk.Reject("leverage")),
		manager.EXPECT().ValidateTrade(gomock.Any(), gomock.Any()).Return(risk.Accept()),
	)

	result, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:    mocks.FlatBars("TEST", 100, 101, 102, 103),
		Signals: []float64{1, 1, 1, 1},
	}, engine.WithRiskManager(manager))
	suite.Require().NoError(err)

	suite.Equal(1, suite.observer.Count(log.EventOrderRejected))
	suite.Require().Len(result.Fills, 1)
	suite.Equal(1, result.Fills[0].BarIndex)
	suite.Require().NotNil(result.Metadata.OpenPosition)
	suite.Equal(5.0, result.Metadata.OpenPosition.Quantity)
}

func (suite *BacktesterTestSuite) TestVolumeCapPartiallyFills() {
	bars := mocks.FlatBars("TEST", 100, 100, 100)
	for i := range bars {
		bars[i].Volume = 50
	}

	cfg := engine.TestConfig(0)
	cfg.MaxVolumeFraction = 0.1

	manager := mocks.NewMockManager(suite.ctrl)
	manager.EXPECT().CalculateSize(gomock.Any()).Return(10.0, nil).Times(1)
	manager.EXPECT().ValidateTrade(gomock.Any(), gomock.Any()).Return(risk.Accept()).Times(1)

	result, err := suite.run(cfg, engine.Inputs{Bars: bars, Signals: []float64{1, 1, 1}}, engine.WithRiskManager(manager))
	suite.Require().NoError(err)

	suite.Require().Len(result.Fills, 1)
	suite.Equal(5.0, result.Fills[0].Quantity)
	suite.Require().NotNil(result.Metadata.OpenPosition)
	suite.Equal(5.0, result.Metadata.OpenPosition.Quantity)
}

func (suite *BacktesterTestSuite) TestDrawdownHalt() {
	cfg := engine.TestConfig(0)
	cfg.MaxDrawdownHalt = 0.1

	nan := types.NoSignal()

	result, err := suite.run(cfg, engine.Inputs{
		Bars:    mocks.FlatBars("TEST", 100, 100, 80, 80, 80),
		Signals: []float64{1, nan, nan, 0, nan},
	})
	suite.Require().NoError(err)

	suite.Equal(3, result.Metadata.HaltedBars)
	suite.Equal(1, suite.observer.Count(log.EventHalted))
	suite.Require().NotNil(result.Metadata.OpenPosition)
	suite.InDelta(8000, result.FinalEquity(), 1e-6)
}

func (suite *BacktesterTestSuite) TestCostsAreChargedAndReported() {
	cfg := engine.TestConfig(0.001)
	cfg.Costs.Slippage.Rate = 0.001
	cfg.Costs.BorrowRate = 0.252

	result, err := suite.run(cfg, engine.Inputs{
		Bars:    mocks.FlatBars("TEST", 100, 100, 100, 100),
		Signals: []float64{-1, -1, -1, 0},
	})
	suite.Require().NoError(err)

	totals := result.Costs.Totals()
	suite.Greater(totals.Transaction, 0.0)
	suite.Greater(totals.Slippage, 0.0)
	suite.Greater(totals.Borrow, 0.0)
	suite.Equal(0.0, totals.Funding)
	suite.Equal(0.0, result.Costs.Borrow[0])
	suite.Require().Len(result.Trades, 1)
	suite.Less(result.Trades[0].PnL, 0.0)
	suite.Less(result.FinalEquity(), 10000.0)
}

func (suite *BacktesterTestSuite) TestConfigurationErrorsSurfaceBeforeSimulation() {
	cfg := engine.TestConfig(-0.1)

	_, err := suite.run(cfg, engine.Inputs{Bars: mocks.FlatBars("TEST", 1, 2), Signals: []float64{1, 1}})
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidCostRate))
	suite.Empty(suite.observer.Events())

	_, err = suite.run(engine.TestConfig(0), engine.Inputs{Bars: mocks.FlatBars("TEST", 1, 2), Signals: []float64{1}})
	suite.True(errors.HasCode(err, errors.ErrCodeSignalLengthMismatch))
}

func (suite *BacktesterTestSuite) TestProgressAndEvents() {
	var calls int

	result, err := suite.run(engine.TestConfig(0), engine.Inputs{
		Bars:    mocks.FlatBars("TEST", 1, 2, 3, 4),
		Signals: []float64{1, 1, 0, 0},
	}, engine.WithProgress(func(current, total int) error {
		calls++
		suite.Equal(4, total)

		return nil
	}))
	suite.Require().NoError(err)

	suite.Equal(4, calls)
	suite.Equal(1, suite.observer.Count(log.EventRunStart))
	suite.Equal(1, suite.observer.Count(log.EventRunEnd))
	suite.False(math.IsNaN(result.Metrics.TotalReturn))
	suite.Len(result.Trades, 1)
}
