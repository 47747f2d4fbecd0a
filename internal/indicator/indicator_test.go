package indicator

import (
	"math"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type IndicatorTestSuite struct {
	suite.Suite
	bars []types.Bar
}

func TestIndicatorSuite(t *testing.T) {
	suite.Run(t, new(IndicatorTestSuite))
}

func (suite *IndicatorTestSuite) SetupTest() {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	closes := []float64{10, 11, 12, 11, 13, 14}
	suite.bars = make([]types.Bar, len(closes))

	for i, c := range closes {
		suite.bars[i] = types.Bar{
			Symbol: "TEST",
			Time:   start.Add(time.Duration(i) * time.Hour),
			Open:   c,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100,
		}
	}
}

func (suite *IndicatorTestSuite) TestSMA() {
	out, err := SMA([]float64{1, 2, 3, 4, 5}, 3)
	suite.NoError(err)
	suite.True(math.IsNaN(out[0]))
	suite.True(math.IsNaN(out[1]))
	suite.InDelta(2.0, out[2], 1e-12)
	suite.InDelta(3.0, out[3], 1e-12)
	suite.InDelta(4.0, out[4], 1e-12)
}

func (suite *IndicatorTestSuite) TestExponentialMA() {
	out, err := ExponentialMA([]float64{1, 2, 3, 4}, 3)
	suite.NoError(err)
	suite.True(math.IsNaN(out[1]))
	suite.InDelta(2.0, out[2], 1e-12)
	// alpha = 0.5
	suite.InDelta(3.0, out[3], 1e-12)

	short, err := ExponentialMA([]float64{1}, 3)
	suite.NoError(err)
	suite.True(math.IsNaN(short[0]))
}

func (suite *IndicatorTestSuite) TestInvalidPeriod() {
	_, err := SMA([]float64{1}, 0)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))

	_, err = AverageTrueRange(suite.bars, -1)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPeriod))
}

func (suite *IndicatorTestSuite) TestTrueRange() {
	tr := TrueRange(suite.bars)
	suite.Equal(2.0, tr[0])
	// bar 4: high 14, low 12, prev close 11 -> |14-11| = 3
	suite.Equal(3.0, tr[4])
}

func (suite *IndicatorTestSuite) TestAverageTrueRange() {
	atr, err := AverageTrueRange(suite.bars, 3)
	suite.NoError(err)

	tr := TrueRange(suite.bars)
	suite.InDelta(tr[0], atr[0], 1e-12)
	suite.InDelta((tr[0]+tr[1])/2, atr[1], 1e-12)
	suite.InDelta((tr[0]+tr[1]+tr[2])/3, atr[2], 1e-12)
	suite.InDelta((atr[2]*2+tr[3])/3, atr[3], 1e-12)
}

func (suite *IndicatorTestSuite) TestCausality() {
	full, err := AverageTrueRange(suite.bars, 3)
	suite.NoError(err)

	for t := range suite.bars {
		prefix, err := AverageTrueRange(suite.bars[:t+1], 3)
		suite.NoError(err)
		suite.Equal(full[t], prefix[t])
	}
}

func (suite *IndicatorTestSuite) TestConfig() {
	tests := []struct {
		name      string
		indicator Indicator
		params    []any
		wantErr   bool
	}{
		{"atr int", NewATR(), []any{5}, false},
		{"sma float", NewMA(), []any{5.0}, false},
		{"ema missing", NewEMA(), nil, true},
		{"atr string", NewATR(), []any{"5"}, true},
		{"sma zero", NewMA(), []any{0}, true},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			err := tc.indicator.Config(tc.params...)
			if tc.wantErr {
				suite.Error(err)
			} else {
				suite.NoError(err)
			}
		})
	}
}

func (suite *IndicatorTestSuite) TestSeries() {
	ma := NewMA()
	suite.NoError(ma.Config(2))
	suite.Equal(IndicatorTypeSMA, ma.Name())

	out, err := ma.Series(suite.bars)
	suite.NoError(err)
	suite.InDelta(10.5, out[1], 1e-12)

	atr := NewATR()
	suite.Equal(IndicatorTypeATR, atr.Name())
	series, err := atr.Series(suite.bars)
	suite.NoError(err)
	suite.Len(series, len(suite.bars))
}
