package datasource_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type LoadTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller
	ds   *mocks.MockDataSource
}

func TestLoadSuite(t *testing.T) {
	suite.Run(t, new(LoadTestSuite))
}

func (suite *LoadTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.ds = mocks.NewMockDataSource(suite.ctrl)
}

func (suite *LoadTestSuite) TearDownTest() {
	suite.ctrl.Finish()
}

func (suite *LoadTestSuite) TestLoadValidBars() {
	bars := mocks.FlatBars("BTCUSDT", 100, 101, 102)
	req := datasource.Request{Symbol: "BTCUSDT", Timeframe: optional.Some(types.Timeframe1d)}

	suite.ds.EXPECT().Query(gomock.Any(), req).Return(bars, nil)

	loaded, repair, err := datasource.Load(context.Background(), suite.ds, req, false)
	suite.Require().NoError(err)
	suite.Equal(bars, loaded)
	suite.True(repair.IsZero())
}

func (suite *LoadTestSuite) TestLoadGap() {
	bars := mocks.FlatBars("BTCUSDT", 100, 101, 102, 103)
	gapped := []types.Bar{bars[0], bars[1], bars[3]}
	req := datasource.Request{Symbol: "BTCUSDT", Timeframe: optional.Some(types.Timeframe1d)}

	suite.ds.EXPECT().Query(gomock.Any(), req).Return(gapped, nil).Times(2)

	_, _, err := datasource.Load(context.Background(), suite.ds, req, false)
	suite.True(errors.HasCode(err, errors.ErrCodeDataGap))

	loaded, repair, err := datasource.Load(context.Background(), suite.ds, req, true)
	suite.Require().NoError(err)
	suite.Len(loaded, 4)
	suite.Equal(1, repair.SyntheticBars)
	suite.Equal(101.0, loaded[2].Close)
	suite.Equal(bars[2].Time, loaded[2].Time)
}

func (suite *LoadTestSuite) TestLoadWithoutTimeframeSkipsGapCheck() {
	bars := mocks.FlatBars("BTCUSDT", 100, 101, 102, 103)
	gapped := []types.Bar{bars[0], bars[3]}

	suite.ds.EXPECT().Query(gomock.Any(), gomock.Any()).Return(gapped, nil)

	loaded, _, err := datasource.Load(context.Background(), suite.ds, datasource.Request{Symbol: "BTCUSDT"}, false)
	suite.Require().NoError(err)
	suite.Len(loaded, 2)
}

func (suite *LoadTestSuite) TestLoadErrors() {
	tests := []struct {
		name string
		bars []types.Bar
		err  error
		code errors.ErrorCode
	}{
		{name: "no bars", code: errors.ErrCodeDataNotFound},
		{name: "query error", err: fmt.Errorf("connection reset"), code: errors.ErrCodeQueryFailed},
		{name: "typed error is kept", err: errors.New(errors.ErrCodeDataSourceUnavailable, "down"), code: errors.ErrCodeDataSourceUnavailable},
		{
			name: "non monotonic",
			bars: []types.Bar{
				{Symbol: "BTCUSDT", Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
				{Symbol: "BTCUSDT", Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Open: 1, High: 1, Low: 1, Close: 1},
			},
			code: errors.ErrCodeNonMonotonicTimestamp,
		},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.ds.EXPECT().Query(gomock.Any(), gomock.Any()).Return(tc.bars, tc.err)

			_, _, err := datasource.Load(context.Background(), suite.ds, datasource.Request{Symbol: "BTCUSDT"}, false)
			suite.Require().Error(err)
			suite.True(errors.HasCode(err, tc.code), err.Error())
		})
	}
}

func (suite *LoadTestSuite) TestCancelledContextDoesNotQuery() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := datasource.Load(ctx, suite.ds, datasource.Request{Symbol: "BTCUSDT"}, false)
	suite.ErrorIs(err, context.Canceled)
}
