package datasource_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/mocks"
	"github.com/stretchr/testify/suite"
)

type DuckDBDataSourceTestSuite struct {
	suite.Suite
	bars []types.Bar
	path string
	ds   *datasource.DuckDBDataSource
}

func TestDuckDBDataSourceSuite(t *testing.T) {
	suite.Run(t, new(DuckDBDataSourceTestSuite))
}

func (suite *DuckDBDataSourceTestSuite) SetupSuite() {
	config := mocks.DefaultConfig()
	config.Symbol = "BTCUSDT"
	config.Interval = time.Hour
	config.Count = 72

	suite.bars = mocks.NewDataGenerator(3).Generate(config)

	other := mocks.DefaultConfig()
	other.Symbol = "ETHUSDT"
	other.Count = 5

	suite.path = filepath.Join(suite.T().TempDir(), "market.parquet")
	suite.Require().NoError(datasource.WriteParquetFile(suite.path, append(mocks.NewDataGenerator(4).Generate(other), suite.bars...)))
}

func (suite *DuckDBDataSourceTestSuite) SetupTest() {
	ds, err := datasource.OpenParquet(suite.path, logger.NewNopLogger())
	suite.Require().NoError(err)
	suite.ds = ds
}

func (suite *DuckDBDataSourceTestSuite) TearDownTest() {
	suite.NoError(suite.ds.Close())
}

func (suite *DuckDBDataSourceTestSuite) assertBarsEqual(expected, actual []types.Bar) {
	suite.Require().Len(actual, len(expected))

	for i := range expected {
		suite.True(expected[i].Time.Equal(actual[i].Time), "bar %d: %s != %s", i, expected[i].Time, actual[i].Time)
		suite.Equal(expected[i].Symbol, actual[i].Symbol)
		suite.InDelta(expected[i].Open, actual[i].Open, 1e-9)
		suite.InDelta(expected[i].High, actual[i].High, 1e-9)
		suite.InDelta(expected[i].Low, actual[i].Low, 1e-9)
		suite.InDelta(expected[i].Close, actual[i].Close, 1e-9)
		suite.InDelta(expected[i].Volume, actual[i].Volume, 1e-6)
	}
}

func (suite *DuckDBDataSourceTestSuite) TestQueryAll() {
	bars, err := suite.ds.Query(context.Background(), datasource.Request{Symbol: "BTCUSDT"})
	suite.Require().NoError(err)
	suite.assertBarsEqual(suite.bars, bars)
}

func (suite *DuckDBDataSourceTestSuite) TestQueryRange() {
	bars, err := suite.ds.Query(context.Background(), datasource.Request{
		Symbol: "BTCUSDT",
		Start:  optional.Some(suite.bars[10].Time),
		End:    optional.Some(suite.bars[19].Time),
	})
	suite.Require().NoError(err)
	suite.assertBarsEqual(suite.bars[10:20], bars)
}

func (suite *DuckDBDataSourceTestSuite) TestQueryTimeframeMatchesInMemoryResample() {
	tests := []types.Timeframe{types.Timeframe4h, types.Timeframe1d}

	for _, timeframe := range tests {
		suite.Run(string(timeframe), func() {
			bars, err := suite.ds.Query(context.Background(), datasource.Request{
				Symbol:    "BTCUSDT",
				Timeframe: optional.Some(timeframe),
			})
			suite.Require().NoError(err)

			expected, err := datasource.Resample(suite.bars, timeframe)
			suite.Require().NoError(err)
			suite.assertBarsEqual(expected, bars)
		})
	}
}

func (suite *DuckDBDataSourceTestSuite) TestUnknownSymbol() {
	bars, err := suite.ds.Query(context.Background(), datasource.Request{Symbol: "DOGEUSDT"})
	suite.Require().NoError(err)
	suite.Empty(bars)
}

func (suite *DuckDBDataSourceTestSuite) TestSymbols() {
	symbols, err := suite.ds.Symbols(context.Background())
	suite.Require().NoError(err)
	suite.Equal([]string{"BTCUSDT", "ETHUSDT"}, symbols)
}

func (suite *DuckDBDataSourceTestSuite) TestMissingFile() {
	ds, err := datasource.OpenParquet(filepath.Join(suite.T().TempDir(), "missing.parquet"), nil)
	if err == nil {
		_, err = ds.Query(context.Background(), datasource.Request{Symbol: "BTCUSDT"})
		ds.Close()
	}

	suite.Error(err)
}
