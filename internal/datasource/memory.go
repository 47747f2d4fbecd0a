package datasource

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// BarRecord is the parquet schema of stored bars. It matches the columns
// DuckDBDataSource reads.
type BarRecord struct {
	Time   int64   `parquet:"time,timestamp(millisecond)"`
	Symbol string  `parquet:"symbol"`
	Open   float64 `parquet:"open"`
	High   float64 `parquet:"high"`
	Low    float64 `parquet:"low"`
	Close  float64 `parquet:"close"`
	Volume float64 `parquet:"volume"`
}

// InMemoryDataSource holds bars in memory, indexed by symbol.
type InMemoryDataSource struct {
	mu   sync.RWMutex
	bars map[string][]types.Bar
}

var _ DataSource = (*InMemoryDataSource)(nil)

// NewInMemoryDataSource returns a source holding bars.
func NewInMemoryDataSource(bars ...types.Bar) *InMemoryDataSource {
	ds := &InMemoryDataSource{bars: make(map[string][]types.Bar)}
	ds.Add(bars...)

	return ds
}

// LoadParquetFile reads a parquet file of BarRecord rows into memory.
func LoadParquetFile(path string) (*InMemoryDataSource, error) {
	records, err := parquet.ReadFile[BarRecord](path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to read parquet file %s", path)
	}

	bars := make([]types.Bar, len(records))
	for i, r := range records {
		bars[i] = types.Bar{
			Symbol: r.Symbol,
			Time:   time.UnixMilli(r.Time).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}

	return NewInMemoryDataSource(bars...), nil
}

// WriteParquetFile writes bars to path in the layout both sources read.
func WriteParquetFile(path string, bars []types.Bar) error {
	records := make([]BarRecord, len(bars))
	for i, b := range bars {
		records[i] = BarRecord{
			Time:   b.Time.UnixMilli(),
			Symbol: b.Symbol,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return parquet.WriteFile(path, records)
}

// Add stores bars, keeping each symbol in ascending time order. Bars are
// stored as given; duplicates are left for validation to reject.
func (ds *InMemoryDataSource) Add(bars ...types.Bar) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	touched := map[string]bool{}

	for _, bar := range bars {
		ds.bars[bar.Symbol] = append(ds.bars[bar.Symbol], bar)
		touched[bar.Symbol] = true
	}

	for symbol := range touched {
		series := ds.bars[symbol]
		sort.SliceStable(series, func(i, j int) bool {
			return series[i].Time.Before(series[j].Time)
		})
	}
}

// Query implements DataSource.
func (ds *InMemoryDataSource) Query(ctx context.Context, req Request) ([]types.Bar, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ds.mu.RLock()
	series := ds.bars[req.Symbol]

	out := make([]types.Bar, 0, len(series))

	for _, bar := range series {
		if req.contains(bar.Time) {
			out = append(out, bar)
		}
	}
	ds.mu.RUnlock()

	if req.Timeframe.IsSome() {
		return Resample(out, req.Timeframe.Unwrap())
	}

	return out, nil
}

// Symbols implements DataSource.
func (ds *InMemoryDataSource) Symbols(_ context.Context) ([]string, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	symbols := make([]string, 0, len(ds.bars))
	for symbol := range ds.bars {
		symbols = append(symbols, symbol)
	}

	slices.Sort(symbols)

	return symbols, nil
}

// Close implements DataSource.
func (ds *InMemoryDataSource) Close() error {
	return nil
}
