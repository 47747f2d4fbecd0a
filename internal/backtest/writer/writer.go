// Package writer persists backtest results to disk and reads them back.
//
// Every run gets its own directory holding:
//
//	result.json     the full result
//	stats.yaml      a human-readable summary
//	equity.parquet  one row per simulated bar
//	trades.parquet  one row per closed trade
package writer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/metrics"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

const (
	ResultFile = "result.json"
	StatsFile  = "stats.yaml"
	EquityFile = "equity.parquet"
	TradesFile = "trades.parquet"
)

// EquityRecord is one simulated bar of equity.parquet.
type EquityRecord struct {
	Time            int64   `parquet:"time,timestamp(millisecond)"`
	Equity          float64 `parquet:"equity"`
	Return          float64 `parquet:"return"`
	Position        float64 `parquet:"position"`
	Drawdown        float64 `parquet:"drawdown"`
	TransactionCost float64 `parquet:"transaction_cost"`
	SlippageCost    float64 `parquet:"slippage_cost"`
	FundingCost     float64 `parquet:"funding_cost"`
	BorrowCost      float64 `parquet:"borrow_cost"`
}

// TradeRecord is one closed trade of trades.parquet.
type TradeRecord struct {
	Symbol      string  `parquet:"symbol"`
	Direction   string  `parquet:"direction"`
	EntryTime   int64   `parquet:"entry_time,timestamp(millisecond)"`
	ExitTime    int64   `parquet:"exit_time,timestamp(millisecond)"`
	EntryBar    int64   `parquet:"entry_bar"`
	ExitBar     int64   `parquet:"exit_bar"`
	EntryPrice  float64 `parquet:"entry_price"`
	ExitPrice   float64 `parquet:"exit_price"`
	Quantity    float64 `parquet:"quantity"`
	PnL         float64 `parquet:"pnl"`
	ReturnPct   float64 `parquet:"return_pct"`
	Commission  float64 `parquet:"commission"`
	Slippage    float64 `parquet:"slippage"`
	HoldingBars int64   `parquet:"holding_bars"`
}

// Writer writes results under a root directory.
type Writer struct {
	root   string
	logger *logger.Logger
	now    func() time.Time
}

// NewWriter returns a Writer that stores each run in root/<run id>.
func NewWriter(root string, log *logger.Logger) *Writer {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Writer{root: root, logger: log, now: time.Now}
}

// RunDir returns the directory a run is written to.
func (w *Writer) RunDir(runID string) string {
	return filepath.Join(w.root, runID)
}

// Write persists result and returns the summary written to stats.yaml.
func (w *Writer) Write(result *types.BacktestResult) (types.RunStats, error) {
	if result == nil {
		return types.RunStats{}, errors.New(errors.ErrCodeResultWriteFailed, "result is nil")
	}

	if result.Metadata.RunID == "" {
		return types.RunStats{}, errors.New(errors.ErrCodeResultWriteFailed, "result has no run id")
	}

	dir := w.RunDir(result.Metadata.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return types.RunStats{}, errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to create %s", dir)
	}

	stats := types.NewRunStats(result, w.now())
	stats.ResultFilePath = filepath.Join(dir, ResultFile)
	stats.EquityFilePath = filepath.Join(dir, EquityFile)
	stats.TradesFilePath = filepath.Join(dir, TradesFile)

	if err := writeJSON(stats.ResultFilePath, result); err != nil {
		return types.RunStats{}, err
	}

	if err := parquet.WriteFile(stats.EquityFilePath, EquityRecords(result)); err != nil {
		return types.RunStats{}, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write equity", err)
	}

	if err := parquet.WriteFile(stats.TradesFilePath, TradeRecords(result.Trades)); err != nil {
		return types.RunStats{}, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write trades", err)
	}

	if err := types.WriteRunStats(filepath.Join(dir, StatsFile), []types.RunStats{stats}); err != nil {
		return types.RunStats{}, errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to write stats", err)
	}

	w.logger.Info("Result written",
		zap.String("run_id", result.Metadata.RunID),
		zap.String("dir", dir),
		zap.Int("bars", result.Len()),
		zap.Int("trades", len(result.Trades)))

	return stats, nil
}

// EquityRecords flattens the per-bar series of result.
func EquityRecords(result *types.BacktestResult) []EquityRecord {
	drawdowns := metrics.Drawdowns(result.Equity)
	records := make([]EquityRecord, result.Len())

	for i := range records {
		records[i] = EquityRecord{
			Time:            result.Times[i].UnixMilli(),
			Equity:          result.Equity[i],
			Return:          result.Returns[i],
			Position:        at(result.Positions, i),
			Drawdown:        drawdowns[i],
			TransactionCost: at(result.Costs.Transaction, i),
			SlippageCost:    at(result.Costs.Slippage, i),
			FundingCost:     at(result.Costs.Funding, i),
			BorrowCost:      at(result.Costs.Borrow, i),
		}
	}

	return records
}

// TradeRecords converts trades to their parquet layout.
func TradeRecords(trades []types.Trade) []TradeRecord {
	records := make([]TradeRecord, len(trades))

	for i, t := range trades {
		records[i] = TradeRecord{
			Symbol:      t.Symbol,
			Direction:   string(t.Direction),
			EntryTime:   t.EntryTime.UnixMilli(),
			ExitTime:    t.ExitTime.UnixMilli(),
			EntryBar:    int64(t.EntryBar),
			ExitBar:     int64(t.ExitBar),
			EntryPrice:  t.EntryPrice,
			ExitPrice:   t.ExitPrice,
			Quantity:    t.Quantity,
			PnL:         t.PnL,
			ReturnPct:   t.ReturnPct,
			Commission:  t.Commission,
			Slippage:    t.Slippage,
			HoldingBars: int64(t.HoldingBars),
		}
	}

	return records
}

// Read loads the result stored in dir. Results written with a different
// major or minor schema version are rejected.
func Read(dir string) (*types.BacktestResult, error) {
	data, err := os.ReadFile(filepath.Join(dir, ResultFile))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultReadFailed, "failed to read result", err)
	}

	var header struct {
		Metadata struct {
			SchemaVersion string `json:"schema_version"`
		} `json:"metadata"`
	}

	if err := json.Unmarshal(data, &header); err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultReadFailed, "failed to parse result", err)
	}

	if err := version.CheckResultSchema(header.Metadata.SchemaVersion); err != nil {
		return nil, errors.Wrapf(errors.ErrCodeIncompatibleResult, err, "cannot read result in %s", dir)
	}

	var result types.BacktestResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultReadFailed, "failed to parse result", err)
	}

	return &result, nil
}

// ReadTrades reads a trades.parquet file.
func ReadTrades(path string) ([]TradeRecord, error) {
	records, err := parquet.ReadFile[TradeRecord](path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultReadFailed, "failed to read trades", err)
	}

	return records, nil
}

// ReadEquity reads an equity.parquet file.
func ReadEquity(path string) ([]EquityRecord, error) {
	records, err := parquet.ReadFile[EquityRecord](path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeResultReadFailed, "failed to read equity", err)
	}

	return records, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to encode %s", filepath.Base(path))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to write %s", path)
	}

	return nil
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}

	return 0
}
