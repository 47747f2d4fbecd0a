package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DataRange is the span of bars a run covered.
type DataRange struct {
	Start time.Time `yaml:"start" json:"start"`
	End   time.Time `yaml:"end" json:"end"`
	Bars  int       `yaml:"bars" json:"bars"`
}

// RunStats is the human-readable summary written next to a persisted result.
type RunStats struct {
	// ID is the run ID of the result.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when the summary was written.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Symbol    string    `yaml:"symbol" json:"symbol"`
	Strategy  string    `yaml:"strategy" json:"strategy"`
	Mode      Mode      `yaml:"mode" json:"mode"`
	// SchemaVersion of the result.json this summary belongs to.
	SchemaVersion  string         `yaml:"schema_version" json:"schema_version"`
	Parameters     map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
	Data           DataRange      `yaml:"data" json:"data"`
	InitialCapital float64        `yaml:"initial_capital" json:"initial_capital"`
	FinalEquity    float64        `yaml:"final_equity" json:"final_equity"`
	Metrics        Metrics        `yaml:"metrics" json:"metrics"`
	Costs          CostTotals     `yaml:"costs" json:"costs"`
	DataRepairs    DataRepair     `yaml:"data_repairs" json:"data_repairs"`
	SkippedBars    int            `yaml:"skipped_bars" json:"skipped_bars"`
	// ResultFilePath is the path to result.json.
	ResultFilePath string `yaml:"result_file_path" json:"result_file_path"`
	// EquityFilePath is the path to the equity parquet file.
	EquityFilePath string `yaml:"equity_file_path" json:"equity_file_path"`
	// TradesFilePath is the path to the trades parquet file.
	TradesFilePath string `yaml:"trades_file_path" json:"trades_file_path"`
}

// NewRunStats summarises a result.
func NewRunStats(result *BacktestResult, now time.Time) RunStats {
	md := result.Metadata

	return RunStats{
		ID:            md.RunID,
		Timestamp:     now,
		Symbol:        md.Symbol,
		Strategy:      md.Strategy,
		Mode:          md.Mode,
		SchemaVersion: md.SchemaVersion,
		Parameters:    md.Parameters,
		Data: DataRange{
			Start: md.DataStart,
			End:   md.DataEnd,
			Bars:  md.Bars,
		},
		InitialCapital: md.InitialCapital,
		FinalEquity:    result.FinalEquity(),
		Metrics:        result.Metrics,
		Costs:          result.Costs.Totals(),
		DataRepairs:    md.DataRepairs,
		SkippedBars:    len(md.SkippedBars),
	}
}

// WriteRunStats writes stats to path as YAML.
func WriteRunStats(path string, stats []RunStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run stats to file: %w", err)
	}

	return nil
}

// ReadRunStats reads a YAML file written by WriteRunStats.
func ReadRunStats(path string) ([]RunStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run stats file: %w", err)
	}

	var stats []RunStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
	}

	return stats, nil
}
