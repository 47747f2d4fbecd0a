package writer

import (
	"os"
	"path/filepath"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/validation/montecarlo"
	"github.com/rxtech-lab/argo-backtest/internal/validation/walkforward"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	WalkForwardFile = "walkforward.yaml"
	MonteCarloFile  = "montecarlo.yaml"
)

// SplitSummary is one split of walkforward.yaml.
type SplitSummary struct {
	Index      int               `yaml:"index"`
	Train      walkforward.Range `yaml:"train"`
	Test       walkforward.Range `yaml:"test"`
	Strategy   string            `yaml:"strategy"`
	Parameters map[string]any    `yaml:"parameters,omitempty"`
	Metrics    types.Metrics     `yaml:"metrics"`
}

// WalkForwardSummary is the content of walkforward.yaml.
type WalkForwardSummary struct {
	Metrics types.Metrics     `yaml:"metrics"`
	Reserve walkforward.Range `yaml:"reserve"`
	Splits  []SplitSummary    `yaml:"splits"`
}

// WriteWalkForward writes the pooled out-of-sample record as a regular run
// and adds walkforward.yaml with the per-split metrics.
func (w *Writer) WriteWalkForward(result *walkforward.WalkForwardResult) (types.RunStats, error) {
	if result == nil || len(result.Splits) == 0 {
		return types.RunStats{}, errors.New(errors.ErrCodeResultWriteFailed, "walk-forward result has no splits")
	}

	pooled := result.AsResult()

	stats, err := w.Write(pooled)
	if err != nil {
		return types.RunStats{}, err
	}

	summary := WalkForwardSummary{
		Metrics: result.Metrics,
		Reserve: result.Reserve,
		Splits:  make([]SplitSummary, len(result.Splits)),
	}

	for i, sr := range result.Splits {
		summary.Splits[i] = SplitSummary{
			Index:      sr.Split.Index,
			Train:      sr.Train,
			Test:       sr.Test,
			Strategy:   sr.Strategy,
			Parameters: sr.Parameters,
			Metrics:    sr.Result.Metrics,
		}
	}

	if err := writeYAML(filepath.Join(w.RunDir(pooled.Metadata.RunID), WalkForwardFile), summary); err != nil {
		return types.RunStats{}, err
	}

	return stats, nil
}

// WriteMonteCarlo writes montecarlo.yaml into the directory of run runID and
// returns its path.
func (w *Writer) WriteMonteCarlo(runID string, result *montecarlo.Result) (string, error) {
	if result == nil {
		return "", errors.New(errors.ErrCodeResultWriteFailed, "monte carlo result is nil")
	}

	dir := w.RunDir(runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to create %s", dir)
	}

	path := filepath.Join(dir, MonteCarloFile)
	if err := writeYAML(path, result); err != nil {
		return "", err
	}

	w.logger.Info("Monte Carlo summary written",
		zap.String("run_id", runID),
		zap.Int("simulations", result.Simulations),
		zap.Uint64("seed", result.Seed))

	return path, nil
}

// ReadWalkForward reads walkforward.yaml from a run directory.
func ReadWalkForward(dir string) (WalkForwardSummary, error) {
	var summary WalkForwardSummary

	data, err := os.ReadFile(filepath.Join(dir, WalkForwardFile))
	if err != nil {
		return summary, errors.Wrap(errors.ErrCodeResultReadFailed, "failed to read walk-forward summary", err)
	}

	if err := yaml.Unmarshal(data, &summary); err != nil {
		return summary, errors.Wrap(errors.ErrCodeResultReadFailed, "failed to parse walk-forward summary", err)
	}

	return summary, nil
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to encode %s", filepath.Base(path))
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to write %s", path)
	}

	return nil
}
