package strategy

import (
	"math"
	"time"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

// SMACrossover is long while the fast moving average of closes is above the
// slow one and short (or flat) while it is below.
type SMACrossover struct {
	Fast       int  `yaml:"fast" json:"fast" jsonschema:"title=Fast Window,description=Bars in the fast moving average,minimum=1,default=10"`
	Slow       int  `yaml:"slow" json:"slow" jsonschema:"title=Slow Window,description=Bars in the slow moving average. Must exceed the fast window,minimum=2,default=30"`
	AllowShort bool `yaml:"allow_short" json:"allow_short" jsonschema:"title=Allow Short,description=Go short instead of flat when the fast average is below the slow one,default=false"`
}

// NewSMACrossover validates the windows.
func NewSMACrossover(fast, slow int, allowShort bool) (*SMACrossover, error) {
	if fast <= 0 || slow <= 0 {
		return nil, errors.Newf(errors.ErrCodeInvalidPeriod, "moving average windows must be positive, got fast=%d slow=%d", fast, slow)
	}

	if fast >= slow {
		return nil, errors.Newf(errors.ErrCodeInvalidParameter, "fast window %d must be shorter than slow window %d", fast, slow)
	}

	return &SMACrossover{Fast: fast, Slow: slow, AllowShort: allowShort}, nil
}

func (s *SMACrossover) Name() string {
	return "sma_crossover"
}

func (s *SMACrossover) Parameters() map[string]any {
	return map[string]any{
		"fast":        s.Fast,
		"slow":        s.Slow,
		"allow_short": s.AllowShort,
	}
}

func (s *SMACrossover) GenerateSignal(history History) (types.Signal, error) {
	if history.Len() < s.Slow {
		return types.NoSignal(), nil
	}

	closes := history.Closes(s.Slow)
	fast := stat.Mean(closes[len(closes)-s.Fast:], nil)
	slow := stat.Mean(closes, nil)

	switch {
	case fast > slow:
		return types.SignalLong, nil
	case fast < slow && s.AllowShort:
		return types.SignalShort, nil
	case fast < slow:
		return types.SignalFlat, nil
	default:
		return types.NoSignal(), nil
	}
}

// SMAGrid is the parameter grid searched when fitting SMACrossover.
type SMAGrid struct {
	Fast       []int
	Slow       []int
	AllowShort bool
}

// NewSMACrossoverFactory returns a Factory choosing the window pair with the
// best in-sample Sharpe ratio of its signal on the training bars.
func NewSMACrossoverFactory(grid SMAGrid) Factory {
	return func(train []types.Bar) (Strategy, error) {
		var (
			best      *SMACrossover
			bestScore = math.Inf(-1)
		)

		for _, fast := range grid.Fast {
			for _, slow := range grid.Slow {
				candidate, err := NewSMACrossover(fast, slow, grid.AllowShort)
				if err != nil {
					continue
				}

				if len(train) <= slow {
					continue
				}

				signals, err := SignalSeries(candidate, nil, train)
				if err != nil {
					return nil, err
				}

				if score := inSampleScore(train, signals); score > bestScore {
					best, bestScore = candidate, score
				}
			}
		}

		if best == nil {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "no moving average pair in the grid fits %d training bars", len(train))
		}

		return best, nil
	}
}

// inSampleScore is the unannualised Sharpe ratio of holding the previous
// bar's signal, the same one-bar lag the vectorized backtester applies.
func inSampleScore(bars []types.Bar, signals []float64) float64 {
	returns := make([]float64, 0, len(bars))
	position := 0.0

	for t := 1; t < len(bars); t++ {
		if !types.IsNoSignal(signals[t-1]) {
			position = signals[t-1]
		}

		returns = append(returns, position*(bars[t].Close/bars[t-1].Close-1))
	}

	if len(returns) < 2 {
		return math.Inf(-1)
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 || math.IsNaN(std) {
		return 0
	}

	return mean / std
}

// Static replays precomputed signals keyed by bar time. Bars without a
// recorded signal yield "no new signal".
type Static struct {
	name    string
	signals map[int64]float64
}

// NewStatic pairs times with signals.
func NewStatic(name string, times []time.Time, signals []float64) (*Static, error) {
	if len(times) != len(signals) {
		return nil, errors.Newf(errors.ErrCodeSignalLengthMismatch, "%d signals for %d timestamps", len(signals), len(times))
	}

	byTime := make(map[int64]float64, len(times))
	for i, t := range times {
		byTime[t.UnixNano()] = signals[i]
	}

	return &Static{name: name, signals: byTime}, nil
}

// NewStaticForBars pairs signals with bars' timestamps.
func NewStaticForBars(name string, bars []types.Bar, signals []float64) (*Static, error) {
	return NewStatic(name, types.Times(bars), signals)
}

func (s *Static) Name() string {
	return s.name
}

func (s *Static) GenerateSignal(history History) (types.Signal, error) {
	if sig, ok := s.signals[history.Now().UnixNano()]; ok {
		return sig, nil
	}

	return types.NoSignal(), nil
}
