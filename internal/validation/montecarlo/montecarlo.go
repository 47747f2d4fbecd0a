// Package montecarlo resamples a strategy's closed trades to estimate how
// much of its track record depends on the order and selection of trades.
package montecarlo

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/metrics"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
)

// Mode selects how trades are resampled.
type Mode string

const (
	// ModeShuffle permutes the trade sequence.
	ModeShuffle Mode = "shuffle"
	// ModeBootstrap draws trades with replacement.
	ModeBootstrap Mode = "bootstrap"
	// ModeNone keeps the original sequence.
	ModeNone Mode = "none"
)

// DefaultPercentiles are reported when Config.Percentiles is empty.
var DefaultPercentiles = []float64{5, 50, 95}

// Config configures a resampling run.
type Config struct {
	Simulations int  `yaml:"simulations" json:"simulations" validate:"gt=0"`
	Mode        Mode `yaml:"mode" json:"mode" jsonschema:"enum=shuffle,enum=bootstrap,enum=none" validate:"omitempty,oneof=shuffle bootstrap none"`
	// Seed makes results reproducible. A random seed is drawn and reported when unset.
	Seed        optional.Option[uint64] `yaml:"seed" json:"seed"`
	Percentiles []float64               `yaml:"percentiles" json:"percentiles" validate:"dive,gte=0,lte=100"`
	// InitialCapital compounds trade returns into equity paths.
	InitialCapital float64 `yaml:"initial_capital" json:"initial_capital" validate:"gt=0"`
	// PeriodsPerYear annualises the per-trade Sharpe ratio, so it counts
	// trades per year. When 0 it is derived from the trades' time span.
	PeriodsPerYear float64 `yaml:"periods_per_year" json:"periods_per_year" validate:"gte=0"`
	// Workers defaults to GOMAXPROCS.
	Workers int `yaml:"workers" json:"workers" validate:"gte=0"`
}

// DefaultConfig returns 1000 shuffles of a 10000 capital account.
func DefaultConfig() Config {
	return Config{
		Simulations:    1000,
		Mode:           ModeShuffle,
		Seed:           optional.None[uint64](),
		Percentiles:    DefaultPercentiles,
		InitialCapital: 10000,
	}
}

// Validate validates the Config struct.
func (c Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid monte carlo configuration", err)
	}

	return nil
}

// Stats are the metrics of one equity path.
type Stats struct {
	TotalReturn float64 `yaml:"total_return" json:"total_return"`
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"`
	Sharpe      float64 `yaml:"sharpe" json:"sharpe"`
	TotalPnL    float64 `yaml:"total_pnl" json:"total_pnl"`
}

// Quantile is one percentile of a distribution.
type Quantile struct {
	Percentile float64 `yaml:"percentile" json:"percentile"`
	Value      float64 `yaml:"value" json:"value"`
}

// Distribution summarises one metric across simulations.
type Distribution struct {
	Mean        float64    `yaml:"mean" json:"mean"`
	StdDev      float64    `yaml:"std_dev" json:"std_dev"`
	Percentiles []Quantile `yaml:"percentiles" json:"percentiles"`
}

// At returns the value at percentile p, or false when p was not computed.
func (d Distribution) At(p float64) (float64, bool) {
	for _, q := range d.Percentiles {
		if q.Percentile == p {
			return q.Value, true
		}
	}

	return 0, false
}

// Result is the outcome of a resampling run.
type Result struct {
	Mode        Mode   `yaml:"mode" json:"mode"`
	Simulations int    `yaml:"simulations" json:"simulations"`
	Seed        uint64 `yaml:"seed" json:"seed"`
	Trades      int    `yaml:"trades" json:"trades"`
	// Original are the metrics of the unresampled trade sequence.
	Original    Stats        `yaml:"original" json:"original"`
	TotalReturn Distribution `yaml:"total_return" json:"total_return"`
	MaxDrawdown Distribution `yaml:"max_drawdown" json:"max_drawdown"`
	Sharpe      Distribution `yaml:"sharpe" json:"sharpe"`
	TotalPnL    Distribution `yaml:"total_pnl" json:"total_pnl"`
	// ProbabilityOfLoss is the share of simulations ending below the initial capital.
	ProbabilityOfLoss float64 `yaml:"probability_of_loss" json:"probability_of_loss"`
	// Samples holds every simulation's stats in simulation order.
	Samples []Stats `yaml:"-" json:"samples,omitempty"`
}

// Run resamples trades cfg.Simulations times. Simulation i draws from its own
// generator seeded with (seed, i), so results do not depend on scheduling.
func Run(ctx context.Context, trades []types.Trade, cfg Config) (*Result, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeShuffle
	}

	if len(cfg.Percentiles) == 0 {
		cfg.Percentiles = DefaultPercentiles
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if len(trades) == 0 {
		return nil, errors.New(errors.ErrCodeNoTrades, "monte carlo resampling needs at least one closed trade")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seed := cfg.Seed.TakeOr(rand.Uint64())

	periodsPerYear := cfg.PeriodsPerYear
	if periodsPerYear <= 0 {
		periodsPerYear = TradesPerYear(trades)
	}

	returns := make([]float64, len(trades))
	pnls := make([]float64, len(trades))

	for i, t := range trades {
		returns[i] = t.ReturnPct
		pnls[i] = t.PnL
	}

	identity := make([]int, len(trades))
	for i := range identity {
		identity[i] = i
	}

	samples := make([]Stats, cfg.Simulations)

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	chunk := (cfg.Simulations + workers - 1) / workers

	g, gctx := errgroup.WithContext(ctx)

	for lo := 0; lo < cfg.Simulations; lo += chunk {
		hi := min(lo+chunk, cfg.Simulations)

		g.Go(func() error {
			order := make([]int, len(trades))

			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				rng := rand.New(rand.NewPCG(seed, uint64(i)))
				resample(order, identity, cfg.Mode, rng)
				samples[i] = simulate(order, returns, pnls, cfg.InitialCapital, periodsPerYear)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{
		Mode:        cfg.Mode,
		Simulations: cfg.Simulations,
		Seed:        seed,
		Trades:      len(trades),
		Original:    simulate(identity, returns, pnls, cfg.InitialCapital, periodsPerYear),
		Samples:     samples,
	}

	pick := func(f func(Stats) float64) []float64 {
		out := make([]float64, len(samples))
		for i, s := range samples {
			out[i] = f(s)
		}

		return out
	}

	result.TotalReturn = summarise(pick(func(s Stats) float64 { return s.TotalReturn }), cfg.Percentiles)
	result.MaxDrawdown = summarise(pick(func(s Stats) float64 { return s.MaxDrawdown }), cfg.Percentiles)
	result.Sharpe = summarise(pick(func(s Stats) float64 { return s.Sharpe }), cfg.Percentiles)
	result.TotalPnL = summarise(pick(func(s Stats) float64 { return s.TotalPnL }), cfg.Percentiles)

	losses := 0

	for _, s := range samples {
		if s.TotalReturn < 0 {
			losses++
		}
	}

	result.ProbabilityOfLoss = float64(losses) / float64(len(samples))

	return result, nil
}

// resample fills order with trade indices drawn according to mode.
func resample(order []int, identity []int, mode Mode, rng *rand.Rand) {
	switch mode {
	case ModeBootstrap:
		for i := range order {
			order[i] = rng.IntN(len(identity))
		}
	case ModeShuffle:
		copy(order, identity)
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
	default:
		copy(order, identity)
	}
}

// simulate compounds the trade returns in order into an equity path starting
// at initial. A trade losing everything ends the path at zero.
func simulate(order []int, returns []float64, pnls []float64, initial float64, periodsPerYear float64) Stats {
	equity := make([]float64, 0, len(order)+1)
	equity = append(equity, initial)

	path := make([]float64, 0, len(order))
	value := initial
	pnl := 0.0

	for _, idx := range order {
		growth := math.Max(1+returns[idx], 0)
		value *= growth

		path = append(path, returns[idx])
		equity = append(equity, value)
		pnl += pnls[idx]
	}

	sharpe, _ := metrics.Sharpe(path, periodsPerYear)

	return Stats{
		TotalReturn: value/initial - 1,
		MaxDrawdown: metrics.MaxDrawdown(equity),
		Sharpe:      sharpe,
		TotalPnL:    pnl,
	}
}

func summarise(values []float64, percentiles []float64) Distribution {
	d := Distribution{Percentiles: make([]Quantile, 0, len(percentiles))}

	if len(values) > 1 {
		d.Mean, d.StdDev = stat.MeanStdDev(values, nil)
	} else {
		d.Mean = values[0]
	}

	for _, p := range slices.Sorted(slices.Values(percentiles)) {
		d.Percentiles = append(d.Percentiles, Quantile{Percentile: p, Value: metrics.Percentile(values, p)})
	}

	return d
}

// TradesPerYear estimates how many trades the strategy closes per year from
// the span between the first entry and the last exit. It returns 1 when the
// span is empty.
func TradesPerYear(trades []types.Trade) float64 {
	first := trades[0].EntryTime
	last := trades[0].ExitTime

	for _, t := range trades {
		if t.EntryTime.Before(first) {
			first = t.EntryTime
		}

		if t.ExitTime.After(last) {
			last = t.ExitTime
		}
	}

	years := last.Sub(first).Hours() / (24 * 365.25)
	if years <= 0 || first.IsZero() {
		return 1
	}

	return float64(len(trades)) / years
}
