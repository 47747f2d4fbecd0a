package main

import (
	"fmt"
	"slices"

	"github.com/rxtech-lab/argo-backtest/internal/validation/montecarlo"
	"github.com/rxtech-lab/argo-backtest/internal/validation/walkforward"
	"github.com/rxtech-lab/argo-backtest/internal/version"
	"github.com/urfave/cli/v3"
)

// newApp builds the command tree.
func newApp() *cli.Command {
	return &cli.Command{
		Name:    "backtest",
		Usage:   "Backtest and validate trading strategies on historical bars",
		Version: version.GetVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
				Value: "warn",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Hide progress bars",
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run a single backtest of the SMA crossover strategy",
				Flags:  append(runFlags(), strategyFlags()...),
				Action: runAction,
			},
			{
				Name:   "sweep",
				Usage:  "Backtest every pair of a moving average grid in parallel",
				Flags:  append(append(runFlags(), gridFlags()...), workerFlag()),
				Action: sweepAction,
			},
			{
				Name:  "walkforward",
				Usage: "Walk-forward validate the SMA crossover strategy, refitting its windows on every split",
				Flags: append(append(runFlags(), gridFlags()...),
					workerFlag(),
					&cli.IntFlag{Name: "train", Usage: "Training window in bars", Required: true},
					&cli.IntFlag{Name: "test", Usage: "Test window in bars", Required: true},
					&cli.IntFlag{Name: "step", Usage: "Bars between split starts. Defaults to the test window"},
					&cli.FloatFlag{
						Name:  "reserve",
						Usage: "Fraction of the most recent bars held back from every split",
						Value: walkforward.DefaultReserveFraction,
					},
				),
				Action: walkForwardAction,
			},
			{
				Name:  "montecarlo",
				Usage: "Resample the trades of a written result",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "result",
						Aliases:  []string{"r"},
						Usage:    "Directory of a result written by run or walkforward",
						Required: true,
					},
					&cli.IntFlag{Name: "simulations", Aliases: []string{"n"}, Value: montecarlo.DefaultConfig().Simulations},
					&cli.StringFlag{
						Name:  "mode",
						Usage: fmt.Sprintf("Resampling mode (%s, %s, %s)", montecarlo.ModeShuffle, montecarlo.ModeBootstrap, montecarlo.ModeNone),
						Value: string(montecarlo.ModeShuffle),
					},
					&cli.IntFlag{Name: "seed", Usage: "Seed for reproducible resampling. Random when 0"},
					&cli.FloatSliceFlag{Name: "percentile", Usage: "Percentiles to report", Value: slices.Clone(montecarlo.DefaultPercentiles)},
					workerFlag(),
				},
				Action: monteCarloAction,
			},
			{
				Name:  "schema",
				Usage: "Write the configuration JSON schema and a sample configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Directory to write into",
						Value:   "config",
					},
				},
				Action: schemaAction,
			},
		},
	}
}

func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Backtest configuration YAML. Defaults are used when unset",
		},
		&cli.StringFlag{
			Name:     "data",
			Aliases:  []string{"d"},
			Usage:    "Parquet file of bars with columns time, symbol, open, high, low, close, volume",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "symbol",
			Aliases:  []string{"s"},
			Usage:    "Symbol to backtest",
			Required: true,
		},
		&cli.StringFlag{
			Name:    "mode",
			Aliases: []string{"m"},
			Usage:   "Simulation model (vectorized, event_driven)",
			Value:   "vectorized",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Directory results are written to",
			Value:   "results",
		},
	}
}

func strategyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{Name: "fast", Usage: "Fast moving average window", Value: 10},
		&cli.IntFlag{Name: "slow", Usage: "Slow moving average window", Value: 30},
		&cli.BoolFlag{Name: "allow-short", Usage: "Go short when the fast average is below the slow one"},
	}
}

func gridFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntSliceFlag{Name: "fast", Usage: "Fast moving average windows", Value: []int{5, 10, 20}},
		&cli.IntSliceFlag{Name: "slow", Usage: "Slow moving average windows", Value: []int{30, 50, 100}},
		&cli.BoolFlag{Name: "allow-short", Usage: "Go short when the fast average is below the slow one"},
	}
}

func workerFlag() cli.Flag {
	return &cli.IntFlag{Name: "workers", Aliases: []string{"w"}, Usage: "Parallel workers. Defaults to the number of CPUs"}
}
