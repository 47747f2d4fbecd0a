package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/sweep"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/writer"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/strategy"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/validation/montecarlo"
	"github.com/rxtech-lab/argo-backtest/internal/validation/walkforward"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func runAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}

	mode, err := backtest.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}

	sma, err := strategy.NewSMACrossover(cmd.Int("fast"), cmd.Int("slow"), cmd.Bool("allow-short"))
	if err != nil {
		return err
	}

	bar := newProgressBar(cmd, len(s.bars), fmt.Sprintf("%s %s", mode, sma.Name()))
	progress := engine.OnProcessDataCallback(func(current int, _ int) error {
		return bar.Set(current)
	})

	backtester, err := backtest.New(mode, s.config,
		engine.WithLogger(s.logger),
		engine.WithObserver(s.observer),
		engine.WithProgress(progress))
	if err != nil {
		return err
	}

	result, err := backtester.Run(ctx, engine.Inputs{
		Symbol:      cmd.String("symbol"),
		Bars:        s.bars,
		Strategy:    sma,
		DataRepairs: s.repairs,
		SplitIndex:  -1,
	})
	if err != nil {
		return err
	}

	_ = bar.Finish()

	stats, err := writer.NewWriter(cmd.String("output"), s.logger).Write(result)
	if err != nil {
		return err
	}

	printStats(s.out, stats)
	printEvents(s.out, s.events)

	return nil
}

func sweepAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}

	mode, err := backtest.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}

	backtester, err := backtest.New(mode, s.config, engine.WithLogger(s.logger), engine.WithObserver(s.observer))
	if err != nil {
		return err
	}

	var jobs []sweep.Job

	for _, fast := range cmd.IntSlice("fast") {
		for _, slow := range cmd.IntSlice("slow") {
			sma, err := strategy.NewSMACrossover(fast, slow, cmd.Bool("allow-short"))
			if err != nil {
				s.logger.Debug("Skipping grid point", zap.Int("fast", fast), zap.Int("slow", slow), zap.Error(err))

				continue
			}

			jobs = append(jobs, sweep.Job{
				Name:       fmt.Sprintf("sma_%d_%d", fast, slow),
				Parameters: sma.Parameters(),
				Backtester: backtester,
				Inputs: engine.Inputs{
					Symbol:      cmd.String("symbol"),
					Bars:        s.bars,
					Strategy:    sma,
					DataRepairs: s.repairs,
					SplitIndex:  -1,
				},
			})
		}
	}

	if len(jobs) == 0 {
		return fmt.Errorf("the moving average grid has no pair with fast < slow")
	}

	bar := newProgressBar(cmd, len(jobs), "sweep")
	runner := sweep.NewRunner(cmd.Int("workers"))
	runner.Logger = s.logger
	runner.OnProgress = func(done int, _ int) {
		_ = bar.Set(done)
	}

	outcomes := runner.Run(ctx, jobs)
	_ = bar.Finish()

	w := writer.NewWriter(cmd.String("output"), s.logger)
	table := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "JOB\tSHARPE\tTOTAL RETURN\tMAX DRAWDOWN\tTRADES\tRUN")

	for _, outcome := range outcomes {
		if outcome.Err != nil {
			fmt.Fprintf(table, "%s\tfailed: %v\t\t\t\t\n", outcome.Name, outcome.Err)

			continue
		}

		stats, err := w.Write(outcome.Result)
		if err != nil {
			return err
		}

		m := outcome.Result.Metrics
		fmt.Fprintf(table, "%s\t%.3f\t%.2f%%\t%.2f%%\t%d\t%s\n",
			outcome.Name, m.Sharpe, m.TotalReturn*100, m.MaxDrawdown*100, m.TotalTrades, stats.ID)
	}

	if err := table.Flush(); err != nil {
		return err
	}

	if best, ok := sweep.Best(outcomes, func(m types.Metrics) float64 { return m.Sharpe }); ok {
		fmt.Fprintf(s.out, "\nBest by Sharpe: %s (%s)\n", best.Name, best.Result.Metadata.RunID)
	}

	return ctx.Err()
}

func walkForwardAction(ctx context.Context, cmd *cli.Command) error {
	s, err := newSession(ctx, cmd)
	if err != nil {
		return err
	}

	mode, err := backtest.ParseMode(cmd.String("mode"))
	if err != nil {
		return err
	}

	splits := walkforward.NewSplitConfig(cmd.Int("train"), cmd.Int("test"))
	splits.ReserveFraction = cmd.Float("reserve")

	if step := cmd.Int("step"); step > 0 {
		splits.Step = step
	}

	backtester, err := backtest.New(mode, s.config, engine.WithLogger(s.logger), engine.WithObserver(s.observer))
	if err != nil {
		return err
	}

	bar := newProgressBar(cmd, -1, "walk-forward")
	validator := walkforward.NewValidator(splits, backtester,
		walkforward.WithWorkers(cmd.Int("workers")),
		walkforward.WithObserver(s.observer),
		walkforward.WithLogger(s.logger),
		walkforward.WithSplitProgress(func(done int, total int) {
			bar.ChangeMax(total)
			_ = bar.Set(done)
		}))

	factory := strategy.NewSMACrossoverFactory(strategy.SMAGrid{
		Fast:       cmd.IntSlice("fast"),
		Slow:       cmd.IntSlice("slow"),
		AllowShort: cmd.Bool("allow-short"),
	})

	result, err := validator.Validate(ctx, s.bars, factory)
	if err != nil {
		return err
	}

	_ = bar.Finish()

	stats, err := writer.NewWriter(cmd.String("output"), s.logger).WriteWalkForward(result)
	if err != nil {
		return err
	}

	table := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(table, "SPLIT\tTEST START\tTEST END\tPARAMETERS\tSHARPE\tTOTAL RETURN")

	for _, sr := range result.Splits {
		fmt.Fprintf(table, "%d\t%s\t%s\t%v\t%.3f\t%.2f%%\n",
			sr.Split.Index,
			sr.Test.StartTime.Format("2006-01-02 15:04"),
			sr.Test.EndTime.Format("2006-01-02 15:04"),
			sr.Parameters,
			sr.Result.Metrics.Sharpe,
			sr.Result.Metrics.TotalReturn*100)
	}

	if err := table.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(s.out, "\nReserved %d bars from %s for a final test\n",
		result.Reserve.Len(), result.Reserve.StartTime.Format("2006-01-02 15:04"))
	printStats(s.out, stats)
	printEvents(s.out, s.events)

	return nil
}

func monteCarloAction(ctx context.Context, cmd *cli.Command) error {
	l, err := logger.NewLoggerWithLevel(cmd.String("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	dir := filepath.Clean(cmd.String("result"))

	result, err := writer.Read(dir)
	if err != nil {
		return err
	}

	config := montecarlo.DefaultConfig()
	config.Simulations = cmd.Int("simulations")
	config.Mode = montecarlo.Mode(cmd.String("mode"))
	config.Percentiles = cmd.FloatSlice("percentile")
	config.InitialCapital = result.Metadata.InitialCapital
	config.Workers = cmd.Int("workers")

	if seed := cmd.Int("seed"); seed != 0 {
		config.Seed = optional.Some(uint64(seed))
	}

	mc, err := montecarlo.Run(ctx, result.Trades, config)
	if err != nil {
		return err
	}

	path, err := writer.NewWriter(filepath.Dir(dir), l).WriteMonteCarlo(filepath.Base(dir), mc)
	if err != nil {
		return err
	}

	out := writerOf(cmd)
	fmt.Fprintf(out, "%d %s simulations of %d trades (seed %d)\n", mc.Simulations, mc.Mode, mc.Trades, mc.Seed)

	table := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprint(table, "METRIC\tORIGINAL\tMEAN")

	for _, p := range mc.TotalReturn.Percentiles {
		fmt.Fprintf(table, "\tP%g", p.Percentile)
	}

	fmt.Fprintln(table)

	rows := []struct {
		name     string
		original float64
		dist     montecarlo.Distribution
	}{
		{"total_return", mc.Original.TotalReturn, mc.TotalReturn},
		{"max_drawdown", mc.Original.MaxDrawdown, mc.MaxDrawdown},
		{"sharpe", mc.Original.Sharpe, mc.Sharpe},
	}

	for _, row := range rows {
		fmt.Fprintf(table, "%s\t%.4f\t%.4f", row.name, row.original, row.dist.Mean)

		for _, q := range row.dist.Percentiles {
			fmt.Fprintf(table, "\t%.4f", q.Value)
		}

		fmt.Fprintln(table)
	}

	if err := table.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Probability of loss: %.1f%%\nWritten to %s\n", mc.ProbabilityOfLoss*100, path)

	return nil
}

func schemaAction(_ context.Context, cmd *cli.Command) error {
	dir := cmd.String("output")
	config := engine.EmptyConfig()

	schemaJSON, err := config.GenerateSchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	schemaName := "backtest-config.json"
	schemaPath := filepath.Join(dir, schemaName)

	if err := os.WriteFile(schemaPath, []byte(schemaJSON), 0o644); err != nil {
		return fmt.Errorf("failed to write schema to file: %w", err)
	}

	out := writerOf(cmd)
	fmt.Fprintf(out, "Schema written to %s\n", schemaPath)

	strategies, err := strategy.Schemas()
	if err != nil {
		return fmt.Errorf("failed to generate strategy schemas: %w", err)
	}

	for name, schema := range strategies {
		path := filepath.Join(dir, "strategy-"+name+".json")
		if err := os.WriteFile(path, []byte(schema), 0o644); err != nil {
			return fmt.Errorf("failed to write strategy schema to file: %w", err)
		}

		fmt.Fprintf(out, "Strategy schema written to %s\n", path)
	}

	// an existing sample is never overwritten
	samplePath := filepath.Join(dir, "backtest-config.yaml")
	if _, err := os.Stat(samplePath); err == nil {
		return nil
	}

	sample, err := yaml.Marshal(engine.DefaultConfig())
	if err != nil {
		return fmt.Errorf("failed to marshal sample config to yaml: %w", err)
	}

	sample = append([]byte("# yaml-language-server: $schema="+schemaName+"\n"), sample...)
	if err := os.WriteFile(samplePath, sample, 0o644); err != nil {
		return fmt.Errorf("failed to write sample config to file: %w", err)
	}

	fmt.Fprintf(out, "Sample config written to %s\n", samplePath)

	return nil
}

func printStats(out io.Writer, stats types.RunStats) {
	m := stats.Metrics

	fmt.Fprintf(out, "\nRun %s (%s, %s on %s)\n", stats.ID, stats.Mode, stats.Strategy, stats.Symbol)
	fmt.Fprintf(out, "  Bars:           %d (%s to %s)\n", stats.Data.Bars,
		stats.Data.Start.Format("2006-01-02 15:04"), stats.Data.End.Format("2006-01-02 15:04"))
	fmt.Fprintf(out, "  Final equity:   %.2f (from %.2f)\n", stats.FinalEquity, stats.InitialCapital)
	fmt.Fprintf(out, "  Total return:   %.2f%%  CAGR: %.2f%%\n", m.TotalReturn*100, m.CAGR*100)
	fmt.Fprintf(out, "  Sharpe:         %.3f  Sortino: %.3f  Calmar: %.3f\n", m.Sharpe, m.Sortino, m.Calmar)
	fmt.Fprintf(out, "  Max drawdown:   %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(out, "  Trades:         %d (win rate %.1f%%, profit factor %.2f)\n", m.TotalTrades, m.WinRate*100, m.ProfitFactor)
	fmt.Fprintf(out, "  Costs:          %.4f of equity\n", stats.Costs.Total)

	if len(m.Flags) > 0 {
		fmt.Fprintf(out, "  Flags:          %v\n", m.Flags)
	}

	fmt.Fprintf(out, "  Written to:     %s\n", filepath.Dir(stats.ResultFilePath))
}

func printEvents(out io.Writer, events *log.MemoryObserver) {
	skipped := events.Count(log.EventBarSkipped)
	rejected := events.Count(log.EventOrderRejected)
	halted := events.Count(log.EventHalted)

	if skipped+rejected+halted == 0 {
		return
	}

	fmt.Fprintf(out, "  Events:         %d bars skipped, %d orders rejected, %d halts\n", skipped, rejected, halted)
}
