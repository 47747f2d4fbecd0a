package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/datasource"
	"github.com/rxtech-lab/argo-backtest/internal/log"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

// session is what every backtesting command sets up before simulating.
type session struct {
	config   engine.Config
	logger   *logger.Logger
	observer log.Observer
	events   *log.MemoryObserver
	bars     []types.Bar
	repairs  types.DataRepair
	out      io.Writer
}

func newSession(ctx context.Context, cmd *cli.Command) (*session, error) {
	l, err := logger.NewLoggerWithLevel(cmd.String("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	config, err := loadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	bars, repairs, err := loadBars(ctx, cmd.String("data"), cmd.String("symbol"), config, l)
	if err != nil {
		return nil, err
	}

	events := log.NewMemoryObserver()

	return &session{
		config:   config,
		logger:   l,
		observer: log.MultiObserver{log.NewZapObserver(l), events},
		events:   events,
		bars:     bars,
		repairs:  repairs,
		out:      writerOf(cmd),
	}, nil
}

// loadConfig reads a YAML configuration, or returns DefaultConfig when path is empty.
func loadConfig(path string) (engine.Config, error) {
	if path == "" {
		return engine.DefaultConfig(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return engine.Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	config := engine.EmptyConfig()
	if err := yaml.Unmarshal(data, &config); err != nil {
		return engine.Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return config, nil
}

// loadBars reads the configured window of symbol from a parquet file.
func loadBars(ctx context.Context, path string, symbol string, config engine.Config, l *logger.Logger) ([]types.Bar, types.DataRepair, error) {
	ds, err := datasource.OpenParquet(path, l)
	if err != nil {
		return nil, types.DataRepair{}, err
	}
	defer ds.Close()

	req := datasource.Request{
		Symbol:    symbol,
		Start:     config.StartTime,
		End:       config.EndTime,
		Timeframe: optional.None[types.Timeframe](),
	}

	if config.Timeframe != "" {
		req.Timeframe = optional.Some(config.Timeframe)
	}

	return datasource.Load(ctx, ds, req, config.LenientData)
}

func newProgressBar(cmd *cli.Command, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetVisibility(!cmd.Bool("quiet")),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func writerOf(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}

	return os.Stdout
}
