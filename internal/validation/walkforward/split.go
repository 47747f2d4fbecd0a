package walkforward

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// DefaultReserveFraction is the share of the most recent bars kept out of
// every split.
const DefaultReserveFraction = 0.2

// SplitConfig is the rolling schedule, in bars.
type SplitConfig struct {
	TrainWindow int `yaml:"train_window" json:"train_window" validate:"gt=0"`
	TestWindow  int `yaml:"test_window" json:"test_window" validate:"gt=0"`
	// Step slides the schedule. It may not be shorter than TestWindow so test
	// segments never overlap.
	Step int `yaml:"step" json:"step" validate:"gt=0,gtefield=TestWindow"`
	// ReserveFraction of the most recent bars is never used by any split.
	ReserveFraction float64 `yaml:"reserve_fraction" json:"reserve_fraction" validate:"gte=0,lt=1"`
}

// NewSplitConfig returns back-to-back test windows with the default reserve.
func NewSplitConfig(train, test int) SplitConfig {
	return SplitConfig{
		TrainWindow:     train,
		TestWindow:      test,
		Step:            test,
		ReserveFraction: DefaultReserveFraction,
	}
}

// Validate validates the SplitConfig struct.
func (c SplitConfig) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidSplitWindow, "invalid walk-forward schedule", err)
	}

	return nil
}

// TrainTestSplit is one fold. Ranges are half-open bar indices.
type TrainTestSplit struct {
	Index      int `yaml:"index" json:"index"`
	TrainStart int `yaml:"train_start" json:"train_start"`
	TrainEnd   int `yaml:"train_end" json:"train_end"`
	TestStart  int `yaml:"test_start" json:"test_start"`
	TestEnd    int `yaml:"test_end" json:"test_end"`
}

// Train returns the training bars of the split.
func (s TrainTestSplit) Train(bars []types.Bar) []types.Bar {
	return bars[s.TrainStart:s.TrainEnd:s.TrainEnd]
}

// Test returns the out-of-sample bars of the split.
func (s TrainTestSplit) Test(bars []types.Bar) []types.Bar {
	return bars[s.TestStart:s.TestEnd:s.TestEnd]
}

// Range is a half-open span of bars with its timestamps.
type Range struct {
	Start     int       `yaml:"start" json:"start"`
	End       int       `yaml:"end" json:"end"`
	StartTime time.Time `yaml:"start_time" json:"start_time"`
	EndTime   time.Time `yaml:"end_time" json:"end_time"`
}

// Len returns the number of bars in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Schedule is the result of GenerateSplits.
type Schedule struct {
	Splits []TrainTestSplit
	// ReserveStart is the first bar of the untouched tail.
	ReserveStart int
	Bars         int
}

// Reserve returns the reserved tail of bars.
func (s Schedule) Reserve(bars []types.Bar) Range {
	r := Range{Start: s.ReserveStart, End: s.Bars}
	if r.Len() > 0 && len(bars) >= s.Bars {
		r.StartTime = bars[r.Start].Time
		r.EndTime = bars[r.End-1].Time
	}

	return r
}

// GenerateSplits lays out rolling train/test splits over n bars. The last
// n - floor(n×(1-R)) bars are reserved. Splits [s, s+W) → [s+W, s+W+T) slide
// by Step while s+W+T stays at or before the reserve.
func GenerateSplits(n int, cfg SplitConfig) (Schedule, error) {
	if err := cfg.Validate(); err != nil {
		return Schedule{}, err
	}

	reserveStart := int(float64(n) * (1 - cfg.ReserveFraction))
	schedule := Schedule{ReserveStart: reserveStart, Bars: n}

	required := cfg.TrainWindow + cfg.TestWindow
	if reserveStart < required {
		return schedule, errors.NewInsufficientDataErrorf(required, reserveStart, "",
			"after reserving %.0f%% of %d bars only %d remain, need train_window %d + test_window %d",
			cfg.ReserveFraction*100, n, reserveStart, cfg.TrainWindow, cfg.TestWindow)
	}

	for s := 0; s+required <= reserveStart; s += cfg.Step {
		schedule.Splits = append(schedule.Splits, TrainTestSplit{
			Index:      len(schedule.Splits),
			TrainStart: s,
			TrainEnd:   s + cfg.TrainWindow,
			TestStart:  s + cfg.TrainWindow,
			TestEnd:    s + required,
		})
	}

	return schedule, nil
}
