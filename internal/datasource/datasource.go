// Package datasource loads historical bars for a run. Loading is the only
// blocking step before a simulation; everything after it works on the
// returned slice.
package datasource

import (
	"context"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Request selects the bars of one symbol.
type Request struct {
	Symbol string
	// Start and End bound the bar times, both inclusive.
	Start optional.Option[time.Time]
	End   optional.Option[time.Time]
	// Timeframe resamples the stored bars into buckets of this length.
	Timeframe optional.Option[types.Timeframe]
}

// DataSource is a store of historical bars.
type DataSource interface {
	// Query returns the bars matching req in ascending time order.
	Query(ctx context.Context, req Request) ([]types.Bar, error)
	// Symbols returns every symbol the source holds.
	Symbols(ctx context.Context) ([]string, error)
	// Close releases the resources of the source.
	Close() error
}

func (r Request) contains(t time.Time) bool {
	if r.Start.IsSome() && t.Before(r.Start.Unwrap()) {
		return false
	}

	if r.End.IsSome() && t.After(r.End.Unwrap()) {
		return false
	}

	return true
}
