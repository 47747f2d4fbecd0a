// Package sweep runs independent backtests in parallel, for example one per
// point of a parameter grid.
package sweep

import (
	"context"
	"runtime"
	"sync"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/engine"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Job is one backtest of a sweep. Jobs may share read-only bars.
type Job struct {
	Name       string
	Parameters map[string]any
	Backtester engine.Backtester
	Inputs     engine.Inputs
}

// Outcome is the result of one job. Exactly one of Result and Err is set.
type Outcome struct {
	Name       string
	Parameters map[string]any
	Result     *types.BacktestResult
	Err        error
}

// ProgressCallback is called each time a job finishes.
type ProgressCallback func(done int, total int)

// Runner executes jobs on a bounded pool of workers.
type Runner struct {
	// Workers defaults to GOMAXPROCS.
	Workers    int
	Logger     *logger.Logger
	OnProgress ProgressCallback
}

// NewRunner creates a runner with the given number of workers.
func NewRunner(workers int) *Runner {
	return &Runner{Workers: workers, Logger: logger.NewNopLogger()}
}

// Run executes every job and returns one outcome per job, in job order. A
// failed job records its error without affecting its siblings. Once ctx is
// cancelled no further job starts; jobs already running complete and the
// rest report ctx's error.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Outcome {
	outcomes := make([]Outcome, len(jobs))
	for i, job := range jobs {
		outcomes[i] = Outcome{Name: job.Name, Parameters: job.Parameters}
	}

	workers := r.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	log := r.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	var (
		g    errgroup.Group
		mu   sync.Mutex
		done int
	)

	g.SetLimit(workers)

	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			for k := i; k < len(jobs); k++ {
				outcomes[k].Err = err
			}

			break
		}

		g.Go(func() error {
			in := job.Inputs
			if in.Parameters == nil {
				in.Parameters = job.Parameters
			}

			result, err := job.Backtester.Run(ctx, in)
			if err != nil {
				log.Warn("sweep job failed", zap.String("job", job.Name), zap.Error(err))
			}

			outcomes[i].Result = result
			outcomes[i].Err = err

			mu.Lock()
			done++
			current := done
			mu.Unlock()

			if r.OnProgress != nil {
				r.OnProgress(current, len(jobs))
			}

			return nil
		})
	}

	_ = g.Wait()

	return outcomes
}

// Succeeded returns the outcomes that produced a result.
func Succeeded(outcomes []Outcome) []Outcome {
	out := make([]Outcome, 0, len(outcomes))

	for _, o := range outcomes {
		if o.Err == nil && o.Result != nil {
			out = append(out, o)
		}
	}

	return out
}

// Best returns the successful outcome with the highest score, or false when
// none succeeded.
func Best(outcomes []Outcome, score func(types.Metrics) float64) (Outcome, bool) {
	var (
		best  Outcome
		found bool
	)

	for _, o := range Succeeded(outcomes) {
		if !found || score(o.Result.Metrics) > score(best.Result.Metrics) {
			best, found = o, true
		}
	}

	return best, found
}
