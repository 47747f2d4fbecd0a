package datasource

import (
	"context"

	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// Load queries ds and validates the bars for simulation. In lenient mode
// missing fields and timestamp gaps are repaired and counted; otherwise they
// are data errors.
func Load(ctx context.Context, ds DataSource, req Request, lenient bool) ([]types.Bar, types.DataRepair, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.DataRepair{}, err
	}

	bars, err := ds.Query(ctx, req)
	if err != nil {
		if errors.GetCode(err) != errors.ErrCodeUnknown || ctx.Err() != nil {
			return nil, types.DataRepair{}, err
		}

		return nil, types.DataRepair{}, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to load bars for %s", req.Symbol)
	}

	if len(bars) == 0 {
		return nil, types.DataRepair{}, errors.Newf(errors.ErrCodeDataNotFound, "no bars found for symbol %s", req.Symbol)
	}

	return types.ValidateBars(bars, req.Timeframe.TakeOr(""), lenient)
}
