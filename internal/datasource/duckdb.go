package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-backtest/internal/logger"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
	"go.uber.org/zap"
)

// marketDataView is the view Initialize creates over the parquet file.
const marketDataView = "market_data"

// DuckDBDataSource reads bars from a parquet file through an embedded DuckDB.
// The file needs the columns time, symbol, open, high, low, close and volume.
type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

var _ DataSource = (*DuckDBDataSource)(nil)

// NewDuckDBDataSource opens a DuckDB database at dbPath. Use ":memory:" for an
// in-process database. Call Initialize to attach market data.
func NewDuckDBDataSource(dbPath string, log *logger.Logger) (*DuckDBDataSource, error) {
	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	// buckets and time filters are evaluated in UTC
	if _, err := db.Exec(`SET TimeZone = 'UTC'; SET threads = 4;`); err != nil {
		db.Close()

		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to configure duckdb", err)
	}

	if log == nil {
		log = logger.NewNopLogger()
	}

	return &DuckDBDataSource{
		db:     db,
		logger: log,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// OpenParquet opens an in-memory DuckDB data source over the parquet file at path.
func OpenParquet(path string, log *logger.Logger) (*DuckDBDataSource, error) {
	ds, err := NewDuckDBDataSource(":memory:", log)
	if err != nil {
		return nil, err
	}

	if err := ds.Initialize(path); err != nil {
		ds.Close()

		return nil, err
	}

	return ds, nil
}

// Initialize (re)creates the market data view over the parquet file at path.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	if _, err := d.db.Exec(`DROP VIEW IF EXISTS ` + marketDataView); err != nil {
		return errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to drop existing view", err)
	}

	// squirrel has no CREATE VIEW, and read_parquet does not take a bound parameter
	query := fmt.Sprintf(`CREATE VIEW %s AS SELECT * FROM read_parquet('%s')`,
		marketDataView, strings.ReplaceAll(path, "'", "''"))

	if _, err := d.db.Exec(query); err != nil {
		return errors.Wrapf(errors.ErrCodeDataSourceUnavailable, err, "failed to read parquet file %s", path)
	}

	return nil
}

// Query implements DataSource. With a timeframe the stored bars are bucketed
// with time_bucket: first open, highest high, lowest low, last close and
// summed volume per bucket.
func (d *DuckDBDataSource) Query(ctx context.Context, req Request) ([]types.Bar, error) {
	query, args, err := d.buildQuery(req)
	if err != nil {
		return nil, err
	}

	d.logger.Debug("Querying bars",
		zap.String("symbol", req.Symbol),
		zap.String("query", query))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeQueryFailed, err, "failed to query bars for %s", req.Symbol)
	}
	defer rows.Close()

	result := make([]types.Bar, 0, 1024)

	for rows.Next() {
		var bar types.Bar

		err := rows.Scan(&bar.Time, &bar.Symbol, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.Volume)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan row", err)
		}

		bar.Time = bar.Time.UTC()
		result = append(result, bar)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating rows", err)
	}

	return result, nil
}

// Symbols implements DataSource.
func (d *DuckDBDataSource) Symbols(ctx context.Context) ([]string, error) {
	query, args, err := d.sq.
		Select("DISTINCT symbol").
		From(marketDataView).
		OrderBy("symbol").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to get symbols", err)
	}
	defer rows.Close()

	var symbols []string

	for rows.Next() {
		var symbol string
		if err := rows.Scan(&symbol); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan symbol", err)
		}

		symbols = append(symbols, symbol)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating symbols", err)
	}

	return symbols, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	if d.db != nil {
		return d.db.Close()
	}

	return nil
}

func (d *DuckDBDataSource) buildQuery(req Request) (string, []any, error) {
	where := squirrel.And{squirrel.Eq{"symbol": req.Symbol}}

	if req.Start.IsSome() {
		where = append(where, squirrel.GtOrEq{"time": req.Start.Unwrap().UTC()})
	}

	if req.End.IsSome() {
		where = append(where, squirrel.LtOrEq{"time": req.End.Unwrap().UTC()})
	}

	if req.Timeframe.IsNone() {
		query, args, err := d.sq.
			Select("time", "symbol", "open", "high", "low", "close", "volume").
			From(marketDataView).
			Where(where).
			OrderBy("time ASC").
			ToSql()
		if err != nil {
			return "", nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
		}

		return query, args, nil
	}

	interval, err := bucketInterval(req.Timeframe.Unwrap())
	if err != nil {
		return "", nil, err
	}

	query, args, err := d.sq.
		Select(
			fmt.Sprintf("time_bucket(INTERVAL '%s', time) AS bucket", interval),
			"symbol",
			"arg_min(open, time) AS open",
			"max(high) AS high",
			"min(low) AS low",
			"arg_max(close, time) AS close",
			"sum(volume) AS volume",
		).
		From(marketDataView).
		Where(where).
		GroupBy("bucket", "symbol").
		OrderBy("bucket ASC").
		ToSql()
	if err != nil {
		return "", nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build query", err)
	}

	return query, args, nil
}
