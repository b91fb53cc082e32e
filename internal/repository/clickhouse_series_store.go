package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"FinCast/internal/domain/models"
	domrepo "FinCast/internal/domain/repository"
	"FinCast/internal/services/features"
	pkgch "FinCast/pkg/clickhouse"
	applogger "FinCast/pkg/logger"
)

// CHSeriesStore reads candles and persists forecasts in ClickHouse.
type CHSeriesStore struct {
	db            *sql.DB
	l             *applogger.Logger
	forecastTable string
}

func NewCHSeriesStore(ch *pkgch.Client, forecastTable string, l *applogger.Logger) *CHSeriesStore {
	if forecastTable == "" {
		forecastTable = "forecasts"
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSeriesStore{db: ch.DB(), l: l, forecastTable: forecastTable}
}

// Schema returns the DDL for the forecast table.
func (s *CHSeriesStore) Schema() []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            run_id       String,
            key          LowCardinality(String),
            generated_at DateTime64(3),
            step         UInt16,
            ts           Nullable(DateTime64(3)),
            value        Float64,
            confidence   Float64,
            models       Array(String)
        ) ENGINE = MergeTree
        ORDER BY (key, generated_at, step)
    `, s.forecastTable)}
}

func (s *CHSeriesStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	start := time.Now()
	q, err := latestCandlesQuery(tf)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, q, symbol, n)
	if err != nil {
		s.l.Error("clickhouse latest_candles query error",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("get latest candles: %w", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, n)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	// query is DESC; callers want oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	s.l.Debug("clickhouse latest_candles ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// LatestSeries returns the close-price series of the latest n buckets.
func (s *CHSeriesStore) LatestSeries(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) (models.TimeSeriesData, error) {
	candles, err := s.GetLatestNCandles(ctx, symbol, n, tf)
	if err != nil {
		return models.TimeSeriesData{}, err
	}
	series := features.CloseSeries(candles)
	if err := series.Validate(); err != nil {
		return models.TimeSeriesData{}, fmt.Errorf("series for %s: %w", symbol, err)
	}
	return series, nil
}

// SaveForecast writes one row per horizon step in a single batch.
func (s *CHSeriesStore) SaveForecast(ctx context.Context, res *models.ForecastResult) error {
	rows := forecastRows(res)
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin forecast batch: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		"INSERT INTO %s (run_id, key, generated_at, step, ts, value, confidence, models)", s.forecastTable))
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare forecast batch: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.RunID, r.Key, r.GeneratedAt, r.Step, r.TS, r.Value, r.Confidence, r.Models); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("append forecast row: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit forecast batch: %w", err)
	}
	return nil
}

type forecastRow struct {
	RunID       string
	Key         string
	GeneratedAt time.Time
	Step        uint16
	TS          *time.Time
	Value       float64
	Confidence  float64
	Models      []string
}

func forecastRows(res *models.ForecastResult) []forecastRow {
	if res == nil {
		return nil
	}
	used := make([]string, 0, len(res.ModelWeights))
	for name := range res.ModelWeights {
		used = append(used, name)
	}
	out := make([]forecastRow, len(res.Predictions))
	for i, v := range res.Predictions {
		r := forecastRow{
			RunID:       res.RunID,
			Key:         res.Key,
			GeneratedAt: res.GeneratedAt,
			Step:        uint16(i + 1),
			Value:       v,
			Confidence:  res.ConfidenceScore,
			Models:      used,
		}
		if i < len(res.Timestamps) {
			ts := res.Timestamps[i]
			r.TS = &ts
		}
		out[i] = r
	}
	return out
}

func latestCandlesQuery(tf domrepo.Timeframe) (string, error) {
	switch tf {
	case domrepo.TF1s:
		return `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM market.rt_candles_1s
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?`, nil
	case domrepo.TF1m:
		return `
        SELECT bucket, symbol, open, high, low, close, vol
        FROM market.rt_candles_1m
        WHERE symbol = ?
        ORDER BY bucket DESC
        LIMIT ?`, nil
	case domrepo.TF5m:
		return `
        SELECT toStartOfFiveMinutes(bucket) AS b, symbol,
               argMin(open, bucket), max(high), min(low), argMax(close, bucket), sum(vol)
        FROM market.rt_candles_1m
        WHERE symbol = ?
        GROUP BY b, symbol
        ORDER BY b DESC
        LIMIT ?`, nil
	default:
		return "", fmt.Errorf("unsupported timeframe: %s", tf)
	}
}
