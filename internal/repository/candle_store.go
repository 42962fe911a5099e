package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	pkgch "PatternPull/pkg/clickhouse"
	applogger "PatternPull/pkg/logger"
)

// CHCandleStore reads and writes candles in one ClickHouse table keyed by (symbol, tf, t).
type CHCandleStore struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(ch *pkgch.Client, table string, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{ch: ch, table: table, l: l}
}

// CandleSchema returns the DDL for the candles table.
func CandleSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        symbol LowCardinality(String),
        tf     LowCardinality(String),
        t      DateTime64(3, 'UTC'),
        open   Float64,
        high   Float64,
        low    Float64,
        close  Float64,
        volume Float64
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, tf, t)`, table)}
}

func (s *CHCandleStore) Init(ctx context.Context) error {
	return s.ch.Exec(ctx, CandleSchema(s.table)...)
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	const qtpl = `
        SELECT t, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND tf = ? AND t >= ? AND t <= ?
        ORDER BY t ASC
    `
	return s.query(ctx, "get_candles", symbol, tf, false,
		fmt.Sprintf(qtpl, s.table), symbol, string(tf), from, to)
}

func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	const qtpl = `
        SELECT t, symbol, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY t DESC
        LIMIT ?
    `
	return s.query(ctx, "latest_candles", symbol, tf, true,
		fmt.Sprintf(qtpl, s.table), symbol, string(tf), n)
}

func (s *CHCandleStore) query(ctx context.Context, op, symbol string, tf domrepo.Timeframe, reverse bool, q string, args ...interface{}) ([]models.Candle, error) {
	start := time.Now()
	fail := func(stage string, err error) error {
		s.l.Error("clickhouse "+op+" "+stage+" error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return fmt.Errorf("%s %s: %w", op, stage, err)
	}

	rows, err := s.ch.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fail("query", err)
	}
	defer rows.Close()

	out := make([]models.Candle, 0, 512)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Bucket, &c.Symbol, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fail("scan", err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("rows", err)
	}
	if reverse {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}

	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// StoreCandles upserts candles; ReplacingMergeTree keeps the last write per bar.
func (s *CHCandleStore) StoreCandles(ctx context.Context, tf domrepo.Timeframe, candles []models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, tf, t, open, high, low, close, volume)", s.table)
	err := s.ch.Batch(ctx, q, func(stmt *sql.Stmt) error {
		for _, c := range candles {
			if _, err := stmt.ExecContext(ctx, c.Symbol, string(tf), c.Bucket, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
				return fmt.Errorf("append candle: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.l.Error("clickhouse store_candles error",
			applogger.String("table", s.table),
			applogger.Int("rows", len(candles)),
			applogger.Error(err),
		)
		return err
	}
	return nil
}
