package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	pkgch "PatternPull/pkg/clickhouse"
	applogger "PatternPull/pkg/logger"
)

// CHSignalStorage keeps signal events in ClickHouse. Breakouts and the box are stored as JSON strings.
type CHSignalStorage struct {
	ch    *pkgch.Client
	table string
	l     *applogger.Logger
}

func NewCHSignalStorage(ch *pkgch.Client, table string, l *applogger.Logger) *CHSignalStorage {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHSignalStorage{ch: ch, table: table, l: l}
}

func SignalSchema(table string) []string {
	return []string{fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
        id           String,
        symbol       LowCardinality(String),
        tf           LowCardinality(String),
        ts           DateTime64(3, 'UTC'),
        direction    LowCardinality(String),
        bar_index    Int64,
        close        Float64,
        is_long      Bool,
        is_short     Bool,
        window_start Int32,
        window_end   Int32,
        breakouts    String,
        box          String
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, tf, ts, direction)`, table)}
}

func (s *CHSignalStorage) Init(ctx context.Context) error {
	return s.ch.Exec(ctx, SignalSchema(s.table)...)
}

func (s *CHSignalStorage) StoreBatch(ctx context.Context, events []models.SignalEvent) error {
	if len(events) == 0 {
		return nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, symbol, tf, ts, direction, bar_index, close, is_long, is_short,
        window_start, window_end, breakouts, box)`, s.table)

	err := s.ch.Batch(ctx, q, func(stmt *sql.Stmt) error {
		for _, e := range events {
			breakouts, box, err := encodeSignalExtras(e)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx,
				e.ID, e.Symbol, e.Timeframe, e.Timestamp, string(e.Direction), int64(e.Index), e.Close,
				e.Long, e.Short, int32(e.WindowStart), int32(e.WindowEnd), breakouts, box,
			); err != nil {
				return fmt.Errorf("append signal: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		s.l.Error("clickhouse store_signals error", applogger.Int("rows", len(events)), applogger.Error(err))
		return err
	}
	return nil
}

func (s *CHSignalStorage) Query(ctx context.Context, q domrepo.SignalQuery) ([]models.SignalEvent, error) {
	if q.To.IsZero() {
		q.To = time.Now().UTC()
	}
	if q.Limit <= 0 {
		q.Limit = 100
	}
	stmt := fmt.Sprintf(`
        SELECT id, symbol, tf, ts, direction, bar_index, close, is_long, is_short,
               window_start, window_end, breakouts, box
        FROM %s FINAL
        WHERE symbol = ? AND ts >= ? AND ts <= ?
        ORDER BY ts DESC
        LIMIT ?`, s.table)

	rows, err := s.ch.DB().QueryContext(ctx, stmt, q.Symbol, q.From, q.To, q.Limit)
	if err != nil {
		s.l.Error("clickhouse query_signals error", applogger.String("symbol", q.Symbol), applogger.Error(err))
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.SignalEvent
	for rows.Next() {
		var (
			e                models.SignalEvent
			dir, breakouts   string
			box              string
			index            int64
			winStart, winEnd int32
		)
		if err := rows.Scan(&e.ID, &e.Symbol, &e.Timeframe, &e.Timestamp, &dir, &index, &e.Close,
			&e.Long, &e.Short, &winStart, &winEnd, &breakouts, &box); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		e.Direction = models.Direction(dir)
		e.Index = int(index)
		e.WindowStart, e.WindowEnd = int(winStart), int(winEnd)
		e.Timestamp = e.Timestamp.UTC()
		if err := decodeSignalExtras(&e, breakouts, box); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *CHSignalStorage) Health(ctx context.Context) error {
	return s.ch.Health(ctx)
}

// Close is a no-op; the ClickHouse client is shared and closed by the app.
func (s *CHSignalStorage) Close() error { return nil }

func encodeSignalExtras(e models.SignalEvent) (breakouts, box string, err error) {
	b, err := json.Marshal(e.Breakouts)
	if err != nil {
		return "", "", fmt.Errorf("encode breakouts: %w", err)
	}
	breakouts = string(b)
	if e.Box != nil {
		bb, err := json.Marshal(e.Box)
		if err != nil {
			return "", "", fmt.Errorf("encode box: %w", err)
		}
		box = string(bb)
	}
	return breakouts, box, nil
}

func decodeSignalExtras(e *models.SignalEvent, breakouts, box string) error {
	if breakouts != "" && breakouts != "null" {
		if err := json.Unmarshal([]byte(breakouts), &e.Breakouts); err != nil {
			return fmt.Errorf("decode breakouts: %w", err)
		}
	}
	if box != "" {
		var b models.BoundingBox
		if err := json.Unmarshal([]byte(box), &b); err != nil {
			return fmt.Errorf("decode box: %w", err)
		}
		e.Box = &b
	}
	return nil
}
