package repository

import (
	"context"
	"time"

	"PatternPull/internal/domain/models"
)

// CandleSource returns candles oldest first.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Candle, error)
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}

// CandleSink persists closed candles.
type CandleSink interface {
	StoreCandles(ctx context.Context, tf Timeframe, candles []models.Candle) error
}

// CandlePublisher forwards closed candles to the ingest bus.
type CandlePublisher interface {
	Publish(ctx context.Context, c models.Candle) error
}

// CandleStream is a live feed of closed candles.
type CandleStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type SignalQuery struct {
	Symbol string
	From   time.Time
	To     time.Time
	Limit  int
}

type SignalStorage interface {
	Init(ctx context.Context) error
	StoreBatch(ctx context.Context, events []models.SignalEvent) error
	Query(ctx context.Context, q SignalQuery) ([]models.SignalEvent, error)
	Health(ctx context.Context) error
	Close() error
}

type SignalPublisher interface {
	PublishBatch(ctx context.Context, events []models.SignalEvent) error
	Close() error
}

// ScanCache stores scan summaries; Lock guards a key against concurrent scans.
type ScanCache interface {
	Get(ctx context.Context, key string) (*models.ScanSummary, bool)
	Set(ctx context.Context, key string, s *models.ScanSummary) error
	Invalidate(ctx context.Context, symbol string) error
	Lock(ctx context.Context, key string) (release func(), ok bool)
}

type Metrics interface {
	RecordSignal(symbol, direction string)
	RecordScan(result string)
	RecordError(kind string)
	RecordLastClose(symbol string, price float64)
	RecordLatency(op string, seconds float64)
}
