package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/internal/services/detector"
	applogger "PatternPull/pkg/logger"
)

// LiveDetector runs one streaming engine per symbol over closed candles and
// emits a signal when the gate fires on the newest bar. Live events are never
// labeled: their output window lies in the future.
type LiveDetector struct {
	cfg       detector.Config
	tf        domrepo.Timeframe
	first     int
	storage   domrepo.SignalStorage
	publisher domrepo.SignalPublisher
	metrics   domrepo.Metrics
	l         *applogger.Logger

	mu      sync.Mutex
	engines map[string]*liveSeries
}

type liveSeries struct {
	mu     sync.Mutex
	engine *detector.Engine
	last   models.Candle
	seen   bool
}

func NewLiveDetector(cfg detector.Config, tf domrepo.Timeframe, storage domrepo.SignalStorage, publisher domrepo.SignalPublisher, metrics domrepo.Metrics, l *applogger.Logger) *LiveDetector {
	if l == nil {
		l = applogger.Nop()
	}
	return &LiveDetector{
		cfg:       cfg,
		tf:        tf,
		first:     detector.NewScanner(cfg).FirstIndex(),
		storage:   storage,
		publisher: publisher,
		metrics:   metrics,
		l:         l.With(applogger.String("component", "live_detector")),
		engines:   make(map[string]*liveSeries),
	}
}

func (d *LiveDetector) series(symbol string) *liveSeries {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.engines[symbol]
	if !ok {
		s = &liveSeries{engine: detector.NewEngine(d.cfg)}
		d.engines[symbol] = s
	}
	return s
}

// step feeds c to its symbol's engine. Candles at or before the last seen
// bucket are dropped so redelivery never advances the engine twice.
func (d *LiveDetector) step(c models.Candle) (detector.Bar, bool) {
	s := d.series(c.Symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen && !c.Bucket.After(s.last.Bucket) {
		return detector.Bar{}, false
	}
	s.last, s.seen = c, true
	return s.engine.Step(c), true
}

// OnCandle processes one closed candle. It returns the emitted event, if any.
// Storage and publish failures are logged and counted, not returned.
func (d *LiveDetector) OnCandle(ctx context.Context, c models.Candle) (*models.SignalEvent, error) {
	if c.Symbol == "" {
		return nil, fmt.Errorf("%w: missing symbol", ErrInvalidCandle)
	}
	if err := c.Valid(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCandle, err)
	}

	bar, ok := d.step(c)
	if !ok {
		d.l.Debug("stale candle dropped",
			applogger.String("symbol", c.Symbol),
			applogger.Time("bucket", c.Bucket))
		return nil, nil
	}
	d.metrics.RecordLastClose(c.Symbol, c.Close)

	if bar.Index < d.first {
		return nil, nil
	}
	ev, ok := detector.EventFor(bar)
	if !ok {
		return nil, nil
	}
	ev.ID = uuid.NewString()
	ev.Timeframe = string(d.tf)
	d.metrics.RecordSignal(ev.Symbol, string(ev.Direction))
	d.l.Info("live signal",
		applogger.String("symbol", ev.Symbol),
		applogger.String("direction", string(ev.Direction)),
		applogger.Time("bucket", ev.Timestamp),
		applogger.Float64("close", ev.Close))

	events := []models.SignalEvent{ev}
	if d.storage != nil {
		if err := d.storage.StoreBatch(ctx, events); err != nil {
			d.metrics.RecordError("store")
			d.l.Error("store live signal failed", applogger.String("symbol", ev.Symbol), applogger.Error(err))
		}
	}
	if d.publisher != nil {
		if err := d.publisher.PublishBatch(ctx, events); err != nil {
			d.metrics.RecordError("publish")
			d.l.Error("publish live signal failed", applogger.String("symbol", ev.Symbol), applogger.Error(err))
		}
	}
	return &ev, nil
}

// WarmUp replays recent history for each symbol so live signals are possible
// from the first streamed bar. Replayed bars never emit.
func (d *LiveDetector) WarmUp(ctx context.Context, source domrepo.CandleSource, symbols []string) error {
	n := d.first + 2*d.cfg.MomentumLength
	for _, sym := range symbols {
		candles, err := source.GetLatestNCandles(ctx, sym, n, d.tf)
		if err != nil {
			return fmt.Errorf("warm up %s: %w", sym, err)
		}
		fed := 0
		for _, c := range candles {
			if c.Symbol == "" {
				c.Symbol = sym
			}
			if _, ok := d.step(c); ok {
				fed++
			}
		}
		d.l.Info("live engine warmed", applogger.String("symbol", sym), applogger.Int("bars", fed))
	}
	return nil
}

// Symbols returns the number of tracked series.
func (d *LiveDetector) Symbols() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.engines)
}
