package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	applogger "PatternPull/pkg/logger"
)

// CandleCollector reads closed candles from the exchange stream, stores them
// and forwards them to the candles topic. Without a publisher the candles go
// straight to the live detector.
type CandleCollector struct {
	stream    domrepo.CandleStream
	sink      domrepo.CandleSink
	publisher domrepo.CandlePublisher
	live      *LiveDetector
	tf        domrepo.Timeframe
	metrics   domrepo.Metrics
	l         *applogger.Logger

	wg sync.WaitGroup
}

func NewCandleCollector(stream domrepo.CandleStream, sink domrepo.CandleSink, publisher domrepo.CandlePublisher, live *LiveDetector, tf domrepo.Timeframe, metrics domrepo.Metrics, l *applogger.Logger) *CandleCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &CandleCollector{
		stream:    stream,
		sink:      sink,
		publisher: publisher,
		live:      live,
		tf:        tf,
		metrics:   metrics,
		l:         l.With(applogger.String("component", "candle_collector")),
	}
}

// IsConnected returns true if the candle stream is connected.
func (c *CandleCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *CandleCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		_ = c.stream.Close()
		return err
	}
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

// run reads until ctx ends, reconnecting whenever a read session fails.
func (c *CandleCollector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		err := c.consume(ctx)
		if ctx.Err() != nil {
			return
		}
		c.metrics.RecordError("stream")
		c.l.Warn("candle stream lost, reconnecting", applogger.Error(err))
		for {
			rerr := c.stream.Reconnect(ctx)
			if rerr == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			c.metrics.RecordError("stream_reconnect")
			c.l.Error("candle stream reconnect failed", applogger.Error(rerr))
		}
		c.l.Info("candle stream reconnected")
	}
}

// consume drains one read session and returns the error that ended it.
func (c *CandleCollector) consume(ctx context.Context) error {
	candles, errs := c.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			return err
		case cd, ok := <-candles:
			if !ok {
				// drain the cause, if any
				if errs != nil {
					if err, ok := <-errs; ok {
						return err
					}
				}
				return errStreamClosed
			}
			c.handle(ctx, cd)
		}
	}
}

func (c *CandleCollector) handle(ctx context.Context, cd models.Candle) {
	start := time.Now()
	if c.sink != nil {
		if err := c.sink.StoreCandles(ctx, c.tf, []models.Candle{cd}); err != nil {
			c.metrics.RecordError("candle_store")
			c.l.Error("store candle failed", applogger.String("symbol", cd.Symbol), applogger.Error(err))
		}
	}
	switch {
	case c.publisher != nil:
		if err := c.publisher.Publish(ctx, cd); err != nil {
			c.metrics.RecordError("candle_publish")
			c.l.Error("publish candle failed", applogger.String("symbol", cd.Symbol), applogger.Error(err))
		}
	case c.live != nil:
		if _, err := c.live.OnCandle(ctx, cd); err != nil {
			c.metrics.RecordError("live_candle")
			c.l.Warn("live candle rejected", applogger.String("symbol", cd.Symbol), applogger.Error(err))
		}
	}
	c.metrics.RecordLatency("collect_candle_seconds", time.Since(start).Seconds())
}

// Shutdown closes the stream and waits for the read loop to exit. The caller
// cancels the context passed to Start first.
func (c *CandleCollector) Shutdown(ctx context.Context) error {
	err := c.stream.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

var errStreamClosed = errors.New("candle stream closed")
