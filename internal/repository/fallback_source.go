package repository

import (
	"context"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	applogger "PatternPull/pkg/logger"
)

// FallbackSource reads from the local store first and goes to the exchange
// when the store is short. Fetched candles are written back to the sink.
type FallbackSource struct {
	local  domrepo.CandleSource
	remote domrepo.CandleSource
	sink   domrepo.CandleSink
	l      *applogger.Logger
}

func NewFallbackSource(local, remote domrepo.CandleSource, sink domrepo.CandleSink, l *applogger.Logger) *FallbackSource {
	if l == nil {
		l = applogger.Nop()
	}
	return &FallbackSource{local: local, remote: remote, sink: sink, l: l.With(applogger.String("component", "candle_source"))}
}

func (s *FallbackSource) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	candles, err := s.local.GetLatestNCandles(ctx, symbol, n, tf)
	if err == nil && len(candles) >= n {
		return candles, nil
	}
	s.miss(symbol, tf, len(candles), n, err)
	remote, rerr := s.remote.GetLatestNCandles(ctx, symbol, n, tf)
	if rerr != nil {
		return nil, rerr
	}
	s.backfill(ctx, tf, remote)
	return remote, nil
}

// GetCandles trusts the store when it covers the range end to end.
func (s *FallbackSource) GetCandles(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Candle, error) {
	step := tf.Duration()
	if step <= 0 {
		return s.local.GetCandles(ctx, symbol, from, to, tf)
	}
	want := int(to.Sub(from)/step) + 1
	candles, err := s.local.GetCandles(ctx, symbol, from, to, tf)
	if err == nil && len(candles) >= want {
		return candles, nil
	}
	s.miss(symbol, tf, len(candles), want, err)
	remote, rerr := s.remote.GetCandles(ctx, symbol, from, to, tf)
	if rerr != nil {
		return nil, rerr
	}
	s.backfill(ctx, tf, remote)
	return remote, nil
}

func (s *FallbackSource) miss(symbol string, tf domrepo.Timeframe, have, want int, err error) {
	fields := []applogger.Field{
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("have", have),
		applogger.Int("want", want),
	}
	if err != nil {
		fields = append(fields, applogger.Error(err))
	}
	s.l.Debug("local candles short, fetching remote", fields...)
}

func (s *FallbackSource) backfill(ctx context.Context, tf domrepo.Timeframe, candles []models.Candle) {
	if s.sink == nil || len(candles) == 0 {
		return
	}
	if err := s.sink.StoreCandles(ctx, tf, candles); err != nil {
		s.l.Warn("candle backfill failed", applogger.Int("candles", len(candles)), applogger.Error(err))
	}
}
