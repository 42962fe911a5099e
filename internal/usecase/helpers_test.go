package usecase

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"testing"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/internal/services/detector"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func walk(symbol string, n int, seed int64) []models.Candle {
	r := rand.New(rand.NewSource(seed))
	out := make([]models.Candle, n)
	p := 100.0
	prev := p
	for i := range out {
		p += r.NormFloat64() * 0.6
		if p < 1 {
			p = 1
		}
		out[i] = models.Candle{
			Bucket: t0.Add(time.Duration(i) * 5 * time.Minute),
			Symbol: symbol,
			Open:   prev,
			High:   math.Max(prev, p) + 0.1,
			Low:    math.Min(prev, p) - 0.1,
			Close:  p,
		}
		prev = p
	}
	return out
}

func permissive(t *testing.T, stride int) detector.Config {
	t.Helper()
	cfg, err := detector.New(
		detector.WithMAPeriods(5, 10, 20),
		detector.WithMomentum(false, 3, 80, 10),
		detector.WithAlignment(false),
		detector.WithCandlePower(false, 75),
		detector.WithPositionFilter(false, 0),
		detector.WithScan(stride, 30, 2),
	)
	if err != nil {
		t.Fatalf("detector.New: %v", err)
	}
	return cfg
}

type fakeSource struct {
	mu     sync.Mutex
	series map[string][]models.Candle
	err    error
	calls  int
}

func (f *fakeSource) GetCandles(_ context.Context, symbol string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Candle
	for _, c := range f.series[symbol] {
		if !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSource) GetLatestNCandles(_ context.Context, symbol string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.series[symbol]
	if !ok {
		return nil, errors.New("unknown symbol " + symbol)
	}
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return append([]models.Candle(nil), s...), nil
}

type fakeStorage struct {
	mu     sync.Mutex
	stored []models.SignalEvent
	err    error
}

func (f *fakeStorage) Init(context.Context) error { return nil }

func (f *fakeStorage) StoreBatch(_ context.Context, events []models.SignalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.stored = append(f.stored, events...)
	return nil
}

func (f *fakeStorage) Query(_ context.Context, q domrepo.SignalQuery) ([]models.SignalEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.SignalEvent
	for _, e := range f.stored {
		if e.Symbol == q.Symbol {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeStorage) Health(context.Context) error { return nil }
func (f *fakeStorage) Close() error                 { return nil }

type fakePublisher struct {
	mu      sync.Mutex
	events  []models.SignalEvent
	candles []models.Candle
	err     error
}

func (f *fakePublisher) PublishBatch(_ context.Context, events []models.SignalEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, events...)
	return nil
}

func (f *fakePublisher) Publish(_ context.Context, c models.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.candles = append(f.candles, c)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) candleCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.candles)
}

type fakeMetrics struct {
	mu      sync.Mutex
	counts  map[string]int
	signals int
}

func newFakeMetrics() *fakeMetrics { return &fakeMetrics{counts: map[string]int{}} }

func (m *fakeMetrics) inc(k string) {
	m.mu.Lock()
	m.counts[k]++
	m.mu.Unlock()
}

func (m *fakeMetrics) get(k string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[k]
}

func (m *fakeMetrics) RecordSignal(_, _ string) {
	m.mu.Lock()
	m.signals++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordScan(result string)           { m.inc("scan:" + result) }
func (m *fakeMetrics) RecordError(kind string)            { m.inc("error:" + kind) }
func (m *fakeMetrics) RecordLastClose(string, float64)    {}
func (m *fakeMetrics) RecordLatency(op string, _ float64) { m.inc("latency:" + op) }
