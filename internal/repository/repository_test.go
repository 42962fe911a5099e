package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	"PatternPull/pkg/cache"
)

func TestSignalExtrasRoundTrip(t *testing.T) {
	e := models.SignalEvent{
		Breakouts: []models.BreakoutEvent{{Move: models.MoveUp, Scheme: models.SchemeRange, Index: 7}},
		Box:       &models.BoundingBox{ClassID: 1, CX: 0.5, CY: 0.25, W: 0.1, H: 0.2},
	}
	b, box, err := encodeSignalExtras(e)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var got models.SignalEvent
	if err := decodeSignalExtras(&got, b, box); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got.Breakouts) != 1 || got.Breakouts[0] != e.Breakouts[0] || *got.Box != *e.Box {
		t.Fatalf("got %+v", got)
	}

	// unlabeled events store no box
	_, box, _ = encodeSignalExtras(models.SignalEvent{})
	if box != "" {
		t.Fatalf("box = %q, want empty", box)
	}
	var bare models.SignalEvent
	if err := decodeSignalExtras(&bare, "null", ""); err != nil || bare.Box != nil || bare.Breakouts != nil {
		t.Fatalf("bare decode = %+v, %v", bare, err)
	}
}

func TestScanCache(t *testing.T) {
	ctx := context.Background()
	mem := cache.NewMemoryCache()
	defer mem.Close()
	sc := NewScanCache(mem, time.Minute, nil)

	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	k1 := ScanKey("BTC-USDT", "5m", 500, from, from.Add(time.Hour), "abc")
	k2 := ScanKey("ETH-USDT", "5m", 500, from, from.Add(time.Hour), "abc")

	if _, ok := sc.Get(ctx, k1); ok {
		t.Fatalf("empty cache should miss")
	}
	_ = sc.Set(ctx, k1, &models.ScanSummary{Symbol: "BTC-USDT", Bars: 500})
	_ = sc.Set(ctx, k2, &models.ScanSummary{Symbol: "ETH-USDT", Bars: 500})
	got, ok := sc.Get(ctx, k1)
	if !ok || got.Symbol != "BTC-USDT" || got.Bars != 500 {
		t.Fatalf("get = %+v %v", got, ok)
	}

	_ = sc.Invalidate(ctx, "BTC-USDT")
	if _, ok := sc.Get(ctx, k1); ok {
		t.Fatalf("invalidated key still cached")
	}
	if _, ok := sc.Get(ctx, k2); !ok {
		t.Fatalf("other symbol should survive invalidation")
	}

	release, ok := sc.Lock(ctx, k1)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	if _, ok := sc.Lock(ctx, k1); ok {
		t.Fatalf("second lock should fail")
	}
	release()
	if _, ok := sc.Lock(ctx, k1); !ok {
		t.Fatalf("lock after release should succeed")
	}
}

func TestReadCandlesCSV(t *testing.T) {
	in := `timestamp,open,high,low,close,volume
2024-01-01T00:05:00Z,101,103,100,102,7
1704067200,100,101,99,100.5
2024-01-01 00:10,102,104,101,103.25,1.5
`
	got, err := ReadCandlesCSV(strings.NewReader(in), "BTC-USDT")
	if err != nil {
		t.Fatalf("ReadCandlesCSV: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range got {
		if !c.Bucket.Equal(base.Add(time.Duration(i) * 5 * time.Minute)) || c.Symbol != "BTC-USDT" {
			t.Fatalf("row %d = %+v", i, c)
		}
	}
	if got[0].Volume != 0 || got[2].Close != 103.25 {
		t.Fatalf("values = %+v", got)
	}

	if _, err := ReadCandlesCSV(strings.NewReader("2024-01-01T00:00:00Z,1,2\n"), "X"); err == nil {
		t.Fatalf("short row should fail")
	}
	if _, err := ReadCandlesCSV(strings.NewReader("2024-01-01T00:00:00Z,1,2,0.5,1\nlater,1,2,0.5,1\n"), "X"); err == nil {
		t.Fatalf("bad timestamp after the first row should fail")
	}
}

type memSource struct {
	candles []models.Candle
	err     error
	calls   int
}

func (m *memSource) GetLatestNCandles(_ context.Context, _ string, n int, _ domrepo.Timeframe) ([]models.Candle, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	c := m.candles
	if len(c) > n {
		c = c[len(c)-n:]
	}
	return c, nil
}

func (m *memSource) GetCandles(_ context.Context, _ string, from, to time.Time, _ domrepo.Timeframe) ([]models.Candle, error) {
	m.calls++
	var out []models.Candle
	for _, c := range m.candles {
		if !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, m.err
}

type memSink struct{ stored int }

func (m *memSink) StoreCandles(_ context.Context, _ domrepo.Timeframe, c []models.Candle) error {
	m.stored += len(c)
	return nil
}

func series(n int) []models.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]models.Candle, n)
	for i := range out {
		out[i] = models.Candle{Bucket: base.Add(time.Duration(i) * 5 * time.Minute), Symbol: "BTC-USDT", Open: 1, High: 1, Low: 1, Close: 1}
	}
	return out
}

func TestFallbackSource(t *testing.T) {
	local := &memSource{candles: series(50)}
	remote := &memSource{candles: series(200)}
	sink := &memSink{}
	src := NewFallbackSource(local, remote, sink, nil)
	ctx := context.Background()

	got, err := src.GetLatestNCandles(ctx, "BTC-USDT", 40, domrepo.TF5m)
	if err != nil || len(got) != 40 || remote.calls != 0 {
		t.Fatalf("local should serve: len=%d remote=%d err=%v", len(got), remote.calls, err)
	}

	got, err = src.GetLatestNCandles(ctx, "BTC-USDT", 100, domrepo.TF5m)
	if err != nil || len(got) != 100 || remote.calls != 1 || sink.stored != 100 {
		t.Fatalf("remote should serve and backfill: len=%d remote=%d stored=%d err=%v", len(got), remote.calls, sink.stored, err)
	}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	got, err = src.GetCandles(ctx, "BTC-USDT", base, base.Add(49*5*time.Minute), domrepo.TF5m)
	if err != nil || len(got) != 50 || remote.calls != 1 {
		t.Fatalf("covered range should stay local: len=%d remote=%d", len(got), remote.calls)
	}

	local.err = errors.New("clickhouse down")
	remote.err = errors.New("okx down")
	if _, err := src.GetLatestNCandles(ctx, "BTC-USDT", 10, domrepo.TF5m); err == nil {
		t.Fatalf("both failing should fail")
	}
}
