package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	internalrepo "PatternPull/internal/repository"
	"PatternPull/pkg/cache"
)

func newScanFixture(t *testing.T) (*ScanUseCase, *fakeSource, *fakeStorage, *fakePublisher, *fakeMetrics, *cache.MemoryCache) {
	t.Helper()
	src := &fakeSource{series: map[string][]models.Candle{"BTC-USDT": walk("BTC-USDT", 1200, 11)}}
	store := &fakeStorage{}
	pub := &fakePublisher{}
	m := newFakeMetrics()
	mem := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mem.Close() })

	uc := NewScanUseCase(src, permissive(t, 3), m, nil,
		WithSignalStorage(store),
		WithSignalPublisher(pub),
		WithScanCache(internalrepo.NewScanCache(mem, time.Minute, nil)),
		WithDefaultLimit(1200),
	)
	return uc, src, store, pub, m, mem
}

func TestScanPersistsAndCaches(t *testing.T) {
	uc, src, store, pub, m, _ := newScanFixture(t)
	ctx := context.Background()

	sum, err := uc.Scan(ctx, ScanParams{Symbol: "BTC-USDT"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if sum.Bars != 1200 || len(sum.Events) == 0 || sum.Cached {
		t.Fatalf("summary = bars %d events %d cached %v", sum.Bars, len(sum.Events), sum.Cached)
	}
	if sum.Longs+sum.Shorts != len(sum.Events) || sum.Labeled == 0 {
		t.Fatalf("counts longs=%d shorts=%d labeled=%d", sum.Longs, sum.Shorts, sum.Labeled)
	}
	ids := map[string]bool{}
	for _, ev := range sum.Events {
		if ev.ID == "" || ids[ev.ID] {
			t.Fatalf("event id %q missing or duplicated", ev.ID)
		}
		ids[ev.ID] = true
		if ev.Timeframe != "5m" || ev.Symbol != "BTC-USDT" {
			t.Fatalf("event = %+v", ev)
		}
	}
	if len(store.stored) != len(sum.Events) || len(pub.events) != len(sum.Events) {
		t.Fatalf("stored %d published %d, want %d", len(store.stored), len(pub.events), len(sum.Events))
	}
	if m.get("scan:ok") != 1 || m.signals != len(sum.Events) {
		t.Fatalf("metrics = %+v signals=%d", m.counts, m.signals)
	}

	again, err := uc.Scan(ctx, ScanParams{Symbol: "BTC-USDT"})
	if err != nil || !again.Cached || again.ScanID != sum.ScanID {
		t.Fatalf("second scan should hit the cache: %+v %v", again, err)
	}
	if src.calls != 1 || m.get("scan:cached") != 1 {
		t.Fatalf("source calls = %d", src.calls)
	}

	fresh, err := uc.Scan(ctx, ScanParams{Symbol: "BTC-USDT", Refresh: true})
	if err != nil || fresh.Cached || fresh.ScanID == sum.ScanID || src.calls != 2 {
		t.Fatalf("refresh should rescan: cached=%v calls=%d err=%v", fresh.Cached, src.calls, err)
	}
	if len(fresh.Events) != len(sum.Events) {
		t.Fatalf("rescan found %d events, first scan %d", len(fresh.Events), len(sum.Events))
	}
}

func TestScanSinkFailuresDoNotFail(t *testing.T) {
	uc, _, store, pub, m, _ := newScanFixture(t)
	store.err = errors.New("clickhouse down")
	pub.err = errors.New("kafka down")

	sum, err := uc.Scan(context.Background(), ScanParams{Symbol: "BTC-USDT"})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(sum.Events) == 0 {
		t.Fatalf("expected events")
	}
	if m.get("error:store") != 1 || m.get("error:publish") != 1 {
		t.Fatalf("metrics = %+v", m.counts)
	}
}

func TestScanSourceFailure(t *testing.T) {
	uc, src, _, _, m, _ := newScanFixture(t)
	boom := errors.New("okx down")
	src.err = boom

	if _, err := uc.Scan(context.Background(), ScanParams{Symbol: "BTC-USDT"}); !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if m.get("scan:error") != 1 || m.get("error:source") != 1 {
		t.Fatalf("metrics = %+v", m.counts)
	}
}

func TestScanShortSeries(t *testing.T) {
	uc, src, _, _, _, _ := newScanFixture(t)
	src.series["SHORT"] = walk("SHORT", 10, 1)
	src.series["EMPTY"] = nil

	if _, err := uc.Scan(context.Background(), ScanParams{Symbol: "SHORT"}); !errors.Is(err, ErrNotEnoughCandles) {
		t.Fatalf("err = %v, want ErrNotEnoughCandles", err)
	}
	if _, err := uc.Scan(context.Background(), ScanParams{Symbol: "EMPTY"}); !errors.Is(err, ErrNoCandles) {
		t.Fatalf("err = %v, want ErrNoCandles", err)
	}
}

func TestScanRejectsBadParams(t *testing.T) {
	uc, src, _, _, _, _ := newScanFixture(t)
	cases := []ScanParams{
		{Symbol: " "},
		{Symbol: "BTC-USDT", TF: "7m"},
		{Symbol: "BTC-USDT", From: t0.Add(time.Hour), To: t0},
	}
	for i, p := range cases {
		if _, err := uc.Scan(context.Background(), p); !errors.Is(err, ErrInvalidParams) {
			t.Fatalf("case %d: err = %v", i, err)
		}
	}
	if src.calls != 0 {
		t.Fatalf("invalid params must not reach the source")
	}
}

func TestScanRangeUsesGetCandles(t *testing.T) {
	uc, _, _, _, _, _ := newScanFixture(t)
	from := t0.Add(100 * 5 * time.Minute)
	to := t0.Add(599 * 5 * time.Minute)

	sum, err := uc.Scan(context.Background(), ScanParams{Symbol: "BTC-USDT", From: from, To: to})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if sum.Bars != 500 || !sum.From.Equal(from) || !sum.To.Equal(to) {
		t.Fatalf("range summary = bars %d [%v, %v]", sum.Bars, sum.From, sum.To)
	}
}

func TestScanLockHeld(t *testing.T) {
	uc, _, _, _, _, mem := newScanFixture(t)
	key := internalrepo.ScanKey("BTC-USDT", "5m", 1200, time.Time{}, time.Time{}, uc.fingerprint)
	if ok, _ := mem.TryLock(context.Background(), "lock:"+key, time.Minute); !ok {
		t.Fatalf("could not take lock")
	}
	if _, err := uc.Scan(context.Background(), ScanParams{Symbol: "BTC-USDT"}); !errors.Is(err, ErrScanInProgress) {
		t.Fatalf("err = %v, want ErrScanInProgress", err)
	}
}

func TestFingerprintTracksConfig(t *testing.T) {
	a := Fingerprint(permissive(t, 3))
	if a != Fingerprint(permissive(t, 3)) {
		t.Fatalf("fingerprint not stable")
	}
	if a == Fingerprint(permissive(t, 1)) {
		t.Fatalf("different configs share a fingerprint")
	}
}

func TestBatchScannerKeepsOrder(t *testing.T) {
	uc, src, _, _, _, _ := newScanFixture(t)
	src.series["ETH-USDT"] = walk("ETH-USDT", 1200, 4)
	src.series["SOL-USDT"] = walk("SOL-USDT", 1200, 5)

	symbols := []string{"SOL-USDT", "MISSING", "BTC-USDT", "ETH-USDT"}
	res := NewBatchScanner(uc, 3).ScanAll(context.Background(), symbols, domrepo.TF5m, 0)

	if len(res) != len(symbols) {
		t.Fatalf("len = %d", len(res))
	}
	for i, r := range res {
		if r.Symbol != symbols[i] {
			t.Fatalf("result %d is %s, want %s", i, r.Symbol, symbols[i])
		}
		if r.Symbol == "MISSING" {
			if r.Err == nil || r.Summary != nil {
				t.Fatalf("missing symbol should fail alone: %+v", r)
			}
			continue
		}
		if r.Err != nil || r.Summary == nil || r.Summary.Symbol != r.Symbol {
			t.Fatalf("result %d: %+v", i, r)
		}
	}
}

type fakeQueue struct {
	msgs []models.ScanJobPayload
}

func (q *fakeQueue) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	if msgType != ScanJobType {
		return "", errors.New("wrong type " + msgType)
	}
	q.msgs = append(q.msgs, payload.(models.ScanJobPayload))
	return "job-" + payload.(models.ScanJobPayload).Symbol, nil
}

func TestEnqueueAndRunScanJobs(t *testing.T) {
	uc, src, store, _, _, _ := newScanFixture(t)
	q := &fakeQueue{}

	ids, err := EnqueueScans(context.Background(), q, models.ScanJobRequest{Symbols: []string{"BTC-USDT"}, TF: "5m", Limit: 1000})
	if err != nil || len(ids) != 1 || ids[0] != "job-BTC-USDT" {
		t.Fatalf("ids = %v err=%v", ids, err)
	}

	payload, _ := json.Marshal(q.msgs[0])
	job := NewScanJob(uc)
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// jobs always rescan
	if err := job.Handle(context.Background(), payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if src.calls != 2 || len(store.stored) == 0 {
		t.Fatalf("calls=%d stored=%d", src.calls, len(store.stored))
	}
	if err := job.Handle(context.Background(), json.RawMessage(`{"symbol":`)); err == nil {
		t.Fatalf("garbage payload should fail")
	}
}

func TestScanSamplesShareEventIDs(t *testing.T) {
	uc, src, _, _, _, _ := newScanFixture(t)
	sum, res := uc.run(ScanParams{Symbol: "BTC-USDT", TF: domrepo.TF5m}, src.series["BTC-USDT"])
	if len(res.Samples) == 0 || len(sum.Events) == 0 {
		t.Fatalf("expected samples and events")
	}

	byIndex := map[int]string{}
	for _, ev := range sum.Events {
		byIndex[ev.Index] = ev.ID
	}
	for _, s := range res.Samples {
		if s.Event.ID == "" || s.Event.ID != byIndex[s.Event.Index] {
			t.Fatalf("sample at %d: id %q, event id %q", s.Event.Index, s.Event.ID, byIndex[s.Event.Index])
		}
		if s.Event.Timeframe != "5m" {
			t.Fatalf("sample at %d: tf %q", s.Event.Index, s.Event.Timeframe)
		}
	}
}
