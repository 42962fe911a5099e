package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"PatternPull/internal/domain/models"
	domrepo "PatternPull/internal/domain/repository"
	internalrepo "PatternPull/internal/repository"
	"PatternPull/internal/services/detector"
	"PatternPull/internal/services/labels"
	"PatternPull/pkg/cache"
	applogger "PatternPull/pkg/logger"
	"PatternPull/pkg/util"
)

var (
	ErrInvalidParams    = errors.New("invalid scan params")
	ErrNoCandles        = errors.New("no candles")
	ErrNotEnoughCandles = errors.New("not enough candles to evaluate a bar")
	ErrInvalidCandle    = errors.New("invalid candle")
	ErrScanInProgress   = errors.New("scan already in progress")
)

const defaultScanLimit = 500

// ScanParams selects the series to scan. A zero From means the latest Limit
// bars; a zero To with a From means up to now.
type ScanParams struct {
	Symbol  string
	TF      domrepo.Timeframe
	Limit   int
	From    time.Time
	To      time.Time
	Refresh bool
}

// ScanUseCase loads a series, runs the detector over it and fans the events
// out to storage, the signal bus and the cache.
type ScanUseCase struct {
	source      domrepo.CandleSource
	storage     domrepo.SignalStorage
	publisher   domrepo.SignalPublisher
	cache       domrepo.ScanCache
	labels      *labels.Writer
	metrics     domrepo.Metrics
	cfg         detector.Config
	fingerprint string
	limit       int
	l           *applogger.Logger
	now         func() time.Time
}

type ScanOption func(*ScanUseCase)

func WithSignalStorage(s domrepo.SignalStorage) ScanOption {
	return func(u *ScanUseCase) { u.storage = s }
}

func WithSignalPublisher(p domrepo.SignalPublisher) ScanOption {
	return func(u *ScanUseCase) { u.publisher = p }
}

func WithScanCache(c domrepo.ScanCache) ScanOption {
	return func(u *ScanUseCase) { u.cache = c }
}

// WithLabelWriter writes a label file for every labeled signal.
func WithLabelWriter(w *labels.Writer) ScanOption {
	return func(u *ScanUseCase) { u.labels = w }
}

func WithDefaultLimit(n int) ScanOption {
	return func(u *ScanUseCase) {
		if n > 0 {
			u.limit = n
		}
	}
}

func NewScanUseCase(source domrepo.CandleSource, cfg detector.Config, metrics domrepo.Metrics, l *applogger.Logger, opts ...ScanOption) *ScanUseCase {
	if l == nil {
		l = applogger.Nop()
	}
	u := &ScanUseCase{
		source:      source,
		metrics:     metrics,
		cfg:         cfg,
		fingerprint: Fingerprint(cfg),
		limit:       defaultScanLimit,
		l:           l.With(applogger.String("component", "scan")),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Fingerprint identifies a detector configuration in cache keys.
func Fingerprint(cfg detector.Config) string {
	return cache.HashKey(fmt.Sprintf("%+v", cfg))[:12]
}

func (u *ScanUseCase) normalize(p ScanParams) (ScanParams, error) {
	p.Symbol = strings.TrimSpace(p.Symbol)
	if p.Symbol == "" {
		return p, fmt.Errorf("%w: symbol is required", ErrInvalidParams)
	}
	if p.TF == "" {
		p.TF = domrepo.DefaultTimeframe()
	}
	if !domrepo.IsValidTimeframe(p.TF) {
		return p, fmt.Errorf("%w: timeframe %q", ErrInvalidParams, p.TF)
	}
	if p.Limit <= 0 {
		p.Limit = u.limit
	}
	if !p.From.IsZero() && p.To.IsZero() {
		p.To = u.now().UTC().Truncate(p.TF.Duration())
	}
	if !p.From.IsZero() {
		p.From, p.To = util.AlignRange(p.From, p.To, p.TF.Duration())
	}
	if !p.From.IsZero() && !p.From.Before(p.To) {
		return p, fmt.Errorf("%w: from must be before to", ErrInvalidParams)
	}
	return p, nil
}

// Scan runs one scan. Source failures fail the scan; storage and publish
// failures are logged and counted only.
func (u *ScanUseCase) Scan(ctx context.Context, p ScanParams) (*models.ScanSummary, error) {
	p, err := u.normalize(p)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	key := internalrepo.ScanKey(p.Symbol, string(p.TF), p.Limit, p.From, p.To, u.fingerprint)

	if u.cache != nil {
		if !p.Refresh {
			if sum, ok := u.cache.Get(ctx, key); ok {
				sum.Cached = true
				u.metrics.RecordScan("cached")
				return sum, nil
			}
		}
		release, ok := u.cache.Lock(ctx, key)
		if !ok {
			return nil, ErrScanInProgress
		}
		defer release()
	}

	candles, err := u.load(ctx, p)
	if err != nil {
		u.metrics.RecordScan("error")
		u.metrics.RecordError("source")
		return nil, err
	}

	sum, res := u.run(p, candles)

	u.persist(ctx, sum.Events)
	u.writeLabels(res.Samples)

	if u.cache != nil {
		if err := u.cache.Set(ctx, key, sum); err != nil {
			u.l.Warn("scan cache set failed", applogger.String("key", key), applogger.Error(err))
		}
	}

	u.metrics.RecordLatency("scan", time.Since(start).Seconds())
	u.metrics.RecordScan("ok")
	u.l.Info("scan complete",
		applogger.String("scan_id", sum.ScanID),
		applogger.String("symbol", p.Symbol),
		applogger.String("tf", string(p.TF)),
		applogger.Int("bars", sum.Bars),
		applogger.Int("longs", sum.Longs),
		applogger.Int("shorts", sum.Shorts),
		applogger.Int("labeled", sum.Labeled),
		applogger.Duration("took_ms", time.Since(start)))
	return sum, nil
}

func (u *ScanUseCase) load(ctx context.Context, p ScanParams) ([]models.Candle, error) {
	var (
		candles []models.Candle
		err     error
	)
	if p.From.IsZero() {
		candles, err = u.source.GetLatestNCandles(ctx, p.Symbol, p.Limit, p.TF)
	} else {
		candles, err = u.source.GetCandles(ctx, p.Symbol, p.From, p.To, p.TF)
	}
	if err != nil {
		return nil, fmt.Errorf("load candles %s %s: %w", p.Symbol, p.TF, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%s %s: %w", p.Symbol, p.TF, ErrNoCandles)
	}
	if need := detector.NewScanner(u.cfg).FirstIndex() + 1; len(candles) < need {
		return nil, fmt.Errorf("%s %s: %w: have %d, need %d", p.Symbol, p.TF, ErrNotEnoughCandles, len(candles), need)
	}
	for i := range candles {
		if err := candles[i].Valid(); err != nil {
			return nil, fmt.Errorf("%w: %s bar %d: %v", ErrInvalidCandle, p.Symbol, i, err)
		}
		if candles[i].Symbol == "" {
			candles[i].Symbol = p.Symbol
		}
	}
	return candles, nil
}

// run scans with a scanner of its own, so concurrent scans share nothing.
func (u *ScanUseCase) run(p ScanParams, candles []models.Candle) (*models.ScanSummary, detector.ScanResult) {
	res := detector.NewScanner(u.cfg).Scan(candles)

	sum := &models.ScanSummary{
		ScanID:    uuid.NewString(),
		Symbol:    p.Symbol,
		Timeframe: string(p.TF),
		From:      candles[0].Bucket,
		To:        candles[len(candles)-1].Bucket,
		Bars:      len(candles),
		Labeled:   len(res.Samples),
		Events:    res.Events,
	}
	if sum.Events == nil {
		sum.Events = []models.SignalEvent{}
	}
	ids := make(map[int]string, len(sum.Events))
	for i := range sum.Events {
		ev := &sum.Events[i]
		ev.ID = uuid.NewString()
		ids[ev.Index] = ev.ID
		ev.Timeframe = string(p.TF)
		if ev.Direction == models.Long {
			sum.Longs++
		} else {
			sum.Shorts++
		}
		u.metrics.RecordSignal(ev.Symbol, string(ev.Direction))
	}
	// samples are a subset of the events; keep them joinable by id
	for i := range res.Samples {
		res.Samples[i].Event.ID = ids[res.Samples[i].Event.Index]
		res.Samples[i].Event.Timeframe = string(p.TF)
	}
	return sum, res
}

func (u *ScanUseCase) persist(ctx context.Context, events []models.SignalEvent) {
	if len(events) == 0 {
		return
	}
	if u.storage != nil {
		if err := u.storage.StoreBatch(ctx, events); err != nil {
			u.metrics.RecordError("store")
			u.l.Error("store signals failed", applogger.Int("events", len(events)), applogger.Error(err))
		}
	}
	if u.publisher != nil {
		if err := u.publisher.PublishBatch(ctx, events); err != nil {
			u.metrics.RecordError("publish")
			u.l.Error("publish signals failed", applogger.Int("events", len(events)), applogger.Error(err))
		}
	}
}

func (u *ScanUseCase) writeLabels(samples []detector.Sample) {
	if u.labels == nil || len(samples) == 0 {
		return
	}
	out := make([]models.LabeledSignal, len(samples))
	for i, s := range samples {
		out[i] = s.Labeled()
	}
	if _, err := u.labels.WriteAll(out); err != nil {
		u.metrics.RecordError("labels")
		u.l.Error("write labels failed", applogger.String("dir", u.labels.Dir()), applogger.Error(err))
	}
}

// Invalidate drops cached scans for symbol.
func (u *ScanUseCase) Invalidate(ctx context.Context, symbol string) error {
	if u.cache == nil {
		return nil
	}
	return u.cache.Invalidate(ctx, symbol)
}

// Signals returns stored signals, newest first.
func (u *ScanUseCase) Signals(ctx context.Context, q domrepo.SignalQuery) ([]models.SignalEvent, error) {
	if u.storage == nil {
		return nil, errors.New("signal storage not configured")
	}
	return u.storage.Query(ctx, q)
}

// Config returns the detector configuration scans run with.
func (u *ScanUseCase) Config() detector.Config { return u.cfg }
