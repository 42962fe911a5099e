package repository

import (
	"context"
	"errors"
	"time"

	"PatternPull/internal/domain/models"
	"PatternPull/pkg/cache"
	applogger "PatternPull/pkg/logger"
)

// ScanCache stores scan summaries under scan:{symbol}:... keys.
type ScanCache struct {
	c       cache.Service
	ttl     time.Duration
	lockTTL time.Duration
	l       *applogger.Logger
}

func NewScanCache(c cache.Service, ttl time.Duration, l *applogger.Logger) *ScanCache {
	if l == nil {
		l = applogger.Nop()
	}
	return &ScanCache{c: c, ttl: ttl, lockTTL: 2 * time.Minute, l: l}
}

// ScanKey builds the cache key; fingerprint identifies the detector config.
func ScanKey(symbol, tf string, limit int, from, to time.Time, fingerprint string) string {
	return cache.Key("scan", symbol, tf, limit, from.Unix(), to.Unix(), fingerprint)
}

func (s *ScanCache) Get(ctx context.Context, key string) (*models.ScanSummary, bool) {
	var sum models.ScanSummary
	if err := s.c.Get(ctx, key, &sum); err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.l.Warn("scan cache get", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	return &sum, true
}

func (s *ScanCache) Set(ctx context.Context, key string, sum *models.ScanSummary) error {
	return s.c.Set(ctx, key, sum, s.ttl)
}

func (s *ScanCache) Invalidate(ctx context.Context, symbol string) error {
	return s.c.DeleteByPattern(ctx, cache.Key("scan", symbol, "*"))
}

// Lock fails open: when the backend errors, the caller proceeds without a lock.
func (s *ScanCache) Lock(ctx context.Context, key string) (func(), bool) {
	lk := "lock:" + key
	ok, err := s.c.TryLock(ctx, lk, s.lockTTL)
	if err != nil {
		s.l.Warn("scan cache lock", applogger.String("key", key), applogger.Error(err))
		return func() {}, true
	}
	if !ok {
		return nil, false
	}
	return func() {
		if err := s.c.Unlock(context.Background(), lk); err != nil {
			s.l.Warn("scan cache unlock", applogger.String("key", key), applogger.Error(err))
		}
	}, true
}
