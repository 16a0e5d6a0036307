package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
)

const defaultCacheTTL = 30 * time.Second

// CacheRepository is the payload store behind CacheService.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService backs the record collections, the upload tracker and the
// per-user dashboards. Cache faults are logged and never fail a request
// that could be answered from the record store.
type CacheService struct {
	repo    CacheRepository
	metrics *MetricsService
	ttl     time.Duration
	log     *zap.Logger
	on      bool
	flight  singleflight.Group
}

// NewCacheService constructs a cache service. With enabled false every
// lookup misses and writes are dropped.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = defaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, ttl: defaultTTL, log: logger.Named("cache"), on: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.on && s.repo != nil
}

// Get reads key into dest and reports a hit. Misses are not errors.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	began := time.Now()
	err := s.repo.Get(ctx, key, dest)
	if errors.Is(err, appErrors.ErrCacheMiss) {
		s.metrics.RecordCacheOperation(false, time.Since(began))
		return false, nil
	}
	s.metrics.RecordCacheOperation(err == nil, time.Since(began))
	if err != nil {
		s.log.Warn("read failed", zap.String("key", key), zap.Error(err))
		return false, err
	}
	return true, nil
}

// Set stores value under key. ttl <= 0 selects the default.
func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	began := time.Now()
	err := s.repo.Set(ctx, key, value, ttl)
	s.metrics.ObserveCacheWrite(time.Since(began))
	if err != nil {
		s.log.Warn("write failed", zap.String("key", key), zap.Error(err))
	}
	return err
}

// Remember answers from the cache when it can. Otherwise fill populates
// dest and the result is stored. Concurrent misses on one key share a
// single fill; the other callers get a decoded copy. The boolean reports a
// cache hit.
func (s *CacheService) Remember(ctx context.Context, key string, ttl time.Duration, dest interface{}, fill func(ctx context.Context) error) (bool, error) {
	if s == nil {
		return false, fill(ctx)
	}
	if hit, err := s.Get(ctx, key, dest); err == nil && hit {
		return true, nil
	}

	leader := false
	shared, err, _ := s.flight.Do(key, func() (interface{}, error) {
		leader = true
		if err := fill(ctx); err != nil {
			return nil, err
		}
		raw, err := json.Marshal(dest)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		_ = s.Set(ctx, key, json.RawMessage(raw), ttl)
		return raw, nil
	})
	if err != nil {
		return false, err
	}
	if !leader {
		if err := json.Unmarshal(shared.([]byte), dest); err != nil {
			return false, fmt.Errorf("decode %s: %w", key, err)
		}
	}
	return false, nil
}

// Invalidate removes cached values matching the glob pattern.
func (s *CacheService) Invalidate(ctx context.Context, pattern string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, pattern); err != nil {
		s.log.Warn("invalidate failed", zap.String("pattern", pattern), zap.Error(err))
		return err
	}
	return nil
}
