package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/dept-portal-api/pkg/errors"
	"github.com/noah-isme/dept-portal-api/pkg/recordstore"
)

// ListCache is the read-through cache used for whole collections.
type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// Collection exposes the records of one entity type as typed values.
type Collection[T any] struct {
	store  recordstore.Store
	entity string
	idOf   func(T) string
	cache  ListCache
	ttl    time.Duration
	logger *zap.Logger

	// fill orders cache fills against invalidations; gen counts the latter.
	fill sync.Mutex
	gen  uint64
}

// CollectionOption customises a collection.
type CollectionOption func(*collectionConfig)

type collectionConfig struct {
	cache  ListCache
	ttl    time.Duration
	logger *zap.Logger
}

// WithCache enables read-through caching of List results.
func WithCache(cache ListCache, ttl time.Duration) CollectionOption {
	return func(c *collectionConfig) {
		c.cache = cache
		c.ttl = ttl
	}
}

// WithLogger sets the logger used for undecodable records.
func WithLogger(logger *zap.Logger) CollectionOption {
	return func(c *collectionConfig) {
		c.logger = logger
	}
}

// NewCollection binds a store entity to T. idOf extracts the record id.
func NewCollection[T any](store recordstore.Store, entity string, idOf func(T) string, opts ...CollectionOption) *Collection[T] {
	cfg := collectionConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	return &Collection[T]{
		store:  store,
		entity: entity,
		idOf:   idOf,
		cache:  cfg.cache,
		ttl:    cfg.ttl,
		logger: cfg.logger,
	}
}

// Entity returns the entity type name.
func (c *Collection[T]) Entity() string { return c.entity }

func (c *Collection[T]) cacheKey() string {
	return "records:" + c.entity
}

// List returns every record, served from cache when possible.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	if c.cache != nil {
		var cached []json.RawMessage
		if hit, err := c.cache.Get(ctx, c.cacheKey(), &cached); err == nil && hit {
			return c.decode(cached), nil
		}
	}
	return c.ListFresh(ctx)
}

// ListFresh reads the store directly. Use it for read-modify-write paths
// that must not act on a stale snapshot.
func (c *Collection[T]) ListFresh(ctx context.Context) ([]T, error) {
	gen := c.generation()
	raw, err := c.store.List(ctx, c.entity)
	if err != nil {
		return nil, appErrors.Upstream(err, fmt.Sprintf("failed to load %s", c.entity))
	}
	c.remember(ctx, gen, raw)
	return c.decode(raw), nil
}

func (c *Collection[T]) generation() uint64 {
	c.fill.Lock()
	defer c.fill.Unlock()
	return c.gen
}

// remember caches raw unless a write invalidated the collection after the
// read that produced it began.
func (c *Collection[T]) remember(ctx context.Context, gen uint64, raw []json.RawMessage) {
	if c.cache == nil {
		return
	}
	c.fill.Lock()
	defer c.fill.Unlock()
	if c.gen != gen {
		return
	}
	_ = c.cache.Set(ctx, c.cacheKey(), raw, c.ttl)
}

// Filter returns the records matching keep.
func (c *Collection[T]) Filter(ctx context.Context, keep func(T) bool) ([]T, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(all))
	for _, item := range all {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out, nil
}

// FindByID returns the record with the given id or ErrNotFound.
func (c *Collection[T]) FindByID(ctx context.Context, id string) (*T, error) {
	all, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	return c.find(all, id)
}

func (c *Collection[T]) find(all []T, id string) (*T, error) {
	for i := range all {
		if c.idOf(all[i]) == id {
			return &all[i], nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", c.entity, id))
}

// FindFresh is FindByID against the store, bypassing the cache.
func (c *Collection[T]) FindFresh(ctx context.Context, id string) (*T, error) {
	all, err := c.ListFresh(ctx)
	if err != nil {
		return nil, err
	}
	return c.find(all, id)
}

// Save upserts a record and drops the cached collection.
func (c *Collection[T]) Save(ctx context.Context, item T) error {
	if c.idOf(item) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "record id is required")
	}
	if err := c.store.Save(ctx, c.entity, item); err != nil {
		return appErrors.Upstream(err, fmt.Sprintf("failed to save %s", c.entity))
	}
	c.invalidate(ctx)
	return nil
}

// Delete removes a record and drops the cached collection.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	if err := c.store.Delete(ctx, c.entity, id); err != nil {
		return appErrors.Upstream(err, fmt.Sprintf("failed to delete %s", c.entity))
	}
	c.invalidate(ctx)
	return nil
}

// Invalidate drops the cached collection.
func (c *Collection[T]) Invalidate(ctx context.Context) {
	c.invalidate(ctx)
}

func (c *Collection[T]) invalidate(ctx context.Context) {
	if c.cache == nil {
		return
	}
	c.fill.Lock()
	defer c.fill.Unlock()
	c.gen++
	if err := c.cache.Invalidate(ctx, c.cacheKey()); err != nil {
		c.logger.Warn("collection cache invalidate failed", zap.String("entity", c.entity), zap.Error(err))
	}
}

func (c *Collection[T]) decode(raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, record := range raw {
		var item T
		if err := json.Unmarshal(record, &item); err != nil {
			c.logger.Warn("skipping undecodable record", zap.String("entity", c.entity), zap.Error(err))
			continue
		}
		if c.idOf(item) == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
