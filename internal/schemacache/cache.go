// Package schemacache caches discovered table layouts. Lookups hit a local
// in-process map first, then an optional shared Redis tier, and only then
// the loader (a live schema introspection query). Concurrent misses for the
// same table collapse into one load.
package schemacache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/singleflight"

	"github.com/elfen20/clone-cave-data-sub003/internal/fields"
)

// DefaultTTL bounds how long the Redis tier keeps a layout.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "schema:"

// Loader fetches a layout from the backend; typically Engine.QuerySchema.
type Loader func(ctx context.Context, database, table string) (*fields.Layout, error)

// Cache is a two-tier layout cache. The zero value is not usable; use New.
type Cache struct {
	loader Loader
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	local map[string]*fields.Layout
	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithRedis adds the shared tier. A zero ttl selects DefaultTTL.
func WithRedis(client *redis.Client, ttl time.Duration) Option {
	return func(c *Cache) {
		c.rdb = client
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithLogger replaces the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) { c.logger = logger }
}

// New builds a cache around the loader.
func New(loader Loader, opts ...Option) *Cache {
	c := &Cache{
		loader: loader,
		ttl:    DefaultTTL,
		logger: slog.Default(),
		local:  make(map[string]*fields.Layout),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func cacheKey(database, table string) string {
	return keyPrefix + database + "/" + table
}

// Layout returns the table's layout, loading and caching it on first use.
func (c *Cache) Layout(ctx context.Context, database, table string) (*fields.Layout, error) {
	key := cacheKey(database, table)

	c.mu.RLock()
	cached, ok := c.local[key]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if layout := c.fromRedis(ctx, key); layout != nil {
			c.store(key, layout)
			return layout, nil
		}
		layout, err := c.loader(ctx, database, table)
		if err != nil {
			return nil, err
		}
		c.store(key, layout)
		c.toRedis(ctx, key, layout)
		return layout, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*fields.Layout), nil
}

// Invalidate drops the cached layout of one table from both tiers. Call it
// after DDL against the table.
func (c *Cache) Invalidate(ctx context.Context, database, table string) {
	key := cacheKey(database, table)
	c.mu.Lock()
	delete(c.local, key)
	c.mu.Unlock()
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, key).Err(); err != nil {
			c.logger.Warn("schema cache invalidation failed", "key", key, "error", err)
		}
	}
}

func (c *Cache) store(key string, layout *fields.Layout) {
	c.mu.Lock()
	c.local[key] = layout
	c.mu.Unlock()
}

// layoutDoc is the serialized form of a discovered layout. Only untyped
// layouts travel through Redis; bindings stay in-process.
type layoutDoc struct {
	Name   string         `json:"name"`
	Fields []fields.Field `json:"fields"`
}

func (c *Cache) fromRedis(ctx context.Context, key string) *fields.Layout {
	if c.rdb == nil {
		return nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		c.logger.Warn("schema cache read failed", "key", key, "error", err)
		return nil
	}
	var doc layoutDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.logger.Warn("schema cache entry is corrupt", "key", key, "error", err)
		return nil
	}
	layout, err := fields.NewLayout(doc.Name, false, doc.Fields...)
	if err != nil {
		c.logger.Warn("schema cache entry is invalid", "key", key, "error", err)
		return nil
	}
	return layout
}

func (c *Cache) toRedis(ctx context.Context, key string, layout *fields.Layout) {
	if c.rdb == nil {
		return
	}
	raw, err := json.Marshal(layoutDoc{Name: layout.Name(), Fields: layout.Fields()})
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Warn("schema cache write failed", "key", key, "error", err)
	}
}
