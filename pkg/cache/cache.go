package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/gemrelay/gemrelay/pkg/models"
)

// Store is a persistent second-level tier behind the in-memory cache.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Cache is a bounded LRU memo of generated answers. Failed computations are
// never stored, and concurrent misses on one key share a single computation.
type Cache struct {
	entries *lru.Cache[string, string]
	store   Store
	group   singleflight.Group
	hits    atomic.Int64
	misses  atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithStore adds a persistent tier consulted on memory misses.
func WithStore(s Store) Option {
	return func(c *Cache) { c.store = s }
}

// New creates a Cache holding at most capacity answers.
func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}
	entries, err := lru.New[string, string](capacity)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}
	c := &Cache{entries: entries}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Key builds the cache key for a composed prompt answered by engine in mode.
// User identity is deliberately not part of it.
func Key(mode models.ModeKind, engine, prompt string) string {
	h := sha256.New()
	h.Write([]byte(mode))
	h.Write([]byte{0})
	h.Write([]byte(engine))
	h.Write([]byte{0})
	h.Write([]byte(prompt))
	return fmt.Sprintf("%x", h.Sum(nil))
}

// GetOrCompute returns the cached answer for key, or runs compute and stores
// its result. cached reports whether the answer came from a cache tier.
func (c *Cache) GetOrCompute(ctx context.Context, key string, compute func(context.Context) (string, error)) (string, bool, error) {
	if v, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return v, true, nil
	}

	type result struct {
		value  string
		cached bool
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if v, ok := c.entries.Get(key); ok {
			return result{value: v, cached: true}, nil
		}

		if c.store != nil {
			v, ok, err := c.store.Get(ctx, key)
			if err != nil {
				log.WithError(err).Warn("cache store get failed")
			} else if ok {
				c.entries.Add(key, v)
				return result{value: v, cached: true}, nil
			}
		}

		v, err := compute(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Add(key, v)
		if c.store != nil {
			if err := c.store.Put(ctx, key, v); err != nil {
				log.WithError(err).Warn("cache store put failed")
			}
		}
		return result{value: v}, nil
	})
	if err != nil {
		c.misses.Add(1)
		return "", false, err
	}

	r := v.(result)
	if r.cached {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return r.value, r.cached, nil
}

// Len returns the number of answers held in memory.
func (c *Cache) Len() int {
	return c.entries.Len()
}

// Purge empties the in-memory tier.
func (c *Cache) Purge() {
	c.entries.Purge()
}

// Stats returns in-memory cache metrics.
func (c *Cache) Stats() models.CacheStats {
	return models.CacheStats{
		Entries: int64(c.entries.Len()),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}
