package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gemrelay/gemrelay/pkg/models"
)

const keyPrefix = "gemrelay:cache:"

// Cache is a persistent answer store backed by Redis.
type Cache struct {
	client *goredis.Client
	ttl    time.Duration
}

// New connects to addr and verifies the connection. A zero ttl stores
// answers without expiry.
func New(ctx context.Context, addr, password string, db int, ttl time.Duration) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &Cache{client: client, ttl: ttl}, nil
}

// Get retrieves a stored answer.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := c.client.Get(ctx, keyPrefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}
	return v, true, nil
}

// Put stores an answer.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	if err := c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

func (c *Cache) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := c.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan cache keys: %w", err)
	}
	return keys, nil
}

// Stats returns the number of stored answers.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	keys, err := c.keys(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{Entries: int64(len(keys))}, nil
}

// Clear removes every stored answer.
func (c *Cache) Clear(ctx context.Context) error {
	keys, err := c.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
