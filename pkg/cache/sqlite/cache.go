package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gemrelay/gemrelay/pkg/models"
)

// Cache is a persistent answer store backed by SQLite. It keeps at most
// capacity rows, pruning by last use.
type Cache struct {
	db       *sql.DB
	capacity int
}

const createCacheTable = `
CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	response TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	last_used DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_cache_last_used ON cache_entries(last_used);
`

// New creates a Cache with the given database path and row capacity.
func New(dbPath string, capacity int) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("cache capacity must be positive, got %d", capacity)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	if _, err := db.Exec(createCacheTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate cache db: %w", err)
	}

	return &Cache{db: db, capacity: capacity}, nil
}

// Get retrieves a stored answer and bumps its last use.
func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	var response string
	err := c.db.QueryRowContext(ctx,
		`SELECT response FROM cache_entries WHERE cache_key = ?`, key,
	).Scan(&response)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("cache get: %w", err)
	}

	if _, err := c.db.ExecContext(ctx,
		`UPDATE cache_entries SET last_used = ? WHERE cache_key = ?`, time.Now().UTC(), key,
	); err != nil {
		return "", false, fmt.Errorf("cache touch: %w", err)
	}
	return response, true, nil
}

// Put stores an answer, then prunes rows beyond capacity.
func (c *Cache) Put(ctx context.Context, key, value string) error {
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO cache_entries (cache_key, response, created_at, last_used) VALUES (?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET response = excluded.response, last_used = excluded.last_used`,
		key, value, now, now,
	)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	_, err = c.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE cache_key NOT IN (
			SELECT cache_key FROM cache_entries ORDER BY last_used DESC, rowid DESC LIMIT ?
		)`,
		c.capacity,
	)
	if err != nil {
		return fmt.Errorf("cache prune: %w", err)
	}
	return nil
}

// Entries lists stored answers, most recently used first.
func (c *Cache) Entries(ctx context.Context) ([]models.CacheEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT cache_key, response, created_at, last_used FROM cache_entries ORDER BY last_used DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("cache entries: %w", err)
	}
	defer rows.Close()

	var entries []models.CacheEntry
	for rows.Next() {
		var e models.CacheEntry
		if err := rows.Scan(&e.Key, &e.Response, &e.CreatedAt, &e.LastUsed); err != nil {
			return nil, fmt.Errorf("scan cache entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns the number of stored rows.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{Entries: count}, nil
}

// Clear removes all stored answers.
func (c *Cache) Clear(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	return nil
}

// Close releases the database connection.
func (c *Cache) Close() error {
	return c.db.Close()
}
