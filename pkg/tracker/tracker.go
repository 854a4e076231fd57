package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gemrelay/gemrelay/pkg/models"
)

// Tracker records and queries generation attempts.
type Tracker interface {
	// Record stores a usage record.
	Record(ctx context.Context, rec models.UsageRecord) error
	// Recent returns the latest records, newest first.
	Recent(ctx context.Context, limit int) ([]models.UsageRecord, error)
	// CountByUser returns the number of attempts made for a user since a given time.
	CountByUser(ctx context.Context, userID string, since time.Time) (int64, error)
	// Summary returns usage aggregated per engine and mode, optionally filtered by engine.
	Summary(ctx context.Context, engine string) ([]models.UsageSummary, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	engine TEXT NOT NULL,
	model TEXT NOT NULL,
	mode TEXT NOT NULL,
	cached INTEGER NOT NULL DEFAULT 0,
	success INTEGER NOT NULL DEFAULT 1,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	prompt_chars INTEGER NOT NULL DEFAULT 0,
	response_chars INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_usage_user_time ON usage_records(user_id, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a usage record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.UsageRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO usage_records (user_id, engine, model, mode, cached, success, latency_ms, prompt_chars, response_chars, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Engine, rec.Model, string(rec.Mode), rec.Cached, rec.Success,
		rec.LatencyMs, rec.PromptChars, rec.ResponseChars, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Recent returns the latest records, newest first.
func (t *SQLiteTracker) Recent(ctx context.Context, limit int) ([]models.UsageRecord, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, user_id, engine, model, mode, cached, success, latency_ms, prompt_chars, response_chars, created_at
		 FROM usage_records ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var r models.UsageRecord
		var mode string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Engine, &r.Model, &mode, &r.Cached, &r.Success,
			&r.LatencyMs, &r.PromptChars, &r.ResponseChars, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage: %w", err)
		}
		r.Mode = models.ModeKind(mode)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountByUser returns the number of attempts made for a user since a given time.
func (t *SQLiteTracker) CountByUser(ctx context.Context, userID string, since time.Time) (int64, error) {
	var count int64
	err := t.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM usage_records WHERE user_id = ? AND created_at >= ?`,
		userID, since,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}

// Summary returns usage aggregated per engine and mode.
func (t *SQLiteTracker) Summary(ctx context.Context, engine string) ([]models.UsageSummary, error) {
	query := `SELECT engine, mode, COUNT(*),
		COALESCE(SUM(CASE WHEN cached THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN success THEN 0 ELSE 1 END), 0),
		COALESCE(AVG(latency_ms), 0)
		FROM usage_records`
	var args []any
	if engine != "" {
		query += ` WHERE engine = ?`
		args = append(args, engine)
	}
	query += ` GROUP BY engine, mode ORDER BY engine, mode`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.UsageSummary
	for rows.Next() {
		var s models.UsageSummary
		var mode string
		if err := rows.Scan(&s.Engine, &mode, &s.RequestCount, &s.CachedCount, &s.FailedCount, &s.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Mode = models.ModeKind(mode)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
