package models

import "time"

// UsageRecord tracks a single generation attempt.
type UsageRecord struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Engine        string    `json:"engine"`
	Model         string    `json:"model"`
	Mode          ModeKind  `json:"mode"`
	Cached        bool      `json:"cached"`
	Success       bool      `json:"success"`
	LatencyMs     int64     `json:"latency_ms"`
	PromptChars   int       `json:"prompt_chars"`
	ResponseChars int       `json:"response_chars"`
	CreatedAt     time.Time `json:"created_at"`
}

// UsageSummary aggregates generation attempts per engine and mode.
type UsageSummary struct {
	Engine       string   `json:"engine"`
	Mode         ModeKind `json:"mode"`
	RequestCount int      `json:"request_count"`
	CachedCount  int      `json:"cached_count"`
	FailedCount  int      `json:"failed_count"`
	AvgLatencyMs float64  `json:"avg_latency_ms"`
}
