package tracker

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/gemrelay/gemrelay/pkg/models"
)

func newTestTracker(t *testing.T) *SQLiteTracker {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	tr, err := New(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func TestRecordAndRecent(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec := models.UsageRecord{
		UserID:        "U1",
		Engine:        "gemini",
		Model:         "gemini-2.5-flash",
		Mode:          models.ModeTranslating,
		Success:       true,
		LatencyMs:     120,
		PromptChars:   10,
		ResponseChars: 20,
		CreatedAt:     now,
	}
	if err := tr.Record(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err := tr.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	got := records[0]
	if got.UserID != "U1" || got.Mode != models.ModeTranslating || !got.Success || got.Cached {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.ResponseChars != 20 {
		t.Errorf("expected 20 response chars, got %d", got.ResponseChars)
	}
}

func TestRecentOrderAndLimit(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 5 {
		_ = tr.Record(ctx, models.UsageRecord{
			UserID: "U1", Engine: "gemini", Model: "m", Mode: models.ModeIdle, Success: true,
			LatencyMs: int64(i),
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}

	records, err := tr.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].LatencyMs != 4 || records[1].LatencyMs != 3 {
		t.Errorf("expected newest first, got %d then %d", records[0].LatencyMs, records[1].LatencyMs)
	}
}

func TestCountByUser(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for i := range 3 {
		_ = tr.Record(ctx, models.UsageRecord{
			UserID: "U1", Engine: "gemini", Model: "m", Mode: models.ModeIdle, Success: true,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		})
	}
	_ = tr.Record(ctx, models.UsageRecord{
		UserID: "U2", Engine: "gemini", Model: "m", Mode: models.ModeIdle, Success: true, CreatedAt: now,
	})

	count, err := tr.CountByUser(ctx, "U1", now.Add(-time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Errorf("expected 3, got %d", count)
	}
}

func TestSummary(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	now := time.Now().UTC()

	recs := []models.UsageRecord{
		{UserID: "U1", Engine: "gemini", Model: "m", Mode: models.ModeIdle, Success: true, LatencyMs: 100},
		{UserID: "U1", Engine: "gemini", Model: "m", Mode: models.ModeIdle, Success: true, Cached: true, LatencyMs: 0},
		{UserID: "U2", Engine: "gemini", Model: "m", Mode: models.ModeTranslating, Success: false, LatencyMs: 50},
		{UserID: "U2", Engine: "gpt", Model: "g", Mode: models.ModeIdle, Success: true, LatencyMs: 10},
	}
	for _, r := range recs {
		r.CreatedAt = now
		if err := tr.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	summaries, err := tr.Summary(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(summaries) != 3 {
		t.Fatalf("expected 3 summaries, got %d", len(summaries))
	}

	idle := summaries[0]
	if idle.Engine != "gemini" || idle.Mode != models.ModeIdle {
		t.Fatalf("unexpected first summary: %+v", idle)
	}
	if idle.RequestCount != 2 || idle.CachedCount != 1 || idle.FailedCount != 0 {
		t.Errorf("unexpected counts: %+v", idle)
	}
	if idle.AvgLatencyMs != 50 {
		t.Errorf("expected avg latency 50, got %f", idle.AvgLatencyMs)
	}
	if summaries[1].FailedCount != 1 {
		t.Errorf("expected 1 failure for translating, got %d", summaries[1].FailedCount)
	}

	filtered, err := tr.Summary(ctx, "gpt")
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 1 || filtered[0].Engine != "gpt" {
		t.Errorf("unexpected filtered summary: %+v", filtered)
	}
}
