package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Event("message")
	m.Event("message")
	m.Generation("gemini", "idle", "ok", 20*time.Millisecond)
	m.Outbound("reply", errors.New("boom"))

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	out := string(body)

	for _, want := range []string{
		`gemrelay_webhook_events_total{kind="message"} 2`,
		`gemrelay_generations_total{engine="gemini",mode="idle",outcome="ok"} 1`,
		`gemrelay_line_messages_total{api="reply",result="error"} 1`,
		`gemrelay_generation_duration_seconds_count{engine="gemini"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.Event("message")
	m.Generation("gemini", "idle", "ok", time.Second)
	m.Outbound("push", nil)
}
