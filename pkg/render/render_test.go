package render

import (
	"strings"
	"testing"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/models"
)

func testReplyConfig(render string) config.ReplyConfig {
	cfg := config.Default().Reply
	cfg.Render = render
	return cfg
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name string
		text string
		size int
		want int
	}{
		{"empty", "", 400, 0},
		{"short", "hello", 400, 1},
		{"exact", strings.Repeat("a", 800), 400, 2},
		{"remainder", strings.Repeat("字", 801), 400, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(tt.text, tt.size)
			if len(chunks) != tt.want {
				t.Fatalf("expected %d chunks, got %d", tt.want, len(chunks))
			}
			if strings.Join(chunks, "") != tt.text {
				t.Error("chunks must reassemble to the original text")
			}
			for _, c := range chunks {
				if n := len([]rune(c)); n > tt.size {
					t.Errorf("chunk of %d runes exceeds %d", n, tt.size)
				}
			}
		})
	}
}

func TestAnswerText(t *testing.T) {
	r := New(testReplyConfig("text"), nil)
	msgs := r.Answer("hello", models.Idle())

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	msg, ok := msgs[0].(messaging_api.TextMessage)
	if !ok {
		t.Fatalf("expected TextMessage, got %T", msgs[0])
	}
	if msg.Text != "hello" {
		t.Errorf("expected hello, got %q", msg.Text)
	}
	if msg.QuickReply == nil || len(msg.QuickReply.Items) != 1 {
		t.Fatal("expected one quick reply item in idle mode")
	}
	action := msg.QuickReply.Items[0].Action.(messaging_api.PostbackAction)
	if action.Data != PostbackTranslateOn {
		t.Errorf("expected translate_on postback, got %q", action.Data)
	}
}

func TestAnswerLongTextSplitsAtLimit(t *testing.T) {
	r := New(testReplyConfig("text"), nil)
	text := strings.Repeat("a", MaxTextRunes*2+1)
	msgs := r.Answer(text, models.Translating(""))

	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		tm := m.(messaging_api.TextMessage)
		if i < len(msgs)-1 && tm.QuickReply != nil {
			t.Errorf("message %d should carry no quick reply", i)
		}
	}
	last := msgs[2].(messaging_api.TextMessage)
	action := last.QuickReply.Items[0].Action.(messaging_api.PostbackAction)
	if action.Data != PostbackTranslateOff {
		t.Errorf("expected translate_off in translating mode, got %q", action.Data)
	}
}

func TestAnswerCarousel(t *testing.T) {
	r := New(testReplyConfig("carousel"), nil)
	text := strings.Repeat("字", 1000)
	msgs := r.Answer(text, models.Idle())

	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	flex, ok := msgs[0].(messaging_api.FlexMessage)
	if !ok {
		t.Fatalf("expected FlexMessage, got %T", msgs[0])
	}
	carousel := flex.Contents.(messaging_api.FlexCarousel)
	if len(carousel.Contents) != 3 {
		t.Fatalf("expected 3 bubbles, got %d", len(carousel.Contents))
	}

	var joined strings.Builder
	for _, b := range carousel.Contents {
		joined.WriteString(b.Body.Contents[0].(messaging_api.FlexText).Text)
	}
	if joined.String() != text {
		t.Error("bubbles must reassemble to the answer")
	}
	if len([]rune(flex.AltText)) != MaxAltTextRunes {
		t.Errorf("expected alt text truncated to %d runes, got %d", MaxAltTextRunes, len([]rune(flex.AltText)))
	}
	if flex.QuickReply == nil {
		t.Error("expected quick reply on carousel")
	}
}

func TestAnswerCarouselTooLongFallsBackToText(t *testing.T) {
	r := New(testReplyConfig("carousel"), nil)
	text := strings.Repeat("a", 400*MaxCarouselBubble+1)
	msgs := r.Answer(text, models.Idle())

	if _, ok := msgs[0].(messaging_api.TextMessage); !ok {
		t.Fatalf("expected text fallback, got %T", msgs[0])
	}
}

func TestQuickReplyEngines(t *testing.T) {
	r := New(testReplyConfig("text"), []string{"gemini", "gpt"})
	qr := r.QuickReply(models.Idle())
	if len(qr.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(qr.Items))
	}
	action := qr.Items[2].Action.(messaging_api.PostbackAction)
	if action.Data != "action=translate_on&engine=gpt" {
		t.Errorf("unexpected engine postback %q", action.Data)
	}
	if action.DisplayText != "啟動翻譯小助理 gpt" {
		t.Errorf("unexpected display text %q", action.DisplayText)
	}
}

func TestQuickReplyDisabled(t *testing.T) {
	cfg := testReplyConfig("text")
	cfg.QuickReply = false
	r := New(cfg, nil)
	msg := r.Text("ok", models.Idle())[0].(messaging_api.TextMessage)
	if msg.QuickReply != nil {
		t.Error("expected no quick reply")
	}
}

func TestOversizedTextLogsTruncation(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	r := New(testReplyConfig("text"), nil)
	text := strings.Repeat("a", MaxTextRunes*(MaxReplyMessages+2))
	msgs := r.Answer(text, models.Idle())

	if len(msgs) != MaxReplyMessages {
		t.Fatalf("expected %d messages, got %d", MaxReplyMessages, len(msgs))
	}
	entry := hook.LastEntry()
	if entry == nil || entry.Level != log.WarnLevel {
		t.Fatalf("expected a warning, got %+v", entry)
	}
	if entry.Data["dropped"] != 2 {
		t.Errorf("expected 2 dropped chunks, got %v", entry.Data["dropped"])
	}
}

func TestFittingTextLogsNothing(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	r := New(testReplyConfig("text"), nil)
	r.Answer(strings.Repeat("a", MaxTextRunes*MaxReplyMessages), models.Idle())

	if len(hook.Entries) != 0 {
		t.Errorf("expected no log entries, got %d", len(hook.Entries))
	}
}
