package render

import (
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	log "github.com/sirupsen/logrus"

	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/models"
)

// LINE API limits.
const (
	MaxTextRunes      = 5000
	MaxReplyMessages  = 5
	MaxCarouselBubble = 12
	MaxAltTextRunes   = 100
	maxQuickReplies   = 13
	maxLabelRunes     = 20
)

// Postback data understood by the relay.
const (
	PostbackTranslateOn  = "action=translate_on"
	PostbackTranslateOff = "action=translate_off"
)

// Renderer turns answer text into LINE messages.
type Renderer struct {
	carousel   bool
	chunkSize  int
	quickReply bool
	activate   string
	deactivate string
	engines    []string
}

// New creates a Renderer. engines are offered as extra activation buttons.
func New(cfg config.ReplyConfig, engines []string) *Renderer {
	size := cfg.ChunkSize
	if size <= 0 {
		size = 400
	}
	return &Renderer{
		carousel:   cfg.Render == "carousel",
		chunkSize:  size,
		quickReply: cfg.QuickReply,
		activate:   cfg.ActivateCommand,
		deactivate: cfg.DeactivateCommand,
		engines:    engines,
	}
}

// Answer renders a generated answer. The quick reply for mode is attached to
// the last message.
func (r *Renderer) Answer(text string, mode models.Mode) []messaging_api.MessageInterface {
	if r.carousel {
		chunks := Chunk(text, r.chunkSize)
		if len(chunks) > 0 && len(chunks) <= MaxCarouselBubble {
			return []messaging_api.MessageInterface{r.carouselMessage(text, chunks, mode)}
		}
	}
	return r.textMessages(text, mode)
}

// Text renders a short fixed reply such as an acknowledgement.
func (r *Renderer) Text(text string, mode models.Mode) []messaging_api.MessageInterface {
	return r.textMessages(text, mode)
}

func (r *Renderer) textMessages(text string, mode models.Mode) []messaging_api.MessageInterface {
	chunks := Chunk(text, MaxTextRunes)
	if len(chunks) == 0 {
		chunks = []string{text}
	}
	if len(chunks) > MaxReplyMessages {
		log.WithFields(log.Fields{
			"chunks":  len(chunks),
			"dropped": len(chunks) - MaxReplyMessages,
		}).Warn("reply exceeds LINE message limit, truncating")
		chunks = chunks[:MaxReplyMessages]
	}

	msgs := make([]messaging_api.MessageInterface, 0, len(chunks))
	for i, c := range chunks {
		msg := messaging_api.TextMessage{Text: c}
		if i == len(chunks)-1 {
			msg.QuickReply = r.QuickReply(mode)
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func (r *Renderer) carouselMessage(text string, chunks []string, mode models.Mode) messaging_api.FlexMessage {
	bubbles := make([]messaging_api.FlexBubble, 0, len(chunks))
	for _, c := range chunks {
		bubbles = append(bubbles, messaging_api.FlexBubble{
			Body: &messaging_api.FlexBox{
				Layout: messaging_api.FlexBoxLAYOUT_VERTICAL,
				Contents: []messaging_api.FlexComponentInterface{
					messaging_api.FlexText{Text: c, Wrap: true},
				},
			},
		})
	}
	return messaging_api.FlexMessage{
		AltText:    truncate(text, MaxAltTextRunes),
		Contents:   messaging_api.FlexCarousel{Contents: bubbles},
		QuickReply: r.QuickReply(mode),
	}
}

// QuickReply returns the mode toggle buttons for mode, or nil when disabled.
func (r *Renderer) QuickReply(mode models.Mode) *messaging_api.QuickReply {
	if !r.quickReply {
		return nil
	}

	var items []messaging_api.QuickReplyItem
	if mode.IsTranslating() {
		items = append(items, postbackItem("結束翻譯", PostbackTranslateOff, r.deactivate))
	} else {
		items = append(items, postbackItem("翻譯小助理", PostbackTranslateOn, r.activate))
		for _, e := range r.engines {
			if len(items) == maxQuickReplies {
				break
			}
			items = append(items, postbackItem("翻譯 "+e, PostbackTranslateOn+"&engine="+e, r.activate+" "+e))
		}
	}
	return &messaging_api.QuickReply{Items: items}
}

func postbackItem(label, data, display string) messaging_api.QuickReplyItem {
	return messaging_api.QuickReplyItem{
		Action: messaging_api.PostbackAction{
			Label:       truncate(label, maxLabelRunes),
			Data:        data,
			DisplayText: display,
		},
	}
}

// Chunk splits text into pieces of at most size runes. Concatenating the
// pieces yields text unchanged.
func Chunk(text string, size int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	runes := []rune(text)
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
