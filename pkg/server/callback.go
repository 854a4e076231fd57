package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	"github.com/line/line-bot-sdk-go/v8/linebot/webhook"
	log "github.com/sirupsen/logrus"

	"github.com/gemrelay/gemrelay/pkg/relay"
	"github.com/gemrelay/gemrelay/pkg/render"
)

// EventKind is the closed set of webhook events the relay reacts to.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventMessage
	EventPostback
	EventMemberJoined
	EventFollow
)

func (k EventKind) String() string {
	switch k {
	case EventMessage:
		return "message"
	case EventPostback:
		return "postback"
	case EventMemberJoined:
		return "member_joined"
	case EventFollow:
		return "follow"
	default:
		return "unknown"
	}
}

// Classify maps a webhook event to its kind.
func Classify(ev webhook.EventInterface) EventKind {
	switch ev.(type) {
	case webhook.MessageEvent:
		return EventMessage
	case webhook.PostbackEvent:
		return EventPostback
	case webhook.MemberJoinedEvent:
		return EventMemberJoined
	case webhook.FollowEvent:
		return EventFollow
	default:
		return EventUnknown
	}
}

const unknownMemberName = "新朋友"

func (s *Server) handleCallback(c *gin.Context) {
	cb, err := webhook.ParseRequest(s.cfg.Line.ChannelSecret, c.Request)
	if err != nil {
		if errors.Is(err, webhook.ErrInvalidSignature) {
			log.Warn("invalid webhook signature")
			c.Status(http.StatusBadRequest)
			return
		}
		// Past the signature check LINE always gets 200.
		log.WithError(err).Warn("malformed webhook payload")
		c.String(http.StatusOK, "OK")
		return
	}

	// Generation runs to completion even if LINE drops the connection.
	ctx := context.WithoutCancel(c.Request.Context())
	for _, ev := range cb.Events {
		s.handleEvent(ctx, ev)
	}
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleEvent(ctx context.Context, ev webhook.EventInterface) {
	kind := Classify(ev)
	replyToken, userID := eventMeta(ev)
	logger := log.WithFields(log.Fields{
		"event":   kind,
		"user":    userID,
		"request": eventID(ev),
	})
	s.metrics.Event(kind.String())

	defer func() {
		if r := recover(); r != nil {
			logger.WithField("panic", r).Errorf("panic while handling event\n%s", debug.Stack())
			s.reply(logger, replyToken, s.relay.Fallback(userID).Messages)
		}
	}()

	switch e := ev.(type) {
	case webhook.MessageEvent:
		s.handleMessage(ctx, logger, e, userID)
	case webhook.PostbackEvent:
		s.handlePostback(logger, e, userID)
	case webhook.MemberJoinedEvent:
		s.handleMemberJoined(logger, e)
	case webhook.FollowEvent:
		s.reply(logger, e.ReplyToken, s.relay.Text(userID, s.cfg.Reply.WelcomeText).Messages)
	default:
		logger.Debug("ignoring event")
	}
}

func (s *Server) handleMessage(ctx context.Context, logger *log.Entry, e webhook.MessageEvent, userID string) {
	msg, ok := e.Message.(webhook.TextMessageContent)
	if !ok {
		logger.Debugf("ignoring %T", e.Message)
		return
	}

	rep := s.relay.HandleText(ctx, userID, msg.Text)
	s.reply(logger, e.ReplyToken, rep.Messages)
	s.push(logger, rep)
}

func (s *Server) handlePostback(logger *log.Entry, e webhook.PostbackEvent, userID string) {
	if e.Postback == nil {
		return
	}
	logger.WithField("data", e.Postback.Data).Info("postback received")

	rep, ok := s.relay.HandlePostback(userID, e.Postback.Data)
	if !ok {
		return
	}
	s.reply(logger, e.ReplyToken, rep.Messages)
}

func (s *Server) handleMemberJoined(logger *log.Entry, e webhook.MemberJoinedEvent) {
	if e.Joined == nil || len(e.Joined.Members) == 0 {
		return
	}

	names := make([]string, 0, len(e.Joined.Members))
	for _, m := range e.Joined.Members {
		name, err := s.displayName(e.Source, m.UserId)
		if err != nil {
			logger.WithError(err).WithField("member", m.UserId).Warn("member profile lookup failed")
			name = unknownMemberName
		}
		names = append(names, name)
	}

	text := strings.Join(names, "、") + " " + s.cfg.Reply.JoinGreeting
	s.reply(logger, e.ReplyToken, []messaging_api.MessageInterface{messaging_api.TextMessage{Text: text}})
}

func (s *Server) displayName(src webhook.SourceInterface, userID string) (string, error) {
	switch src := src.(type) {
	case webhook.GroupSource:
		p, err := s.line.GetGroupMemberProfile(src.GroupId, userID)
		if err != nil {
			return "", fmt.Errorf("group member profile: %w", err)
		}
		return p.DisplayName, nil
	case webhook.RoomSource:
		p, err := s.line.GetRoomMemberProfile(src.RoomId, userID)
		if err != nil {
			return "", fmt.Errorf("room member profile: %w", err)
		}
		return p.DisplayName, nil
	default:
		return "", fmt.Errorf("member joined from %T", src)
	}
}

func (s *Server) reply(logger *log.Entry, token string, msgs []messaging_api.MessageInterface) {
	if token == "" || len(msgs) == 0 {
		return
	}
	if len(msgs) > render.MaxReplyMessages {
		msgs = msgs[:render.MaxReplyMessages]
	}
	if err := s.limiter.Wait(context.Background()); err != nil {
		logger.WithError(err).Warn("reply rate limiter")
	}

	_, err := s.line.ReplyMessage(&messaging_api.ReplyMessageRequest{
		ReplyToken: token,
		Messages:   msgs,
	})
	s.metrics.Outbound("reply", err)
	if err != nil {
		logger.WithError(err).Error("failed to send reply")
	}
}

// push forwards a successful answer to the configured push target.
func (s *Server) push(logger *log.Entry, rep relay.Reply) {
	target := s.cfg.Line.PushTarget
	if target == "" || rep.Generated == "" {
		return
	}

	chunks := render.Chunk(rep.Generated, render.MaxTextRunes)
	if len(chunks) > render.MaxReplyMessages {
		chunks = chunks[:render.MaxReplyMessages]
	}
	msgs := make([]messaging_api.MessageInterface, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, messaging_api.TextMessage{Text: c})
	}
	if err := s.limiter.Wait(context.Background()); err != nil {
		logger.WithError(err).Warn("push rate limiter")
	}

	_, err := s.pusher.PushMessage(&messaging_api.PushMessageRequest{
		To:       target,
		Messages: msgs,
	}, "")
	s.metrics.Outbound("push", err)
	if err != nil {
		logger.WithError(err).WithField("target", target).Error("failed to push answer")
	}
}

// eventMeta returns the reply token and the acting user of ev. In groups
// without a user id the group or room id stands in.
func eventMeta(ev webhook.EventInterface) (string, string) {
	switch e := ev.(type) {
	case webhook.MessageEvent:
		return e.ReplyToken, sourceUser(e.Source)
	case webhook.PostbackEvent:
		return e.ReplyToken, sourceUser(e.Source)
	case webhook.MemberJoinedEvent:
		return e.ReplyToken, sourceUser(e.Source)
	case webhook.FollowEvent:
		return e.ReplyToken, sourceUser(e.Source)
	default:
		return "", ""
	}
}

func sourceUser(src webhook.SourceInterface) string {
	switch src := src.(type) {
	case webhook.UserSource:
		return src.UserId
	case webhook.GroupSource:
		if src.UserId != "" {
			return src.UserId
		}
		return src.GroupId
	case webhook.RoomSource:
		if src.UserId != "" {
			return src.UserId
		}
		return src.RoomId
	default:
		return ""
	}
}

func eventID(ev webhook.EventInterface) string {
	var id string
	switch e := ev.(type) {
	case webhook.MessageEvent:
		id = e.WebhookEventId
	case webhook.PostbackEvent:
		id = e.WebhookEventId
	case webhook.MemberJoinedEvent:
		id = e.WebhookEventId
	case webhook.FollowEvent:
		id = e.WebhookEventId
	}
	if id == "" {
		id = uuid.NewString()
	}
	return id
}
