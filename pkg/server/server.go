package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/metrics"
	"github.com/gemrelay/gemrelay/pkg/relay"
)

// Messenger is the subset of the LINE Messaging API the server calls.
// *messaging_api.MessagingApiAPI satisfies it.
type Messenger interface {
	ReplyMessage(req *messaging_api.ReplyMessageRequest) (*messaging_api.ReplyMessageResponse, error)
	PushMessage(req *messaging_api.PushMessageRequest, xLineRetryKey string) (*messaging_api.PushMessageResponse, error)
	GetGroupMemberProfile(groupId string, userId string) (*messaging_api.GroupUserProfileResponse, error)
	GetRoomMemberProfile(roomId string, userId string) (*messaging_api.RoomUserProfileResponse, error)
}

// Server is the LINE webhook endpoint.
type Server struct {
	cfg     *config.Config
	engine  *gin.Engine
	relay   *relay.Relay
	line    Messenger
	pusher  Messenger
	metrics *metrics.Metrics
	limiter *rate.Limiter
}

// New creates a Server. pusher sends the copy of each answer to the
// configured push target; nil uses line.
func New(cfg *config.Config, rl *relay.Relay, line, pusher Messenger, m *metrics.Metrics) *Server {
	if cfg.Log.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if pusher == nil {
		pusher = line
	}

	limit := rate.Inf
	burst := 1
	if cfg.Reply.RateLimit > 0 {
		limit = rate.Limit(cfg.Reply.RateLimit)
		burst = max(1, int(cfg.Reply.RateLimit))
	}

	s := &Server{
		cfg:     cfg,
		engine:  gin.New(),
		relay:   rl,
		line:    line,
		pusher:  pusher,
		metrics: m,
		limiter: rate.NewLimiter(limit, burst),
	}

	s.engine.Use(gin.Recovery(), loggingMiddleware())
	s.engine.POST("/callback", s.handleCallback)
	s.engine.GET("/ping", s.handlePing)
	if m != nil {
		s.engine.GET("/metrics", gin.WrapH(m.Handler()))
	}
	return s
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).Round(time.Millisecond),
			"remote":   c.ClientIP(),
		}).Debug("http request")
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// ListenAndServe starts the server with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("gemrelay listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
