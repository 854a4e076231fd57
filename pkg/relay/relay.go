package relay

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/line/line-bot-sdk-go/v8/linebot/messaging_api"
	log "github.com/sirupsen/logrus"

	"github.com/gemrelay/gemrelay/pkg/config"
	"github.com/gemrelay/gemrelay/pkg/generate"
	"github.com/gemrelay/gemrelay/pkg/models"
	"github.com/gemrelay/gemrelay/pkg/modestore"
	"github.com/gemrelay/gemrelay/pkg/prompt"
	"github.com/gemrelay/gemrelay/pkg/quota"
	"github.com/gemrelay/gemrelay/pkg/render"
)

// Generator answers a prompt. *generate.Adapter satisfies it.
type Generator interface {
	Generate(ctx context.Context, req generate.Request) generate.Result
}

// EngineSet reports which engine names are configured. *router.Router satisfies it.
type EngineSet interface {
	Known(engine string) bool
}

// Quota limits how many generations a user may request. *quota.Enforcer satisfies it.
type Quota interface {
	Check(ctx context.Context, userID string) error
}

// Reply is what the relay wants sent back for one input.
type Reply struct {
	Messages []messaging_api.MessageInterface
	// Generated is set when the reply carries a successful generation.
	Generated string
}

// Relay runs the per-user Idle/Translating state machine.
type Relay struct {
	modes    *modestore.Store
	prompts  *prompt.Builder
	gen      Generator
	engines  EngineSet
	renderer *render.Renderer
	quota    Quota
	cfg      config.ReplyConfig
}

// Option configures a Relay.
type Option func(*Relay)

// WithQuota refuses generations once a user's quota is used up.
func WithQuota(q Quota) Option {
	return func(r *Relay) { r.quota = q }
}

// New creates a Relay.
func New(modes *modestore.Store, prompts *prompt.Builder, gen Generator, engines EngineSet, renderer *render.Renderer, cfg config.ReplyConfig, opts ...Option) *Relay {
	r := &Relay{
		modes:    modes,
		prompts:  prompts,
		gen:      gen,
		engines:  engines,
		renderer: renderer,
		cfg:      cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleText processes one text message from userID.
func (r *Relay) HandleText(ctx context.Context, userID, text string) Reply {
	trimmed := strings.TrimSpace(text)

	if engine, ok := r.parseActivate(trimmed); ok {
		return r.activate(userID, engine)
	}
	if trimmed == r.cfg.DeactivateCommand {
		return r.deactivate(userID)
	}

	mode := r.modes.ModeOf(userID)
	if r.quota != nil {
		if err := r.quota.Check(ctx, userID); err != nil {
			if errors.Is(err, quota.ErrQuotaExceeded) {
				log.WithField("user", userID).Info("quota exceeded")
				return Reply{Messages: r.renderer.Text(r.cfg.QuotaText, mode)}
			}
			// A broken quota store must not block replies.
			log.WithError(err).Warn("quota check failed")
		}
	}

	res := r.gen.Generate(ctx, generate.Request{
		UserID: userID,
		Mode:   mode,
		Prompt: r.prompts.Build(mode, text),
	})

	switch {
	case res.OK():
		return Reply{Messages: r.renderer.Answer(res.Text, mode), Generated: res.Text}
	default:
		return Reply{Messages: r.renderer.Text(r.cfg.FallbackText, mode)}
	}
}

// HandlePostback processes postback data from userID. ok is false when the
// data is not a mode toggle.
func (r *Relay) HandlePostback(userID, data string) (Reply, bool) {
	values, err := url.ParseQuery(data)
	if err != nil {
		log.WithError(err).WithField("data", data).Debug("unparseable postback data")
		return Reply{}, false
	}

	switch values.Get("action") {
	case "translate_on":
		engine := values.Get("engine")
		if engine != "" && !r.engines.Known(engine) {
			engine = ""
		}
		return r.activate(userID, engine), true
	case "translate_off":
		return r.deactivate(userID), true
	default:
		return Reply{}, false
	}
}

// Mode returns the current mode of userID.
func (r *Relay) Mode(userID string) models.Mode {
	return r.modes.ModeOf(userID)
}

// Fallback renders the fallback reply for userID.
func (r *Relay) Fallback(userID string) Reply {
	return Reply{Messages: r.renderer.Text(r.cfg.FallbackText, r.modes.ModeOf(userID))}
}

// Text renders a fixed reply for userID with the mode toggles attached.
func (r *Relay) Text(userID, text string) Reply {
	return Reply{Messages: r.renderer.Text(text, r.modes.ModeOf(userID))}
}

// parseActivate matches "<activate>" and "<activate> <engine>". Unknown
// engine names select the default engine.
func (r *Relay) parseActivate(text string) (string, bool) {
	cmd := r.cfg.ActivateCommand
	if text == cmd {
		return "", true
	}
	rest, ok := strings.CutPrefix(text, cmd+" ")
	if !ok {
		return "", false
	}
	engine := strings.TrimSpace(rest)
	if !r.engines.Known(engine) {
		log.WithField("engine", engine).Info("unknown engine requested, using default")
		engine = ""
	}
	return engine, true
}

func (r *Relay) activate(userID, engine string) Reply {
	mode := models.Translating(engine)
	r.modes.Set(userID, mode)
	log.WithFields(log.Fields{"user": userID, "mode": mode}).Info("translation assistant on")
	return Reply{Messages: r.renderer.Text(r.cfg.ActivateAck, mode)}
}

func (r *Relay) deactivate(userID string) Reply {
	r.modes.Remove(userID)
	log.WithField("user", userID).Info("translation assistant off")
	return Reply{Messages: r.renderer.Text(r.cfg.DeactivateAck, models.Idle())}
}
