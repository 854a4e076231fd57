package generate

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"github.com/gemrelay/gemrelay/pkg/cache"
	"github.com/gemrelay/gemrelay/pkg/metrics"
	"github.com/gemrelay/gemrelay/pkg/models"
	"github.com/gemrelay/gemrelay/pkg/router"
	"github.com/gemrelay/gemrelay/pkg/tracker"
)

// Request is one generation for a user.
type Request struct {
	UserID string
	Mode   models.Mode
	Prompt string
}

// Result is the outcome of a generation. On failure Text holds the fallback
// reply and Err the cause.
type Result struct {
	Text   string
	Engine string
	Model  string
	Cached bool
	Err    error
}

// OK reports whether the generation succeeded.
func (r Result) OK() bool { return r.Err == nil }

// Adapter resolves a route, consults the cache and calls the provider. It
// never returns an error to the caller.
type Adapter struct {
	router    *router.Router
	providers map[string]Provider
	cache     *cache.Cache
	tracker   tracker.Tracker
	metrics   *metrics.Metrics
	fallback  string
	strip     string
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithCache memoizes answers.
func WithCache(c *cache.Cache) Option {
	return func(a *Adapter) { a.cache = c }
}

// WithTracker records every attempt.
func WithTracker(t tracker.Tracker) Option {
	return func(a *Adapter) { a.tracker = t }
}

// WithMetrics counts every attempt.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Adapter) { a.metrics = m }
}

// WithStripChars removes every occurrence of the given characters from answers.
func WithStripChars(chars string) Option {
	return func(a *Adapter) { a.strip = chars }
}

// NewAdapter creates an Adapter. fallback is the reply used when generation fails.
func NewAdapter(r *router.Router, providers []Provider, fallback string, opts ...Option) *Adapter {
	a := &Adapter{
		router:    r,
		providers: make(map[string]Provider, len(providers)),
		fallback:  fallback,
	}
	for _, p := range providers {
		a.providers[p.Name()] = p
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Generate answers req.Prompt with the engine bound to req.Mode.
func (a *Adapter) Generate(ctx context.Context, req Request) Result {
	start := time.Now()
	kind := req.Mode.Kind
	if kind == "" {
		kind = models.ModeIdle
	}

	res := Result{}
	text, err := a.generate(ctx, kind, req, &res)
	elapsed := time.Since(start)

	logger := log.WithFields(log.Fields{
		"user":    req.UserID,
		"engine":  res.Engine,
		"model":   res.Model,
		"mode":    kind,
		"cached":  res.Cached,
		"latency": elapsed.Round(time.Millisecond),
	})
	if err != nil {
		logger.WithError(err).Error("generation failed")
		res.Text = a.fallback
		res.Err = err
	} else {
		logger.Debug("generation ok")
		res.Text = text
	}

	a.record(ctx, req, kind, res, elapsed)
	return res
}

func (a *Adapter) generate(ctx context.Context, kind models.ModeKind, req Request, res *Result) (string, error) {
	route, err := a.router.Resolve(req.Mode.Engine)
	if err != nil {
		return "", fmt.Errorf("resolve engine: %w", err)
	}
	res.Engine = route.Engine
	res.Model = route.Model

	p, ok := a.providers[route.Provider.Name]
	if !ok {
		return "", fmt.Errorf("provider %q not initialized", route.Provider.Name)
	}

	compute := func(ctx context.Context) (string, error) {
		text, err := p.Generate(ctx, route.Model, req.Prompt)
		if err != nil {
			return "", err
		}
		text = a.clean(text)
		if text == "" {
			return "", ErrEmptyAnswer
		}
		return text, nil
	}

	if a.cache == nil {
		return compute(ctx)
	}
	text, cached, err := a.cache.GetOrCompute(ctx, cache.Key(kind, route.Engine, req.Prompt), compute)
	res.Cached = cached
	return text, err
}

func (a *Adapter) clean(text string) string {
	text = strings.TrimSpace(text)
	for _, r := range a.strip {
		text = strings.ReplaceAll(text, string(r), "")
	}
	return strings.TrimSpace(text)
}

func (a *Adapter) record(ctx context.Context, req Request, kind models.ModeKind, res Result, elapsed time.Duration) {
	outcome := "ok"
	switch {
	case !res.OK():
		outcome = "error"
	case res.Cached:
		outcome = "cached"
	}
	a.metrics.Generation(res.Engine, string(kind), outcome, elapsed)

	if a.tracker == nil {
		return
	}
	rec := models.UsageRecord{
		UserID:      req.UserID,
		Engine:      res.Engine,
		Model:       res.Model,
		Mode:        kind,
		Cached:      res.Cached,
		Success:     res.OK(),
		LatencyMs:   elapsed.Milliseconds(),
		PromptChars: utf8.RuneCountInString(req.Prompt),
		CreatedAt:   time.Now().UTC(),
	}
	if res.OK() {
		rec.ResponseChars = utf8.RuneCountInString(res.Text)
	}
	if err := a.tracker.Record(ctx, rec); err != nil {
		log.WithError(err).Warn("failed to record usage")
	}
}
