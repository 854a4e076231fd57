package generate

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/gemrelay/gemrelay/pkg/config"
)

// Gemini calls the Gemini API.
type Gemini struct {
	name        string
	client      *genai.Client
	temperature float32
	maxTokens   int32
}

// NewGemini creates a Gemini provider.
func NewGemini(ctx context.Context, cfg config.ProviderConfig) (*Gemini, error) {
	cc := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create gemini client %q: %w", cfg.Name, err)
	}
	return &Gemini{
		name:        cfg.Name,
		client:      client,
		temperature: cfg.Temperature,
		maxTokens:   int32(cfg.MaxTokens),
	}, nil
}

func (g *Gemini) Name() string { return g.name }

// Generate sends prompt as a single user turn.
func (g *Gemini) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.temperature),
		MaxOutputTokens: g.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return resp.Text(), nil
}
