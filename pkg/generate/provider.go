package generate

import (
	"context"
	"errors"
	"fmt"

	"github.com/gemrelay/gemrelay/pkg/config"
)

// ErrEmptyAnswer is returned when a provider answers with no text.
var ErrEmptyAnswer = errors.New("provider returned an empty answer")

// Provider sends one prompt to an upstream model and returns its text.
type Provider interface {
	Name() string
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// NewProvider builds the client for a configured provider.
func NewProvider(ctx context.Context, cfg config.ProviderConfig) (Provider, error) {
	switch cfg.Type {
	case "", "gemini":
		return NewGemini(ctx, cfg)
	case "openai":
		return NewOpenAI(cfg), nil
	case "anthropic":
		return NewAnthropic(cfg), nil
	default:
		return nil, fmt.Errorf("provider %q: unknown type %q", cfg.Name, cfg.Type)
	}
}

// NewProviders builds every configured provider.
func NewProviders(ctx context.Context, cfgs []config.ProviderConfig) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		p, err := NewProvider(ctx, c)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
