package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/gemrelay/gemrelay/pkg/config"
)

// Anthropic calls the Anthropic messages API.
type Anthropic struct {
	name        string
	client      anthropic.Client
	temperature float64
	maxTokens   int64
}

// NewAnthropic creates an Anthropic provider. SDK retries are disabled.
func NewAnthropic(cfg config.ProviderConfig) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Anthropic{
		name:        cfg.Name,
		client:      anthropic.NewClient(opts...),
		temperature: float64(cfg.Temperature),
		maxTokens:   int64(cfg.MaxTokens),
	}
}

func (a *Anthropic) Name() string { return a.name }

func (a *Anthropic) Generate(ctx context.Context, model, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   a.maxTokens,
		Temperature: anthropic.Float(a.temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	return sb.String(), nil
}
