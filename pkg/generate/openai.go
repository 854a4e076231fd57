package generate

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/gemrelay/gemrelay/pkg/config"
)

// OpenAI calls an OpenAI-compatible chat completion endpoint.
type OpenAI struct {
	name        string
	client      *openai.Client
	temperature float32
	maxTokens   int
}

// NewOpenAI creates an OpenAI provider. BaseURL is used as is, so providers
// with non-standard paths work too.
func NewOpenAI(cfg config.ProviderConfig) *OpenAI {
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	return &OpenAI{
		name:        cfg.Name,
		client:      openai.NewClientWithConfig(cc),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}
}

func (o *OpenAI) Name() string { return o.name }

func (o *OpenAI) Generate(ctx context.Context, model, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.temperature,
		MaxTokens:   o.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyAnswer
	}
	return resp.Choices[0].Message.Content, nil
}
