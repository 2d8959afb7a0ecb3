package llm

import (
	"context"
	"errors"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const DefaultAnthropicModel = string(anthropic.ModelClaudeSonnet4_20250514)

// AnthropicMessager is the slice of the SDK the client uses, kept as
// an interface so tests can substitute a fake.
type AnthropicMessager interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

type AnthropicClient struct {
	messages    AnthropicMessager
	model       anthropic.Model
	maxTokens   int64
	temperature float64
}

func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("anthropic api key not configured")
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	c := anthropic.NewClient(opts...)
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}
	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &AnthropicClient{
		messages:    &c.Messages,
		model:       anthropic.Model(model),
		maxTokens:   maxTokens,
		temperature: cfg.Temperature,
	}, nil
}

func (a *AnthropicClient) Chat(ctx context.Context, system, user string) (string, error) {
	return chatWithRetry(ctx, func(ctx context.Context) (string, error) {
		resp, err := a.messages.New(ctx, anthropic.MessageNewParams{
			Model:       a.model,
			MaxTokens:   a.maxTokens,
			System:      []anthropic.TextBlockParam{{Text: system}},
			Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(user))},
			Temperature: anthropic.Float(a.temperature),
		})
		if err != nil {
			return "", err
		}
		var sb strings.Builder
		for _, b := range resp.Content {
			if b.Type == "text" {
				sb.WriteString(b.Text)
			}
		}
		return sb.String(), nil
	})
}
