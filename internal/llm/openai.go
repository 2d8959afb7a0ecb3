package llm

import (
	"context"
	"errors"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const DefaultOpenAIModel = openai.GPT4o

// OpenAIChatCompleter is the slice of the SDK the client uses.
type OpenAIChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIClient also serves OpenAI-compatible endpoints (e.g. a local
// gateway) via BaseURL.
type OpenAIClient struct {
	completer   OpenAIChatCompleter
	model       string
	maxTokens   int
	temperature float32
}

func NewOpenAIClient(cfg Config) (*OpenAIClient, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("openai api key not configured")
	}
	conf := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		conf.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &OpenAIClient{
		completer:   openai.NewClientWithConfig(conf),
		model:       model,
		maxTokens:   maxTokens,
		temperature: float32(cfg.Temperature),
	}, nil
}

func (o *OpenAIClient) Chat(ctx context.Context, system, user string) (string, error) {
	return chatWithRetry(ctx, func(ctx context.Context) (string, error) {
		resp, err := o.completer.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       o.model,
			MaxTokens:   o.maxTokens,
			Temperature: o.temperature,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", errors.New("empty completion")
		}
		return resp.Choices[0].Message.Content, nil
	})
}
