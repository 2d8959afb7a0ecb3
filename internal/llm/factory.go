package llm

import (
	"fmt"
	"strings"
)

// NewClient builds a chat client for the configured provider. An empty
// provider returns (nil, nil): the caller runs without the semantic
// capability.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "":
		return nil, nil
	case "anthropic", "claude":
		return NewAnthropicClient(cfg)
	case "openai":
		return NewOpenAIClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}
}
