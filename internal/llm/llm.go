// Package llm generates answers from chat-style prompts.
package llm

import (
	"context"
	"fmt"
	"strings"

	"bigrag/internal/config"
)

// Message represents a single chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces the assistant's reply to a conversation.
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// New builds the generator selected by cfg.UseProvider.
func New(cfg *config.Config) (Generator, error) {
	switch strings.ToUpper(cfg.UseProvider) {
	case "OLLAMA":
		return NewOllamaChat(cfg.OllamaURL, cfg.OllamaLLMModel), nil
	case "OPENAI":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
		}
		return NewOpenAIChat(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAILLMModel), nil
	case "ANTHROPIC":
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for the anthropic provider")
		}
		return NewAnthropicChat(AnthropicBaseURL, cfg.AnthropicAPIKey, cfg.AnthropicLLMModel), nil
	default:
		return nil, fmt.Errorf("unknown answer provider %q", cfg.UseProvider)
	}
}
