package llm

import (
	"context"
	"net/http"
	"strings"
)

// OllamaChat answers through a local Ollama /api/chat endpoint.
type OllamaChat struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewOllamaChat(baseURL, model string) *OllamaChat {
	return &OllamaChat{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  newClient(),
	}
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
}

type ollamaChatRequest struct {
	Model    string        `json:"model"`
	Messages []Message     `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaChatResponse struct {
	Message Message `json:"message"`
	Done    bool    `json:"done"`
}

func (c *OllamaChat) Generate(ctx context.Context, messages []Message) (string, error) {
	var result ollamaChatResponse
	err := postJSON(ctx, c.client, "ollama chat", c.baseURL+"/api/chat", nil, ollamaChatRequest{
		Model:    c.model,
		Messages: messages,
		Options:  ollamaOptions{Temperature: Temperature},
	}, &result)
	if err != nil {
		return "", err
	}
	return result.Message.Content, nil
}
