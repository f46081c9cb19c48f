package llm

import (
	"context"
	"net/http"
	"strings"
)

// AnthropicBaseURL is the public Anthropic API.
const AnthropicBaseURL = "https://api.anthropic.com"

const anthropicVersion = "2023-06-01"

// AnthropicChat calls the Anthropic Messages API.
type AnthropicChat struct {
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
	client    *http.Client
}

func NewAnthropicChat(baseURL, apiKey, model string) *AnthropicChat {
	return &AnthropicChat{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		model:     model,
		maxTokens: 1024,
		client:    newClient(),
	}
}

type anthropicRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate sends messages to Anthropic. System messages are lifted into the
// top-level system field, which is where the Messages API expects them.
func (c *AnthropicChat) Generate(ctx context.Context, messages []Message) (string, error) {
	var system []string
	var turns []Message
	for _, m := range messages {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		turns = append(turns, m)
	}

	var result anthropicResponse
	err := postJSON(ctx, c.client, "anthropic", c.baseURL+"/v1/messages",
		map[string]string{"x-api-key": c.apiKey, "anthropic-version": anthropicVersion},
		anthropicRequest{
			Model:       c.model,
			MaxTokens:   c.maxTokens,
			System:      strings.Join(system, "\n\n"),
			Messages:    turns,
			Temperature: Temperature,
		}, &result)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}
