package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"bigrag/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var conversation = []Message{
	{Role: "system", Content: "Answer from context."},
	{Role: "user", Content: "What failed?"},
}

func TestOllamaChatGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.False(t, req.Stream)
		assert.InDelta(t, Temperature, req.Options.Temperature, 1e-9)
		assert.Len(t, req.Messages, 2)
		json.NewEncoder(w).Encode(ollamaChatResponse{Message: Message{Role: "assistant", Content: "stage 3"}})
	}))
	defer srv.Close()

	out, err := NewOllamaChat(srv.URL, "m").Generate(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "stage 3", out)
}

func TestOpenAIChatGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"stage 4"}}]}`))
	}))
	defer srv.Close()

	out, err := NewOpenAIChat(srv.URL+"/v1", "k", "gpt").Generate(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "stage 4", out)
}

func TestAnthropicChatLiftsSystemPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "k", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		var req anthropicRequest
		json.NewDecoder(r.Body).Decode(&req)
		assert.Equal(t, "Answer from context.", req.System)
		assert.Equal(t, []Message{{Role: "user", Content: "What failed?"}}, req.Messages)
		w.Write([]byte(`{"content":[{"type":"text","text":"stage "},{"type":"text","text":"5"}]}`))
	}))
	defer srv.Close()

	out, err := NewAnthropicChat(srv.URL, "k", "claude").Generate(context.Background(), conversation)
	require.NoError(t, err)
	assert.Equal(t, "stage 5", out)
}

func TestGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewOllamaChat(srv.URL, "m").Generate(context.Background(), conversation)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestNewSelectsProvider(t *testing.T) {
	g, err := New(&config.Config{UseProvider: "ollama", OllamaURL: "http://x"})
	require.NoError(t, err)
	assert.IsType(t, &OllamaChat{}, g)

	_, err = New(&config.Config{UseProvider: "ANTHROPIC"})
	assert.Error(t, err)

	g, err = New(&config.Config{UseProvider: "ANTHROPIC", AnthropicAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &AnthropicChat{}, g)

	_, err = New(&config.Config{UseProvider: "nope"})
	assert.Error(t, err)
}
