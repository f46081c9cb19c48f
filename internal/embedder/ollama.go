package embedder

import (
	"context"
	"net/http"
	"strings"
)

// OllamaEmbedder calls the Ollama /api/embed endpoint.
type OllamaEmbedder struct {
	baseURL string
	model   string
	client  *http.Client
	dim     dimension
}

// NewOllamaEmbedder creates an embedder targeting the given Ollama instance.
// dim may be 0, in which case it is learned from the first response.
func NewOllamaEmbedder(baseURL, model string, dim int) *OllamaEmbedder {
	e := &OllamaEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  newHTTPClient(),
	}
	e.dim.n.Store(int64(dim))
	return e
}

func (e *OllamaEmbedder) Name() string   { return "ollama/" + e.model }
func (e *OllamaEmbedder) Dimension() int { return e.dim.get() }

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed sends a batch of texts to Ollama and returns their embeddings.
// The returned slice has the same length and order as the input.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result ollamaEmbedResponse
	err := postJSON(ctx, e.client, e.baseURL+"/api/embed", nil,
		ollamaEmbedRequest{Model: e.model, Input: texts}, &result)
	if err != nil {
		return nil, err
	}
	if err := e.dim.check(result.Embeddings, len(texts)); err != nil {
		return nil, err
	}
	return result.Embeddings, nil
}
