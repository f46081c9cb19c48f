package embedder

import (
	"context"
	"net/http"
	"strings"
)

// VoyageBaseURL is the public Voyage AI API. Anthropic does not serve
// embeddings, so the ANTHROPIC answer provider embeds through Voyage.
const VoyageBaseURL = "https://api.voyageai.com/v1"

// VoyageEmbedder calls the Voyage AI /embeddings endpoint.
type VoyageEmbedder struct {
	baseURL   string
	apiKey    string
	model     string
	requested int
	client    *http.Client
	dim       dimension
}

func NewVoyageEmbedder(baseURL, apiKey, model string, dim int) *VoyageEmbedder {
	e := &VoyageEmbedder{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  newHTTPClient(),
	}
	if dim > 0 && dim != DefaultDimension(model) {
		e.requested = dim
	}
	e.dim.n.Store(int64(dim))
	return e
}

func (e *VoyageEmbedder) Name() string   { return "voyage/" + e.model }
func (e *VoyageEmbedder) Dimension() int { return e.dim.get() }

type voyageEmbedRequest struct {
	Model           string   `json:"model"`
	Input           []string `json:"input"`
	OutputDimension int      `json:"output_dimension,omitempty"`
}

func (e *VoyageEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result embeddingList
	err := postJSON(ctx, e.client, e.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + e.apiKey},
		voyageEmbedRequest{Model: e.model, Input: texts, OutputDimension: e.requested}, &result)
	if err != nil {
		return nil, err
	}
	vecs := result.vectors()
	if err := e.dim.check(vecs, len(texts)); err != nil {
		return nil, err
	}
	return vecs, nil
}
