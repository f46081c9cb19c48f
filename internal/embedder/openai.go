package embedder

import (
	"context"
	"net/http"
	"sort"
	"strings"
)

// OpenAIEmbedder calls an OpenAI-compatible /embeddings endpoint.
type OpenAIEmbedder struct {
	baseURL string
	apiKey  string
	model   string
	// requested is sent as "dimensions" when the caller pinned one.
	requested int
	client    *http.Client
	dim       dimension
}

// NewOpenAIEmbedder creates an embedder. baseURL includes the version prefix,
// e.g. https://api.openai.com/v1.
func NewOpenAIEmbedder(baseURL, apiKey, model string, dim int) *OpenAIEmbedder {
	e := &OpenAIEmbedder{
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

func (e *OpenAIEmbedder) Name() string   { return "openai/" + e.model }
func (e *OpenAIEmbedder) Dimension() int { return e.dim.get() }

type openAIEmbedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// embeddingList is the response shape shared by OpenAI and Voyage.
type embeddingList struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

func (l embeddingList) vectors() [][]float32 {
	sort.SliceStable(l.Data, func(i, j int) bool { return l.Data[i].Index < l.Data[j].Index })
	out := make([][]float32, len(l.Data))
	for i, d := range l.Data {
		out[i] = d.Embedding
	}
	return out
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result embeddingList
	err := postJSON(ctx, e.client, e.baseURL+"/embeddings",
		map[string]string{"Authorization": "Bearer " + e.apiKey},
		openAIEmbedRequest{Model: e.model, Input: texts, Dimensions: e.requested}, &result)
	if err != nil {
		return nil, err
	}
	vecs := result.vectors()
	if err := e.dim.check(vecs, len(texts)); err != nil {
		return nil, err
	}
	return vecs, nil
}
