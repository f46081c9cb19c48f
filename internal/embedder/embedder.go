// Package embedder turns text into fixed-dimension vectors. Every backend
// satisfies the same Embedder capability so the vector store and the delta
// engine never depend on a concrete provider.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bigrag/internal/config"
)

var (
	// ErrEmbeddingUnavailable wraps every provider failure: network, auth,
	// timeout, rate-limit wait cancelled or an unusable response.
	ErrEmbeddingUnavailable = errors.New("embedding provider unavailable")
	// ErrDimensionMismatch means a provider returned vectors of the wrong length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrUnknownProvider is returned by New for an unrecognised EMBED_PROVIDER.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Embedder is the embedding capability.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimension is the vector length, or 0 while it is still unknown.
	Dimension() int
	// Name identifies provider and model, e.g. "ollama/nomic-embed-text".
	Name() string
}

// knownDimensions covers the default models of each provider so the vector
// store can be created before the first request.
var knownDimensions = map[string]int{
	"nomic-embed-text":       768,
	"mxbai-embed-large":      1024,
	"all-minilm":             384,
	"snowflake-arctic-embed": 1024,
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
	"voyage-3.5":             1024,
	"voyage-3.5-lite":        1024,
	"voyage-3-large":         1024,
	"voyage-code-3":          1024,
}

// DefaultDimension returns the published dimension of model, or 0.
func DefaultDimension(model string) int {
	base, _, _ := strings.Cut(model, ":")
	return knownDimensions[base]
}

// New builds the embedder selected by cfg.EmbedProvider, wrapped with the
// configured timeout, rate limit and batching.
func New(cfg *config.Config, logger *slog.Logger) (Embedder, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var inner Embedder
	switch strings.ToUpper(cfg.EmbedProvider) {
	case "OLLAMA":
		dim := pickDimension(cfg.EmbeddingDimension, cfg.OllamaEmbeddingModel)
		inner = NewOllamaEmbedder(cfg.OllamaURL, cfg.OllamaEmbeddingModel, dim)
	case "OPENAI":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for the openai embedder")
		}
		dim := pickDimension(cfg.EmbeddingDimension, cfg.OpenAIEmbeddingModel)
		inner = NewOpenAIEmbedder(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIEmbeddingModel, dim)
	case "VOYAGE":
		if cfg.VoyageAPIKey == "" {
			return nil, fmt.Errorf("VOYAGE_API_KEY is required for the voyage embedder")
		}
		dim := pickDimension(cfg.EmbeddingDimension, cfg.VoyageEmbeddingModel)
		inner = NewVoyageEmbedder(VoyageBaseURL, cfg.VoyageAPIKey, cfg.VoyageEmbeddingModel, dim)
	case "STATIC":
		dim := cfg.EmbeddingDimension
		if dim <= 0 {
			dim = DefaultStaticDimension
		}
		inner = NewStaticEmbedder(dim)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.EmbedProvider)
	}

	logger.Debug("embedder selected", "name", inner.Name(), "dimension", inner.Dimension())
	return NewLimited(inner, cfg.EmbedTimeout, cfg.EmbedRateLimit), nil
}

func pickDimension(configured int, model string) int {
	if configured > 0 {
		return configured
	}
	return DefaultDimension(model)
}

// Probe returns e's dimension, embedding a short text when the provider has
// not declared one yet.
func Probe(ctx context.Context, e Embedder) (int, error) {
	if d := e.Dimension(); d > 0 {
		return d, nil
	}
	vecs, err := e.Embed(ctx, []string{"dimension probe"})
	if err != nil {
		return 0, err
	}
	if len(vecs) != 1 || len(vecs[0]) == 0 {
		return 0, fmt.Errorf("%w: empty probe response", ErrEmbeddingUnavailable)
	}
	return len(vecs[0]), nil
}

// EmbedSingle embeds a single text and returns its vector.
func EmbedSingle(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: expected 1 embedding, got %d", ErrEmbeddingUnavailable, len(vecs))
	}
	return vecs[0], nil
}
