package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultStaticDimension is used by the static embedder when no dimension is
// configured.
const DefaultStaticDimension = 256

// StaticEmbedder is an offline embedder that hashes word unigrams and bigrams
// into a fixed number of buckets and L2-normalises the result. Texts sharing
// vocabulary land close together, which is enough for air-gapped installs and
// tests.
type StaticEmbedder struct {
	dim int
}

func NewStaticEmbedder(dim int) *StaticEmbedder {
	if dim <= 0 {
		dim = DefaultStaticDimension
	}
	return &StaticEmbedder{dim: dim}
}

func (e *StaticEmbedder) Name() string   { return fmt.Sprintf("static/hash-%d", e.dim) }
func (e *StaticEmbedder) Dimension() int { return e.dim }

func (e *StaticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
		}
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *StaticEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, w := range words {
		e.add(v, w, 1)
		if i > 0 {
			e.add(v, words[i-1]+" "+w, 0.5)
		}
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e *StaticEmbedder) add(v []float32, token string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(token))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dim))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
