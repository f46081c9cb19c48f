package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// BatchSize is the largest number of texts sent in one provider call.
const BatchSize = 32

// Limited wraps an Embedder with sub-batching, a per-call timeout and an
// optional request rate limit.
type Limited struct {
	inner   Embedder
	timeout time.Duration
	limiter *rate.Limiter
}

// NewLimited wraps inner. A zero timeout disables the per-call deadline and a
// non-positive rps disables rate limiting.
func NewLimited(inner Embedder, timeout time.Duration, rps float64) *Limited {
	l := &Limited{inner: inner, timeout: timeout}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		l.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return l
}

func (l *Limited) Name() string   { return l.inner.Name() }
func (l *Limited) Dimension() int { return l.inner.Dimension() }

// Unwrap returns the wrapped provider.
func (l *Limited) Unwrap() Embedder { return l.inner }

func (l *Limited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += BatchSize {
		end := min(i+BatchSize, len(texts))
		vecs, err := l.call(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		if len(vecs) != end-i {
			return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingUnavailable, end-i, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (l *Limited) call(ctx context.Context, batch []string) ([][]float32, error) {
	if l.limiter != nil {
		if err := l.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", ErrEmbeddingUnavailable, err)
		}
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	vecs, err := l.inner.Embed(ctx, batch)
	if err != nil {
		if !errors.Is(err, ErrEmbeddingUnavailable) {
			err = fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
		}
		return nil, err
	}
	return vecs, nil
}
