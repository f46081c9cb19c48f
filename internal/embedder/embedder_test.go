package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"bigrag/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaEmbed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		resp := ollamaEmbedResponse{}
		for i := range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float32{float32(i), 1, 2})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(srv.URL+"/", "nomic-embed-text", 0)
	assert.Equal(t, 0, e.Dimension())

	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1, 2}, vecs[1])
	assert.Equal(t, 3, e.Dimension(), "dimension is learned from the first response")
	assert.Equal(t, "ollama/nomic-embed-text", e.Name())
}

func TestOllamaEmbedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "missing", 0).Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaDimensionMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2}}})
	}))
	defer srv.Close()

	_, err := NewOllamaEmbedder(srv.URL, "m", 3).Embed(context.Background(), []string{"a"})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestOpenAIEmbedOrdersByIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req openAIEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 2, req.Dimensions)

		w.Write([]byte(`{"data":[{"index":1,"embedding":[0,1]},{"index":0,"embedding":[1,0]}]}`))
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(srv.URL+"/v1", "sk-test", "text-embedding-3-small", 2)
	vecs, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vecs)
}

func TestVoyageEmbed(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,0.5,0.5]}]}`))
	}))
	defer srv.Close()

	e := NewVoyageEmbedder(srv.URL, "pa-test", "voyage-3.5", 3)
	vecs, err := e.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	assert.Len(t, vecs[0], 3)
	assert.Equal(t, "voyage-3.5", gotBody["model"])
	assert.EqualValues(t, 3, gotBody["output_dimension"])
}

func TestStaticEmbedderDeterministicAndNormalised(t *testing.T) {
	e := NewStaticEmbedder(64)
	a, err := e.Embed(context.Background(), []string{"The quick brown fox", "the QUICK brown fox!"})
	require.NoError(t, err)
	assert.Equal(t, a[0], a[1])

	var norm float64
	for _, x := range a[0] {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1, math.Sqrt(norm), 1e-5)

	empty, err := e.Embed(context.Background(), []string{"   "})
	require.NoError(t, err)
	assert.Len(t, empty[0], 64)
}

func TestStaticEmbedderSimilarity(t *testing.T) {
	e := NewStaticEmbedder(256)
	vecs, err := e.Embed(context.Background(), []string{
		"turbine blade temperature readings from the wind farm",
		"wind farm turbine temperature",
		"chocolate cake recipe with butter and sugar",
	})
	require.NoError(t, err)

	dist := func(a, b []float32) float64 {
		var s float64
		for i := range a {
			d := float64(a[i] - b[i])
			s += d * d
		}
		return math.Sqrt(s)
	}
	assert.Less(t, dist(vecs[1], vecs[0]), dist(vecs[1], vecs[2]))
}

type countingEmbedder struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (c *countingEmbedder) Name() string   { return "counting" }
func (c *countingEmbedder) Dimension() int { return 1 }

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i)}
	}
	return out, nil
}

func TestLimitedBatches(t *testing.T) {
	inner := &countingEmbedder{}
	l := NewLimited(inner, time.Second, 0)

	texts := make([]string, 2*BatchSize+6)
	vecs, err := l.Embed(context.Background(), texts)
	require.NoError(t, err)
	assert.Len(t, vecs, len(texts))
	assert.EqualValues(t, 3, inner.calls.Load())
}

func TestLimitedTimeout(t *testing.T) {
	inner := &countingEmbedder{delay: time.Second}
	l := NewLimited(inner, 20*time.Millisecond, 0)

	_, err := l.Embed(context.Background(), []string{"slow"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLimitedWrapsPlainErrors(t *testing.T) {
	boom := errors.New("boom")
	l := NewLimited(&countingEmbedder{err: boom}, 0, 0)

	_, err := l.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
	assert.ErrorIs(t, err, boom)
}

func TestLimitedRateLimitHonoursContext(t *testing.T) {
	l := NewLimited(&countingEmbedder{}, 0, 0.001)
	ctx, cancel := context.WithCancel(context.Background())

	_, err := l.Embed(ctx, []string{"first"})
	require.NoError(t, err)

	cancel()
	_, err = l.Embed(ctx, []string{"second"})
	assert.ErrorIs(t, err, ErrEmbeddingUnavailable)
}

func TestNewSelectsProvider(t *testing.T) {
	cfg := &config.Config{EmbedProvider: "static", EmbeddingDimension: 32, EmbedTimeout: time.Second}
	e, err := New(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimension())
	assert.Equal(t, "static/hash-32", e.Name())

	_, err = New(&config.Config{EmbedProvider: "carrier-pigeon"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = New(&config.Config{EmbedProvider: "OPENAI"}, nil)
	assert.Error(t, err, "missing api key")

	e, err = New(&config.Config{EmbedProvider: "OLLAMA", OllamaURL: "http://x", OllamaEmbeddingModel: "nomic-embed-text:latest"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 768, e.Dimension())
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float32{{1, 2, 3, 4}}})
	}))
	defer srv.Close()

	d, err := Probe(context.Background(), NewOllamaEmbedder(srv.URL, "custom", 0))
	require.NoError(t, err)
	assert.Equal(t, 4, d)
}
