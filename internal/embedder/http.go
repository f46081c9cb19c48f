package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"
)

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

// postJSON sends body as JSON and decodes a 200 response into out. All
// failures are reported as ErrEmbeddingUnavailable.
func postJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal embed request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %w", ErrEmbeddingUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEmbeddingUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: %s returned %d: %s", ErrEmbeddingUnavailable, url, resp.StatusCode, string(respBody))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode embed response: %w", ErrEmbeddingUnavailable, err)
	}
	return nil
}

// dimension tracks a declared vector length. A zero value learns the length
// from the first response.
type dimension struct {
	n atomic.Int64
}

func (d *dimension) get() int { return int(d.n.Load()) }

func (d *dimension) check(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: expected %d embeddings, got %d", ErrEmbeddingUnavailable, want, len(vecs))
	}
	for _, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("%w: empty vector", ErrEmbeddingUnavailable)
		}
		d.n.CompareAndSwap(0, int64(len(v)))
		if got := d.get(); len(v) != got {
			return fmt.Errorf("%w: %w: got %d, want %d", ErrEmbeddingUnavailable, ErrDimensionMismatch, len(v), got)
		}
	}
	return nil
}
