package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync/atomic"
	"time"
)

// Embedder turns text into fixed-length vectors. Implementations signal
// ErrBackendUnavailable on network failure; callers treat that as
// retryable and eventually degrade to keyword ranking.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

const (
	embedRetries      = 2
	embedRetryBackoff = 250 * time.Millisecond

	// After this many consecutive failures the retriever stops paying
	// the timeout on every query and ranks without the semantic term.
	embedFailureThreshold = 3
)

// HTTPEmbedder calls an Ollama-compatible /api/embeddings endpoint.
// It tracks consecutive failures so the retriever can decide when to
// degrade; any success resets the counter.
type HTTPEmbedder struct {
	baseURL  string
	model    string
	dim      int
	client   *http.Client
	failures atomic.Int32
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

func NewHTTPEmbedder(baseURL, model string, dim int, timeout time.Duration) *HTTPEmbedder {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPEmbedder{
		baseURL: baseURL,
		model:   model,
		dim:     dim,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmbedder) Dimension() int { return e.dim }

// Degraded reports whether the backend has failed often enough that
// callers should skip the semantic term entirely.
func (e *HTTPEmbedder) Degraded() bool {
	return e.failures.Load() >= embedFailureThreshold
}

func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, fmt.Errorf("embed: empty text")
	}

	var lastErr error
	for attempt := 0; attempt <= embedRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(embedRetryBackoff << (attempt - 1)):
			}
		}

		vec, err := e.embedOnce(ctx, text)
		if err == nil {
			e.failures.Store(0)
			return vec, nil
		}
		lastErr = err
	}

	e.failures.Add(1)
	return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, lastErr)
}

func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs = append(vecs, vec)
	}
	return vecs, nil
}

func (e *HTTPEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embeddings request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embeddings status %d: %s", resp.StatusCode, msg)
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Embedding) != e.dim {
		return nil, fmt.Errorf("dimension mismatch: expected %d, got %d", e.dim, len(out.Embedding))
	}

	return out.Embedding, nil
}

// CosineSimilarity is the store's distance metric expressed as a
// similarity in [-1, 1]; write and read paths both use it.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
