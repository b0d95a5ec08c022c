// Package embedclient implements out.EmbedderPort against a
// TEI-compatible embedding service, the same /embed and /tokenize
// endpoints core/embeddings.py calls through httpx. Ported from
// Embedder._sync_post/tokenize.
package embedclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

// Client talks to a TEI-style embedding service over HTTP, breaker-wrapped
// so a struggling service stops taking new batches instead of queueing
// timeouts behind it.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func New(baseURL string, httpClient *http.Client) *Client {
	cbSettings := gobreaker.Settings{
		Name:        "embedding-service",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		cb:         gobreaker.NewCircuitBreaker(cbSettings),
	}
}

type postInputs struct {
	Inputs []string `json:"inputs"`
}

// post sends {"inputs": texts} to path and returns the raw response body.
// It returns out.ErrPayloadTooLarge on a 413 rather than a generic HTTP
// error, so callers can distinguish "too big, try smaller" from a real
// failure.
func (c *Client) post(ctx context.Context, path string, texts []string) ([]byte, error) {
	body, err := json.Marshal(postInputs{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode == http.StatusRequestEntityTooLarge {
			return nil, out.ErrPayloadTooLarge
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("embedding service %s returned %d: %s", path, resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// Embed posts texts to /embed and returns one vector per input in order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	raw, err := c.post(ctx, "/embed", texts)
	if err != nil {
		return nil, err
	}
	var vectors [][]float32
	if err := json.Unmarshal(raw, &vectors); err != nil {
		return nil, fmt.Errorf("decode /embed response: %w", err)
	}
	return vectors, nil
}

// Tokenize posts text to /tokenize and returns its token ids.
func (c *Client) Tokenize(ctx context.Context, text string) ([]int, error) {
	if text == "" {
		return nil, nil
	}
	raw, err := c.post(ctx, "/tokenize", []string{text})
	if err != nil {
		return nil, err
	}

	var nested [][]int
	if err := json.Unmarshal(raw, &nested); err == nil && len(nested) > 0 {
		return nested[0], nil
	}
	var flat []int
	if err := json.Unmarshal(raw, &flat); err == nil {
		return flat, nil
	}
	return nil, fmt.Errorf("decode /tokenize response: unexpected shape")
}

// TokenCount reports how many tokens text costs according to the
// service's own tokenizer.
func (c *Client) TokenCount(ctx context.Context, text string) (int, error) {
	ids, err := c.Tokenize(ctx, text)
	if err != nil {
		return 0, err
	}
	return len(ids), nil
}

var _ out.EmbedderPort = (*Client)(nil)
