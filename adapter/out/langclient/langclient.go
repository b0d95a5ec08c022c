// Package langclient implements out.LangDetectPort against a fastText
// language-identification service's /detect endpoint. Ported from
// transform/fasttext_client.py's detect_language.
package langclient

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

type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func New(baseURL string, httpClient *http.Client) *Client {
	cbSettings := gobreaker.Settings{
		Name:        "fasttext-langdetect",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, cb: gobreaker.NewCircuitBreaker(cbSettings)}
}

type detectRequest struct {
	Text string `json:"text"`
	K    int    `json:"k"`
}

type prediction struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type detectResponse struct {
	Predictions []prediction `json:"predictions"`
}

// Detect returns the top predicted language and its confidence. An
// empty predictions list is not an error; the caller's fallback-to-"en"
// logic handles it the same way a low-confidence result does.
func (c *Client) Detect(ctx context.Context, text string) (string, float64, error) {
	body, err := json.Marshal(detectRequest{Text: text, K: 1})
	if err != nil {
		return "", 0, fmt.Errorf("marshal detect request: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
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
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("language detection service returned %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})
	if err != nil {
		return "", 0, err
	}

	var decoded detectResponse
	if err := json.Unmarshal(result.([]byte), &decoded); err != nil {
		return "", 0, fmt.Errorf("decode detect response: %w", err)
	}
	if len(decoded.Predictions) == 0 {
		return "", 0, nil
	}
	top := decoded.Predictions[0]
	return top.Language, top.Confidence, nil
}

var _ out.LangDetectPort = (*Client)(nil)
