// Package llmclient implements out.ClassifierPort against a
// vLLM-compatible OpenAI /chat/completions endpoint, plus the sibling
// /tokenize endpoint vLLM exposes for exact prompt sizing. A generic
// OpenAI SDK doesn't model the seed and chat_template_kwargs fields vLLM
// needs, so this talks raw HTTP. Ported from transform/vllm_client.py and
// privacy.py's _classify_with_llm.
package llmclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

// Client talks to a vLLM OpenAI-compatible server over HTTP.
type Client struct {
	chatURL     string
	tokenizeURL string
	httpClient  *http.Client
	cb          *gobreaker.CircuitBreaker
}

// New builds a Client from v1URL, the same VLLM_URL value (ending in
// "/v1") the classifier and embedder configs share. The /tokenize
// endpoint lives one level up, outside /v1, matching _vllm_base_url.
func New(v1URL string, httpClient *http.Client) *Client {
	base := strings.TrimSuffix(strings.TrimRight(v1URL, "/"), "/v1")
	base = strings.TrimRight(base, "/")

	cbSettings := gobreaker.Settings{
		Name:        "vllm-classifier",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Client{
		chatURL:     strings.TrimRight(v1URL, "/") + "/chat/completions",
		tokenizeURL: base + "/tokenize",
		httpClient:  httpClient,
		cb:          gobreaker.NewCircuitBreaker(cbSettings),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatTemplateKwargs struct {
	EnableThinking bool `json:"enable_thinking"`
}

type chatCompletionRequest struct {
	Model              string             `json:"model"`
	Messages           []chatMessage      `json:"messages"`
	Temperature        float64            `json:"temperature"`
	TopP               float64            `json:"top_p"`
	MaxTokens          int                `json:"max_tokens"`
	Seed               *int               `json:"seed,omitempty"`
	ChatTemplateKwargs chatTemplateKwargs `json:"chat_template_kwargs"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *Client) ChatComplete(ctx context.Context, req out.ChatCompletionRequest) (string, error) {
	messages := make([]chatMessage, len(req.Messages))
	for i, m := range req.Messages {
		messages[i] = chatMessage{Role: m.Role, Content: m.Content}
	}
	body, err := json.Marshal(chatCompletionRequest{
		Model:              req.Model,
		Messages:           messages,
		Temperature:        req.Temperature,
		TopP:               1.0,
		MaxTokens:          req.MaxTokens,
		Seed:               req.Seed,
		ChatTemplateKwargs: chatTemplateKwargs{EnableThinking: req.EnableThinking},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat completion request: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.chatURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 300 {
			preview := string(respBody)
			if len(preview) > 500 {
				preview = preview[:500]
			}
			return nil, fmt.Errorf("vllm chat completion returned %d: %s", resp.StatusCode, preview)
		}
		return respBody, nil
	})
	if err != nil {
		return "", err
	}

	var decoded chatCompletionResponse
	if err := json.Unmarshal(result.([]byte), &decoded); err != nil {
		return "", fmt.Errorf("decode chat completion response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("vllm returned no choices for classification")
	}
	return decoded.Choices[0].Message.Content, nil
}

type tokenizeRequest struct {
	Prompt string `json:"prompt"`
}

type tokenizeResponse struct {
	TokenIDs []int `json:"token_ids"`
	Tokens   []int `json:"tokens"`
	IDs      []int `json:"ids"`
}

func (c *Client) TokenCount(ctx context.Context, text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	body, err := json.Marshal(tokenizeRequest{Prompt: text})
	if err != nil {
		return 0, fmt.Errorf("marshal tokenize request: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenizeURL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("vllm tokenize returned %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})
	if err != nil {
		return 0, err
	}
	raw := result.([]byte)

	var flat []int
	if err := json.Unmarshal(raw, &flat); err == nil {
		return len(flat), nil
	}
	var decoded tokenizeResponse
	if err := json.Unmarshal(raw, &decoded); err == nil {
		switch {
		case len(decoded.TokenIDs) > 0:
			return len(decoded.TokenIDs), nil
		case len(decoded.Tokens) > 0:
			return len(decoded.Tokens), nil
		case len(decoded.IDs) > 0:
			return len(decoded.IDs), nil
		}
	}
	return 0, fmt.Errorf("vllm /tokenize returned unexpected response shape")
}

var _ out.ClassifierPort = (*Client)(nil)
