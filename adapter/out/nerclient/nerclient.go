// Package nerclient implements out.NERPort against a spaCy-backed named
// entity extraction service's /ner endpoint, normalizing the several
// response shapes the service might use. Ported from
// transform/spacy_client.py's get_entities/_normalize_entity.
package nerclient

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

type Client struct {
	baseURL    string
	httpClient *http.Client
	cb         *gobreaker.CircuitBreaker
}

func New(baseURL string, httpClient *http.Client) *Client {
	cbSettings := gobreaker.Settings{
		Name:        "spacy-ner",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &Client{baseURL: baseURL, httpClient: httpClient, cb: gobreaker.NewCircuitBreaker(cbSettings)}
}

type nerRequest struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// rawEntity accepts every key name the service might use for a span's
// boundaries and label, mirroring _normalize_entity's fallback chain.
type rawEntity struct {
	Start      *int    `json:"start"`
	StartChar  *int    `json:"start_char"`
	FirstIndex *int    `json:"first_index"`
	End        *int    `json:"end"`
	EndChar    *int    `json:"end_char"`
	LastIndex  *int    `json:"last_index"`
	Label      *string `json:"label"`
	Entity     *string `json:"entity"`
	Name       *string `json:"name"`
	Type       *string `json:"type"`
}

func firstInt(candidates ...*int) (int, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return 0, false
}

func firstString(candidates ...*string) (string, bool) {
	for _, c := range candidates {
		if c != nil {
			return *c, true
		}
	}
	return "", false
}

func (r rawEntity) normalize() (out.EntitySpan, bool) {
	start, ok := firstInt(r.Start, r.StartChar, r.FirstIndex)
	if !ok {
		return out.EntitySpan{}, false
	}
	end, ok := firstInt(r.End, r.EndChar, r.LastIndex)
	if !ok {
		return out.EntitySpan{}, false
	}
	label, ok := firstString(r.Label, r.Entity, r.Name, r.Type)
	if !ok {
		return out.EntitySpan{}, false
	}
	return out.EntitySpan{Start: start, End: end, Label: strings.ToUpper(label)}, true
}

// nerResponse covers both a bare list of entities and an object wrapping
// them under one of several keys.
type nerResponse struct {
	Entities    []rawEntity `json:"entities"`
	Extractions []rawEntity `json:"extractions"`
	Ents        []rawEntity `json:"ents"`
}

func (c *Client) Entities(ctx context.Context, text, lang string) ([]out.EntitySpan, error) {
	if lang == "" {
		lang = "en"
	}
	if len(lang) > 10 {
		lang = lang[:10]
	}
	body, err := json.Marshal(nerRequest{Text: text, Lang: lang})
	if err != nil {
		return nil, fmt.Errorf("marshal ner request: %w", err)
	}

	result, err := c.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ner", bytes.NewReader(body))
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
			return nil, fmt.Errorf("ner service returned %d: %s", resp.StatusCode, string(respBody))
		}
		return respBody, nil
	})
	if err != nil {
		return nil, err
	}
	raw := result.([]byte)

	var rawList []rawEntity
	if err := json.Unmarshal(raw, &rawList); err == nil {
		return normalizeAll(rawList), nil
	}

	var wrapped nerResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decode ner response: %w", err)
	}
	switch {
	case len(wrapped.Entities) > 0:
		return normalizeAll(wrapped.Entities), nil
	case len(wrapped.Extractions) > 0:
		return normalizeAll(wrapped.Extractions), nil
	case len(wrapped.Ents) > 0:
		return normalizeAll(wrapped.Ents), nil
	}
	return nil, nil
}

func normalizeAll(raw []rawEntity) []out.EntitySpan {
	var spans []out.EntitySpan
	for _, e := range raw {
		if span, ok := e.normalize(); ok {
			spans = append(spans, span)
		}
	}
	return spans
}

var _ out.NERPort = (*Client)(nil)
