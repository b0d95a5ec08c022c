// Package embed turns prepared text into vectors through the embedding
// service, handling the truncation and adaptive retry logic a TEI-style
// service's token and payload limits demand. Ported from Embedder in
// core/embeddings.py.
package embed

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/agent-lilith/transform-pipeline/core/domain"
	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

// elementRetryCharThreshold is the length above which a single input
// that still triggers 413 gets halved once before giving up, mirroring
// encode_batch's "only worth shrinking long inputs" rule.
const elementRetryCharThreshold = 256

// truncationRefineIterations bounds the ratio-estimate retry loop in
// truncateToMaxTokens; the tokenizer's chars-per-token ratio is only an
// estimate, so a few shrink passes converge it under budget.
const truncationRefineIterations = 15

// Manager prepares and embeds text against a single capability profile
// (max chars, max tokens, batch size) resolved once at startup.
type Manager struct {
	client    out.EmbedderPort
	maxChars  int
	maxTokens int
	batchSize int
}

func New(client out.EmbedderPort, maxChars, maxTokens, batchSize int) *Manager {
	if batchSize <= 0 {
		batchSize = 1
	}
	return &Manager{client: client, maxChars: maxChars, maxTokens: maxTokens, batchSize: batchSize}
}

// TokenCount satisfies chunk.TokenCounter so the chunker can share the
// same embedding-service connection for its packing decisions.
func (m *Manager) TokenCount(ctx context.Context, text string) (int, error) {
	return m.client.TokenCount(ctx, text)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// truncateToMaxTokens shrinks text until the service's own tokenizer
// reports it fits m.maxTokens, estimating the chars-per-token ratio from
// the first count and refining by 0.9x on each further miss.
func (m *Manager) truncateToMaxTokens(ctx context.Context, text string) (string, error) {
	n, err := m.client.TokenCount(ctx, text)
	if err != nil {
		return "", fmt.Errorf("count tokens: %w", err)
	}
	if n <= m.maxTokens || n == 0 {
		return text, nil
	}

	runes := []rune(text)
	maxLen := len(runes) * m.maxTokens / n
	if maxLen <= 0 {
		maxLen = 1
	}

	candidate := truncateRunes(text, maxLen)
	for i := 0; i < truncationRefineIterations; i++ {
		cn, err := m.client.TokenCount(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("count tokens: %w", err)
		}
		if cn <= m.maxTokens {
			return candidate, nil
		}
		maxLen = int(float64(maxLen) * 0.9)
		if maxLen <= 0 {
			maxLen = 1
		}
		candidate = truncateRunes(text, maxLen)
	}
	return candidate, nil
}

// minCharsToCheckFactor: texts whose rune length is at or below
// maxTokens*minCharsToCheckFactor skip the tokenizer round-trip in
// truncateToMaxTokens entirely; real-world tokenizers average at least
// ~3 chars per token, so a text that short is not expected to exceed the
// token cap.
const minCharsToCheckFactor = 3

func (m *Manager) prepare(ctx context.Context, text string) (string, error) {
	if m.maxChars > 0 {
		text = truncateRunes(text, m.maxChars)
	}
	if m.maxTokens > 0 && len([]rune(text)) > m.maxTokens*minCharsToCheckFactor {
		var err error
		text, err = m.truncateToMaxTokens(ctx, text)
		if err != nil {
			return "", err
		}
	}
	return text, nil
}

func validateDims(embeddings [][]float32) ([][]float32, error) {
	for i, e := range embeddings {
		if len(e) != domain.EmbeddingDim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(e), domain.EmbeddingDim)
		}
	}
	return embeddings, nil
}

// embedSubBatch embeds one batch-sized group of already-prepared texts,
// falling back to element-by-element embedding on a 413, and halving
// any single element that is still too large and long enough to be
// worth shrinking.
func (m *Manager) embedSubBatch(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings, err := m.client.Embed(ctx, texts)
	if err == nil {
		if len(embeddings) != len(texts) {
			return nil, fmt.Errorf("embedding service returned %d vectors for %d inputs", len(embeddings), len(texts))
		}
		return validateDims(embeddings)
	}
	if !errors.Is(err, out.ErrPayloadTooLarge) {
		return nil, err
	}

	if len(texts) > 1 {
		var result [][]float32
		for _, t := range texts {
			embs, err := m.embedSubBatch(ctx, []string{t})
			if err != nil {
				return nil, err
			}
			result = append(result, embs...)
		}
		return result, nil
	}

	text := texts[0]
	if len([]rune(text)) > elementRetryCharThreshold {
		half := truncateRunes(text, len([]rune(text))/2)
		embeddings, err := m.client.Embed(ctx, []string{half})
		if err != nil {
			return nil, fmt.Errorf("embed halved input: %w", err)
		}
		return validateDims(embeddings)
	}
	return nil, fmt.Errorf("embedding service rejected a single %d-char input as too large", len([]rune(text)))
}

// EncodeBatch prepares and embeds texts, preserving input order. It
// sub-batches at m.batchSize and retries adaptively on 413 responses so
// one oversized input doesn't fail the whole batch.
func (m *Manager) EncodeBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	for i, t := range texts {
		p, err := m.prepare(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("prepare text %d: %w", i, err)
		}
		prepared[i] = p
	}

	var result [][]float32
	for start := 0; start < len(prepared); start += m.batchSize {
		end := start + m.batchSize
		if end > len(prepared) {
			end = len(prepared)
		}
		embs, err := m.embedSubBatch(ctx, prepared[start:end])
		if err != nil {
			return nil, err
		}
		result = append(result, embs...)
	}
	return result, nil
}

// EncodeOne embeds a single text, applying the same preparation as
// EncodeBatch.
func (m *Manager) EncodeOne(ctx context.Context, text string) ([]float32, error) {
	embs, err := m.EncodeBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(embs) != 1 {
		return nil, fmt.Errorf("embedding service returned %d vectors for 1 input", len(embs))
	}
	return embs[0], nil
}
