// Package chunk splits an over-long email body into token-budgeted
// pieces for embedding, and pools their per-chunk embeddings back into
// one body-level vector. Ported from chunk_body/weighted_mean_embedding.
package chunk

import (
	"context"
	"regexp"
	"strings"
)

// TargetTokens is the greedy-packing budget per chunk.
const TargetTokens = 7500

// Chunk is one piece of a body, carrying the pooling weight the first
// chunk gets relative to the rest (topic sentences tend to live there).
type Chunk struct {
	Text     string
	Position int
	Weight   float64
}

// TokenCounter is the subset of the embedder port the chunker needs.
type TokenCounter interface {
	TokenCount(ctx context.Context, text string) (int, error)
}

var (
	crlfRegex      = regexp.MustCompile(`\r\n?`)
	blankLineRegex = regexp.MustCompile(`\n\s*\n`)
	sentenceRegex  = regexp.MustCompile(`(?:[.!?])\s+`)
)

func splitIntoParagraphs(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	normalized := crlfRegex.ReplaceAllString(text, "\n")
	blocks := blankLineRegex.Split(normalized, -1)
	var out []string
	for _, b := range blocks {
		b = strings.TrimSpace(b)
		if b != "" {
			out = append(out, b)
		}
	}
	return out
}

// splitSentences approximates Python's re.split(r"(?<=[.!?])\s+", text):
// Go's RE2 has no lookbehind, so this finds each terminator-plus-space
// boundary and splits right after the terminator, keeping the wording
// on either side identical to the lookbehind version.
func splitSentences(text string) []string {
	var out []string
	last := 0
	locs := sentenceRegex.FindAllStringIndex(text, -1)
	for _, loc := range locs {
		// loc spans "[.!?]\s+"; keep the terminator with the sentence
		// that precedes it by cutting one rune past the terminator.
		cut := loc[0] + 1
		out = append(out, text[last:cut])
		last = loc[1]
	}
	out = append(out, text[last:])
	return out
}

// Body splits body into token-budgeted chunks if it exceeds maxTokens;
// otherwise it returns nil (the caller should embed the whole body
// directly rather than chunk it).
func Body(ctx context.Context, body string, counter TokenCounter, maxTokens, targetChunkTokens int) ([]Chunk, error) {
	if strings.TrimSpace(body) == "" {
		return nil, nil
	}
	total, err := counter.TokenCount(ctx, body)
	if err != nil {
		return nil, err
	}
	if total <= maxTokens {
		return nil, nil
	}

	paragraphs := splitIntoParagraphs(body)
	if len(paragraphs) == 0 {
		paragraphs = nonEmpty(splitSentences(body))
		if len(paragraphs) == 0 {
			paragraphs = []string{body}
		}
	}

	var chunks []Chunk
	var current []string
	currentTokens := 0
	position := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		weight := 1.0
		if position == 0 {
			weight = 2.0
		}
		chunks = append(chunks, Chunk{
			Text:     strings.Join(current, "\n\n"),
			Position: position,
			Weight:   weight,
		})
		position++
		current = nil
		currentTokens = 0
	}

	for _, para := range paragraphs {
		paraTokens, err := counter.TokenCount(ctx, para)
		if err != nil {
			return nil, err
		}

		if paraTokens > targetChunkTokens {
			for _, sent := range nonEmpty(splitSentences(para)) {
				st, err := counter.TokenCount(ctx, sent)
				if err != nil {
					return nil, err
				}
				if currentTokens+st > targetChunkTokens && len(current) > 0 {
					flush()
				}
				current = append(current, sent)
				currentTokens += st
			}
			continue
		}

		if currentTokens+paraTokens > targetChunkTokens && len(current) > 0 {
			flush()
		}
		current = append(current, para)
		currentTokens += paraTokens
	}
	flush()

	return chunks, nil
}

func nonEmpty(parts []string) []string {
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// WeightedMeanEmbedding pools per-chunk embeddings into one vector using
// the given weights. Returns nil if the inputs are empty or mismatched.
func WeightedMeanEmbedding(embeddings [][]float32, weights []float64) []float32 {
	if len(embeddings) == 0 || len(weights) == 0 || len(embeddings) != len(weights) {
		return nil
	}
	dim := len(embeddings[0])
	var totalWeight float64
	for _, w := range weights {
		totalWeight += w
	}
	pooled := make([]float64, dim)
	if totalWeight == 0 {
		result := make([]float32, dim)
		return result
	}
	for i, emb := range embeddings {
		w := weights[i]
		for d := 0; d < dim && d < len(emb); d++ {
			pooled[d] += float64(emb[d]) * w
		}
	}
	result := make([]float32, dim)
	for d := 0; d < dim; d++ {
		result[d] = float32(pooled[d] / totalWeight)
	}
	return result
}
