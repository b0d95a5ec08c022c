package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/agent-lilith/transform-pipeline/core/chunk"
	"github.com/agent-lilith/transform-pipeline/core/domain"
)

// poolTolerance bounds how far a stored pooled embedding may deviate
// from the weighted mean of its chunks.
const poolTolerance = 1e-5

func validDimension(v []float32) bool {
	return len(v) == domain.EmbeddingDim
}

func isZeroVector(v []float32) bool {
	for _, f := range v {
		if f != 0 {
			return false
		}
	}
	return true
}

// Validate enforces invariants 1-5 of the data model on an assembled,
// not-yet-persisted email: tier validity, the subject-embedding rule,
// body-path exclusivity, chunk dimensionality/contiguity, and pooled
// consistency with the chunk embeddings.
func Validate(e *domain.Email, chunks []domain.EmailChunk) error {
	if !e.PrivacyTier.Valid() {
		return fmt.Errorf("privacy tier %d is not one of {1,2,3}", e.PrivacyTier)
	}

	if strings.TrimSpace(e.Subject) != "" && e.PrivacyTier != domain.PrivacySensitive {
		if !validDimension(e.SubjectEmbedding) {
			return fmt.Errorf("subject embedding has dimension %d, want %d", len(e.SubjectEmbedding), domain.EmbeddingDim)
		}
		if isZeroVector(e.SubjectEmbedding) {
			return fmt.Errorf("subject embedding is all-zero")
		}
	}

	hasBody := len(e.BodyEmbedding) > 0
	hasPooled := len(e.BodyPooledEmbedding) > 0

	switch {
	case hasBody && hasPooled:
		return fmt.Errorf("email has both a full body embedding and a pooled chunk embedding")
	case hasBody:
		if len(chunks) > 0 {
			return fmt.Errorf("full-body email unexpectedly carries %d chunk rows", len(chunks))
		}
		if !validDimension(e.BodyEmbedding) {
			return fmt.Errorf("body embedding has dimension %d, want %d", len(e.BodyEmbedding), domain.EmbeddingDim)
		}
		if isZeroVector(e.BodyEmbedding) {
			return fmt.Errorf("body embedding is all-zero")
		}
		return nil
	case hasPooled:
		if len(chunks) == 0 {
			return fmt.Errorf("pooled embedding present with no chunk rows")
		}
		if !validDimension(e.BodyPooledEmbedding) {
			return fmt.Errorf("pooled embedding has dimension %d, want %d", len(e.BodyPooledEmbedding), domain.EmbeddingDim)
		}
	default:
		if len(chunks) > 0 {
			return fmt.Errorf("empty-body email unexpectedly carries %d chunk rows", len(chunks))
		}
		return nil
	}

	if err := validateChunks(chunks); err != nil {
		return err
	}
	return validatePooledConsistency(e.BodyPooledEmbedding, chunks)
}

func validateChunks(chunks []domain.EmailChunk) error {
	for i, c := range chunks {
		if c.Position != i {
			return fmt.Errorf("chunk positions are not contiguous from 0: got %d at index %d", c.Position, i)
		}
		if !validDimension(c.Embedding) {
			return fmt.Errorf("chunk %d embedding has dimension %d, want %d", c.Position, len(c.Embedding), domain.EmbeddingDim)
		}
		if isZeroVector(c.Embedding) {
			return fmt.Errorf("chunk %d embedding is all-zero", c.Position)
		}
	}
	return nil
}

func validatePooledConsistency(pooled []float32, chunks []domain.EmailChunk) error {
	embeddings := make([][]float32, len(chunks))
	weights := make([]float64, len(chunks))
	for i, c := range chunks {
		embeddings[i] = c.Embedding
		weights[i] = c.Weight
	}
	want := chunk.WeightedMeanEmbedding(embeddings, weights)
	if len(want) != len(pooled) {
		return fmt.Errorf("pooled embedding dimension %d does not match weighted mean dimension %d", len(pooled), len(want))
	}

	var sumSq float64
	for d := range want {
		diff := float64(pooled[d]) - float64(want[d])
		sumSq += diff * diff
	}
	if math.Sqrt(sumSq) >= poolTolerance {
		return fmt.Errorf("pooled embedding deviates from the weighted mean of its chunks")
	}
	return nil
}
