// Package capabilities loads the one-shot probe document a separate tool
// writes (capabilities.json) and enforces the transform path's stricter
// requirement that every field it needs is actually present — no silent
// fallback to a guessed model ID or context length once real work starts.
package capabilities

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"

	"github.com/agent-lilith/transform-pipeline/core/domain"
)

// Defaults for non-transform callers only. The transform path never uses
// these; RequireForTransform fails instead of falling back.
const (
	DefaultEmbedMaxTokens    = 8192
	DefaultEmbedMaxChars     = 32768
	DefaultClassifyMaxChars  = 6000
)

type Registry struct {
	doc domain.CapabilityDocument
}

// Load reads and decodes the capability document at path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read capabilities file %q: %w", path, err)
	}
	var doc domain.CapabilityDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse capabilities file %q: %w", path, err)
	}
	return &Registry{doc: doc}, nil
}

// RequireForTransform fails fast, naming every missing field, if the
// document lacks what a transform run needs. There is no fallback here:
// the transform path requires explicit values (unlike the original's
// get_vllm_model_id(), which fell back to a configured default model —
// a behavior this registry deliberately does not carry, see DESIGN.md).
func (r *Registry) RequireForTransform() error {
	var missing []string

	if !r.doc.Embedding.Available || r.doc.Embedding.MaxTokens <= 0 {
		missing = append(missing, "embedding.max_tokens")
	}
	if r.doc.Embedding.MaxChars <= 0 {
		missing = append(missing, "embedding.max_chars")
	}
	if r.doc.Embedding.Dimension != 0 && r.doc.Embedding.Dimension != domain.EmbeddingDim {
		missing = append(missing, fmt.Sprintf("embedding.dimension (got %d, want %d)", r.doc.Embedding.Dimension, domain.EmbeddingDim))
	}
	if r.doc.VLLM.ModelID == "" {
		missing = append(missing, "vllm.model_id")
	}
	if r.doc.VLLM.MaxModelLen <= 0 {
		missing = append(missing, "vllm.max_model_len")
	}
	if !r.doc.SpacyAPI.Available {
		missing = append(missing, "spacy_api.available")
	}
	if !r.doc.FasttextLangdetect.Available {
		missing = append(missing, "fasttext_langdetect.available")
	}

	if len(missing) > 0 {
		return fmt.Errorf("capability document missing required fields for transform: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (r *Registry) EmbedMaxTokens() int {
	if r.doc.Embedding.MaxTokens > 0 {
		return r.doc.Embedding.MaxTokens
	}
	return DefaultEmbedMaxTokens
}

func (r *Registry) EmbedMaxChars() int {
	if r.doc.Embedding.MaxChars > 0 {
		return r.doc.Embedding.MaxChars
	}
	return DefaultEmbedMaxChars
}

func (r *Registry) ClassifyMaxChars() int {
	if r.doc.ClassifyBodyMaxChars > 0 {
		return r.doc.ClassifyBodyMaxChars
	}
	return DefaultClassifyMaxChars
}

func (r *Registry) ClassifyMaxModelLen() (int, error) {
	if r.doc.VLLM.MaxModelLen <= 0 {
		return 0, fmt.Errorf("vllm.max_model_len not set in capability document")
	}
	return r.doc.VLLM.MaxModelLen, nil
}

func (r *Registry) VLLMModelID() (string, error) {
	if r.doc.VLLM.ModelID == "" {
		return "", fmt.Errorf("vllm.model_id not set in capability document")
	}
	return r.doc.VLLM.ModelID, nil
}
