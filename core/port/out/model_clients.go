// Package out defines outbound ports (driven ports) the transform pipeline
// needs: the four remote model services and the storage it writes to.
// Adapters under adapter/out implement these against the real wire
// protocols; core/transform only ever talks to the interfaces.
package out

import (
	"context"
	"errors"
)

// ErrPayloadTooLarge is returned by EmbedderPort.Embed when the remote
// service rejects a batch with HTTP 413, so the embedder can fall back
// to sub-batching without inspecting transport details.
var ErrPayloadTooLarge = errors.New("embedding service rejected payload as too large")

// ChatMessage is one turn of a chat-completion request.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatCompletionRequest mirrors the OpenAI-compatible /chat/completions
// body the classifier sends, including the vLLM-specific fields
// (Seed, EnableThinking) that a generic OpenAI SDK doesn't model.
type ChatCompletionRequest struct {
	Model          string
	Messages       []ChatMessage
	Temperature    float64
	MaxTokens      int
	Seed           *int
	EnableThinking bool
}

// ClassifierPort is the outbound port for the privacy-tier LLM.
type ClassifierPort interface {
	ChatComplete(ctx context.Context, req ChatCompletionRequest) (string, error)
	TokenCount(ctx context.Context, text string) (int, error)
}

// EmbedderPort is the outbound port for the embedding service.
type EmbedderPort interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Tokenize(ctx context.Context, text string) ([]int, error)
	TokenCount(ctx context.Context, text string) (int, error)
}

// EntitySpan is one named-entity match the NER service returns.
type EntitySpan struct {
	Label string
	Start int
	End   int
	Text  string
}

// NERPort is the outbound port for the named-entity recognition service
// used to redact PERSON/GPE/LOC/FAC/ORG spans before embedding.
type NERPort interface {
	Entities(ctx context.Context, text, lang string) ([]EntitySpan, error)
}

// LangDetectPort is the outbound port for language identification.
type LangDetectPort interface {
	Detect(ctx context.Context, text string) (lang string, confidence float64, err error)
}
