// Package domain holds the entities the transform pipeline reads and writes.
// Nothing here depends on a storage driver or a transport; adapters convert
// to and from these types at the edges.
package domain

import "time"

// EmbeddingDim is the width of every stored vector column. It must match
// the dimension the embedding service actually returns; core/embed
// rejects a vector of any other width, which fails the whole batch's
// embed call (an Embedding-class failure, see core/transform).
const EmbeddingDim = 768

// PrivacyTier is the coarse sensitivity bucket a classifier assigns to an
// email. Lower values are more sensitive; callers that need to redact
// before any external use should treat anything below PrivacyPublic as
// requiring the redacted body, never the raw one.
type PrivacyTier int

const (
	PrivacySensitive PrivacyTier = 1
	PrivacyPersonal  PrivacyTier = 2
	PrivacyPublic    PrivacyTier = 3
)

func (t PrivacyTier) String() string {
	switch t {
	case PrivacySensitive:
		return "sensitive"
	case PrivacyPersonal:
		return "personal"
	case PrivacyPublic:
		return "public"
	default:
		return "unknown"
	}
}

// Valid reports whether t is one of the three defined tiers.
func (t PrivacyTier) Valid() bool {
	switch t {
	case PrivacySensitive, PrivacyPersonal, PrivacyPublic:
		return true
	default:
		return false
	}
}

// Email is one mailbox message, carrying both the pre-transform fields the
// ingest worker populates and the post-transform fields this pipeline
// writes back. Storage-neutral: nothing here assumes Gmail specifically,
// though AccountID/ProviderMessageID line up with how the ingest worker
// keys rows.
type Email struct {
	ID              int64
	AccountID       int64
	ProviderMessageID string
	ThreadID        string
	Subject         string
	FromEmail       string
	FromName        string
	BodyText        string
	Snippet         string
	Labels          []string
	HasAttachments  bool
	SentAt          time.Time
	DeletedAt       *time.Time

	// Fields populated by this pipeline.
	PrivacyTier          PrivacyTier
	BodyRedacted         *string
	SnippetRedacted      *string
	Language             string
	SubjectEmbedding     []float32
	BodyEmbedding        []float32
	BodyPooledEmbedding  []float32
	TransformCompletedAt *time.Time
}

// Sender renders the classifier's "sender" field: "Name <email>" when a
// display name is set, otherwise the bare address.
func (e *Email) Sender() string {
	if e.FromName != "" {
		return e.FromName + " <" + e.FromEmail + ">"
	}
	return e.FromEmail
}

// NeedsTransform reports whether e is eligible for the batch selection
// query: not soft-deleted, has a body, and (absent force) not already
// transformed.
func (e *Email) NeedsTransform(force bool) bool {
	if e.DeletedAt != nil {
		return false
	}
	if e.BodyText == "" {
		return false
	}
	if !force && e.TransformCompletedAt != nil {
		return false
	}
	return true
}

// EmailChunk is one pooled slice of a long email body, with the position
// and pooling weight the chunker assigned it. Chunks are always written
// as a full replace for a given email: delete then insert, never patched
// in place.
type EmailChunk struct {
	EmailID   int64
	Position  int
	Weight    float64
	Text      string
	Embedding []float32
}

// AccountLabel maps a provider-specific label identifier to the
// human-readable name the classifier's prompt template is allowed to
// mention, scoped to one account so two mailboxes never leak each
// other's label vocabulary.
type AccountLabel struct {
	AccountID int64
	LabelID   string
	LabelName string
}
