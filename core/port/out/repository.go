package out

import (
	"context"

	"github.com/agent-lilith/transform-pipeline/core/domain"
)

// EmailSelector narrows the batch-selection query. A nil AccountID or
// EmailID means "no filter on that field"; Force changes whether rows
// with TransformCompletedAt already set are included.
type EmailSelector struct {
	AccountID *int64
	EmailID   *int64
	Force     bool
	Limit     *int
}

// EmailRepository is the persistence port for Email rows.
//
// ===== Selection =====
// ===== Per-email writes (one transaction each) =====
type EmailRepository interface {
	SelectForTransform(ctx context.Context, sel EmailSelector) ([]int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Email, error)

	// SaveTransformResult persists one email's transform output and its
	// chunk rows as a single transaction: update the email row, delete
	// its existing chunks, insert the new ones. A failed email is never
	// written here or anywhere else, so a later force=false run picks it
	// back up exactly as if it had never been attempted.
	SaveTransformResult(ctx context.Context, email *domain.Email, chunks []domain.EmailChunk) error
}

// AccountLabelRepository resolves provider label identifiers to names
// for the classifier prompt template.
type AccountLabelRepository interface {
	LabelNamesByAccount(ctx context.Context, accountID int64) (map[string]string, error)
}
