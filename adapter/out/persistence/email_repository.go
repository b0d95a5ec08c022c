// Package persistence implements the transform pipeline's outbound
// storage ports against PostgreSQL, using sqlx over the pgx/v5/stdlib
// driver so the rest of the codebase only ever talks to one connection
// type, and pgvector-go for the vector columns in place of the hand-rolled
// string formatter worker_classification_adapter.go used to build them.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/agent-lilith/transform-pipeline/core/domain"
	out "github.com/agent-lilith/transform-pipeline/core/port/out"
)

// EmailRepository implements out.EmailRepository against the emails and
// email_chunks tables.
type EmailRepository struct {
	db *sqlx.DB
}

func NewEmailRepository(db *sqlx.DB) *EmailRepository {
	return &EmailRepository{db: db}
}

// buildSelectQuery renders the batch-selection query from sel: always
// excludes soft-deleted and empty-body rows, adds an account/email
// filter when given, and skips already-transformed rows unless Force.
// Kept separate from SelectForTransform so the condition logic can be
// unit-tested without a database.
func buildSelectQuery(sel out.EmailSelector) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions = append(conditions, "deleted_at IS NULL", "body_text <> ''")
	if sel.AccountID != nil {
		conditions = append(conditions, "account_id = "+arg(*sel.AccountID))
	}
	if sel.EmailID != nil {
		conditions = append(conditions, "id = "+arg(*sel.EmailID))
	}
	if !sel.Force {
		conditions = append(conditions, "transform_completed_at IS NULL")
	}

	query := "SELECT id FROM emails WHERE " + strings.Join(conditions, " AND ") + " ORDER BY id"
	if sel.Limit != nil {
		query += " LIMIT " + arg(*sel.Limit)
	}
	return query, args
}

// SelectForTransform runs buildSelectQuery's result and returns the
// matching email ids.
func (r *EmailRepository) SelectForTransform(ctx context.Context, sel out.EmailSelector) ([]int64, error) {
	query, args := buildSelectQuery(sel)

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select emails for transform: %w", err)
	}
	return ids, nil
}

type emailRow struct {
	ID                   int64            `db:"id"`
	AccountID            int64            `db:"account_id"`
	ProviderMessageID    string           `db:"provider_message_id"`
	ThreadID             string           `db:"thread_id"`
	Subject              string           `db:"subject"`
	FromEmail            string           `db:"from_email"`
	FromName             sql.NullString   `db:"from_name"`
	BodyText             string           `db:"body_text"`
	Snippet              string           `db:"snippet"`
	Labels               pq.StringArray   `db:"labels"`
	HasAttachments       bool             `db:"has_attachments"`
	SentAt               sql.NullTime     `db:"sent_at"`
	DeletedAt            sql.NullTime     `db:"deleted_at"`
	PrivacyTier          sql.NullInt32    `db:"privacy_tier"`
	BodyRedacted         sql.NullString   `db:"body_redacted"`
	SnippetRedacted      sql.NullString   `db:"snippet_redacted"`
	Language             sql.NullString   `db:"language"`
	SubjectEmbedding     *pgvector.Vector `db:"subject_embedding"`
	BodyEmbedding        *pgvector.Vector `db:"body_embedding"`
	BodyPooledEmbedding  *pgvector.Vector `db:"body_pooled_embedding"`
	TransformCompletedAt sql.NullTime     `db:"transform_completed_at"`
}

func (row emailRow) toDomain() *domain.Email {
	e := &domain.Email{
		ID:                row.ID,
		AccountID:         row.AccountID,
		ProviderMessageID: row.ProviderMessageID,
		ThreadID:          row.ThreadID,
		Subject:           row.Subject,
		FromEmail:         row.FromEmail,
		BodyText:          row.BodyText,
		Snippet:           row.Snippet,
		Labels:            []string(row.Labels),
		HasAttachments:    row.HasAttachments,
		PrivacyTier:       domain.PrivacyTier(row.PrivacyTier.Int32),
	}
	if row.SentAt.Valid {
		e.SentAt = row.SentAt.Time
	}
	if row.DeletedAt.Valid {
		t := row.DeletedAt.Time
		e.DeletedAt = &t
	}
	if row.FromName.Valid {
		e.FromName = row.FromName.String
	}
	if row.BodyRedacted.Valid {
		e.BodyRedacted = &row.BodyRedacted.String
	}
	if row.SnippetRedacted.Valid {
		e.SnippetRedacted = &row.SnippetRedacted.String
	}
	if row.Language.Valid {
		e.Language = row.Language.String
	}
	if row.SubjectEmbedding != nil {
		e.SubjectEmbedding = row.SubjectEmbedding.Slice()
	}
	if row.BodyEmbedding != nil {
		e.BodyEmbedding = row.BodyEmbedding.Slice()
	}
	if row.BodyPooledEmbedding != nil {
		e.BodyPooledEmbedding = row.BodyPooledEmbedding.Slice()
	}
	if row.TransformCompletedAt.Valid {
		t := row.TransformCompletedAt.Time
		e.TransformCompletedAt = &t
	}
	return e
}

func (r *EmailRepository) GetByID(ctx context.Context, id int64) (*domain.Email, error) {
	var row emailRow
	query := `SELECT id, account_id, provider_message_id, thread_id, subject, from_email, from_name,
		body_text, snippet, labels, has_attachments, sent_at, deleted_at, privacy_tier, body_redacted,
		snippet_redacted, language, subject_embedding, body_embedding, body_pooled_embedding,
		transform_completed_at
		FROM emails WHERE id = $1`

	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get email %d: %w", id, err)
	}
	return row.toDomain(), nil
}

func nullableVector(v []float32) *pgvector.Vector {
	if v == nil {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

// SaveTransformResult updates one email's transform output and replaces
// its chunk rows inside a single transaction: update, delete existing
// chunks, insert the new ones.
func (r *EmailRepository) SaveTransformResult(ctx context.Context, email *domain.Email, chunks []domain.EmailChunk) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var bodyRedacted, snippetRedacted sql.NullString
	if email.BodyRedacted != nil {
		bodyRedacted = sql.NullString{String: *email.BodyRedacted, Valid: true}
	}
	if email.SnippetRedacted != nil {
		snippetRedacted = sql.NullString{String: *email.SnippetRedacted, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE emails SET
			privacy_tier = $2,
			body_redacted = $3,
			snippet_redacted = $4,
			language = $5,
			subject_embedding = $6,
			body_embedding = $7,
			body_pooled_embedding = $8,
			transform_completed_at = NOW()
		WHERE id = $1`,
		email.ID, int32(email.PrivacyTier), bodyRedacted, snippetRedacted, email.Language,
		nullableVector(email.SubjectEmbedding), nullableVector(email.BodyEmbedding), nullableVector(email.BodyPooledEmbedding),
	)
	if err != nil {
		return fmt.Errorf("update email %d: %w", email.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM email_chunks WHERE email_id = $1`, email.ID); err != nil {
		return fmt.Errorf("delete chunks for email %d: %w", email.ID, err)
	}

	for _, c := range chunks {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO email_chunks (email_id, position, weight, text, embedding)
			VALUES ($1, $2, $3, $4, $5)`,
			c.EmailID, c.Position, c.Weight, c.Text, nullableVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d for email %d: %w", c.Position, email.ID, err)
		}
	}

	return tx.Commit()
}
