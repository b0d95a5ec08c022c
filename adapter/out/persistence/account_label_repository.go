package persistence

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// AccountLabelRepository resolves provider label identifiers to their
// human-readable names, scoped to one account.
type AccountLabelRepository struct {
	db *sqlx.DB
}

func NewAccountLabelRepository(db *sqlx.DB) *AccountLabelRepository {
	return &AccountLabelRepository{db: db}
}

type accountLabelRow struct {
	LabelID   string `db:"label_id"`
	LabelName string `db:"label_name"`
}

func (r *AccountLabelRepository) LabelNamesByAccount(ctx context.Context, accountID int64) (map[string]string, error) {
	var rows []accountLabelRow
	query := `SELECT label_id, label_name FROM account_labels WHERE account_id = $1`
	if err := r.db.SelectContext(ctx, &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("list account labels for account %d: %w", accountID, err)
	}

	names := make(map[string]string, len(rows))
	for _, row := range rows {
		names[row.LabelID] = row.LabelName
	}
	return names, nil
}
