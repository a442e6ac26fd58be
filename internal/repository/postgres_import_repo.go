package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/kakeibo/internal/model"
)

// PostgresImportRepo はPostgreSQLを使用したCSV一括登録履歴リポジトリ。
type PostgresImportRepo struct {
	db *sql.DB
}

// NewPostgresImportRepo はPostgresImportRepoを生成する。
func NewPostgresImportRepo(db *sql.DB) *PostgresImportRepo {
	return &PostgresImportRepo{db: db}
}

// Create は一括登録履歴を作成する。
func (r *PostgresImportRepo) Create(ctx context.Context, imp *model.ExpenseImport) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_imports (id, user_id, file_name, row_count, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		imp.ID, imp.UserID, imp.FileName, imp.RowCount, imp.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense import: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ImportRepository = (*PostgresImportRepo)(nil)
