package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/lib/pq"
)

// expenseColumns はSELECT/RETURNINGで使用する支出テーブルのカラム一覧。
const expenseColumns = `id, user_id, amount_cents, description, category, payment_method, date, created_at, updated_at`

// sortColumns はAPIの並び順フィールド名からカラム名への対応表。
// ここに含まれないフィールドでの並び替えは許可しない。
var sortColumns = map[string]string{
	"date":          "date",
	"amount":        "amount_cents",
	"category":      "category",
	"paymentMethod": "payment_method",
	"description":   "description",
	"createdAt":     "created_at",
}

// IsSortableField は並び順に指定可能なフィールド名かどうかを返す。
func IsSortableField(field string) bool {
	_, ok := sortColumns[field]
	return ok
}

// PostgresExpenseRepo はPostgreSQLを使用した支出リポジトリ。
type PostgresExpenseRepo struct {
	db *sql.DB
}

// NewPostgresExpenseRepo はPostgresExpenseRepoを生成する。
func NewPostgresExpenseRepo(db *sql.DB) *PostgresExpenseRepo {
	return &PostgresExpenseRepo{db: db}
}

// Create は支出を1件作成する。
func (r *PostgresExpenseRepo) Create(ctx context.Context, e *model.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.Amount.Cents, e.Description, e.Category, e.PaymentMethod, e.Date, e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}
	return nil
}

// CreateBatch は複数の支出をCOPYで単一トランザクション内に作成する。
// 途中で失敗した場合はロールバックされ、1件も登録されない。
func (r *PostgresExpenseRepo) CreateBatch(ctx context.Context, expenses []*model.Expense) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("expenses",
		"id", "user_id", "amount_cents", "description", "category", "payment_method", "date", "created_at", "updated_at",
	))
	if err != nil {
		return fmt.Errorf("failed to prepare copy statement: %w", err)
	}

	for _, e := range expenses {
		if _, err := stmt.ExecContext(ctx,
			e.ID, e.UserID, e.Amount.Cents, e.Description, e.Category, e.PaymentMethod, e.Date, e.CreatedAt, e.UpdatedAt,
		); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to buffer expense row: %w", err)
		}
	}

	// 引数なしのExecでバッファ済みの行をフラッシュする
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to copy expenses: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close copy statement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// List はユーザーの支出を条件・並び順・ページ指定で取得する。
func (r *PostgresExpenseRepo) List(
	ctx context.Context,
	userID string,
	filter model.ExpenseFilter,
	sort []model.SortField,
	offset, limit int,
) ([]*model.Expense, error) {
	where, args := buildExpenseWhere(userID, filter)
	orderBy, err := buildExpenseOrderBy(sort)
	if err != nil {
		return nil, err
	}

	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM expenses WHERE %s ORDER BY %s LIMIT $%d OFFSET $%d`,
		expenseColumns, where, orderBy, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	expenses := []*model.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	return expenses, nil
}

// Count は条件に一致するユーザーの支出件数を返す。
func (r *PostgresExpenseRepo) Count(ctx context.Context, userID string, filter model.ExpenseFilter) (int, error) {
	where, args := buildExpenseWhere(userID, filter)

	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM expenses WHERE `+where,
		args...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count expenses: %w", err)
	}
	return count, nil
}

// UpdateOwned はユーザーが所有する支出を部分更新し、更新後の値を返す。
// 該当する支出がない場合（他ユーザーの支出を含む）はnilを返す。
func (r *PostgresExpenseRepo) UpdateOwned(ctx context.Context, id, userID string, patch model.ExpensePatch) (*model.Expense, error) {
	query, args := buildExpenseUpdate(id, userID, patch, time.Now())

	e, err := scanExpense(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	return e, nil
}

// DeleteOwned は指定IDのうちユーザーが所有する支出を削除し、削除件数を返す。
func (r *PostgresExpenseRepo) DeleteOwned(ctx context.Context, userID string, ids []string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE user_id = $1 AND id = ANY($2::uuid[])`,
		userID, pq.Array(ids),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expenses: %w", err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// buildExpenseWhere は所有者条件を先頭に持つWHERE句とプレースホルダー引数を構築する。
func buildExpenseWhere(userID string, filter model.ExpenseFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{userID}

	if filter.Category != "" {
		args = append(args, filter.Category)
		conds = append(conds, fmt.Sprintf("category = $%d", len(args)))
	}
	if filter.PaymentMethod != "" {
		args = append(args, filter.PaymentMethod)
		conds = append(conds, fmt.Sprintf("payment_method = $%d", len(args)))
	}
	if filter.HasDateRange() {
		args = append(args, *filter.DateFrom, *filter.DateTo)
		conds = append(conds, fmt.Sprintf("date BETWEEN $%d AND $%d", len(args)-1, len(args)))
	}

	return strings.Join(conds, " AND "), args
}

// buildExpenseOrderBy はORDER BY句を構築する。
// 同順位の並びを安定させるため、末尾にidを付与する。
func buildExpenseOrderBy(sort []model.SortField) (string, error) {
	if len(sort) == 0 {
		sort = model.DefaultSort
	}

	parts := make([]string, 0, len(sort)+1)
	for _, s := range sort {
		col, ok := sortColumns[s.Field]
		if !ok {
			return "", fmt.Errorf("unsupported sort field: %s", s.Field)
		}
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		parts = append(parts, col+" "+dir)
	}
	parts = append(parts, "id ASC")

	return strings.Join(parts, ", "), nil
}

// buildExpenseUpdate は部分更新用のUPDATE文を構築する。
// nilフィールドはSET句に含めない。updated_atは常に更新する。
func buildExpenseUpdate(id, userID string, patch model.ExpensePatch, now time.Time) (string, []any) {
	var sets []string
	var args []any

	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if patch.Amount != nil {
		set("amount_cents", patch.Amount.Cents)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.PaymentMethod != nil {
		set("payment_method", *patch.PaymentMethod)
	}
	if patch.Date != nil {
		set("date", *patch.Date)
	}
	set("updated_at", now)

	args = append(args, id, userID)
	query := fmt.Sprintf(
		`UPDATE expenses SET %s WHERE id = $%d AND user_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args)-1, len(args), expenseColumns,
	)
	return query, args
}

// rowScanner は*sql.Rowと*sql.Rowsの共通インターフェース。
type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(s rowScanner) (*model.Expense, error) {
	e := &model.Expense{}
	err := s.Scan(
		&e.ID, &e.UserID, &e.Amount.Cents, &e.Description, &e.Category,
		&e.PaymentMethod, &e.Date, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// compile-time interface check
var _ ExpenseRepository = (*PostgresExpenseRepo)(nil)
