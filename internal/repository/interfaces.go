// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/kakeibo/internal/model"
)

// ErrDuplicateEmail はメールアドレスの一意制約違反を表す。
var ErrDuplicateEmail = errors.New("email already registered")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。メールアドレスが重複する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, user *model.User) error

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// ExpenseRepository は支出データの永続化インターフェース。
// 参照・更新・削除はすべて所有者（user_id）で絞り込む。
type ExpenseRepository interface {
	// Create は支出を1件作成する。
	Create(ctx context.Context, expense *model.Expense) error

	// CreateBatch は複数の支出を単一トランザクションで作成する。
	// 1件でも失敗した場合は1件も登録されない。
	CreateBatch(ctx context.Context, expenses []*model.Expense) error

	// List はユーザーの支出を条件・並び順・ページ指定で取得する。
	List(ctx context.Context, userID string, filter model.ExpenseFilter, sort []model.SortField, offset, limit int) ([]*model.Expense, error)

	// Count は条件に一致するユーザーの支出件数を返す。ページ指定は考慮しない。
	Count(ctx context.Context, userID string, filter model.ExpenseFilter) (int, error)

	// UpdateOwned はユーザーが所有する支出を部分更新し、更新後の値を返す。
	// 該当する支出がない場合はnilを返す。
	UpdateOwned(ctx context.Context, id, userID string, patch model.ExpensePatch) (*model.Expense, error)

	// DeleteOwned は指定IDのうちユーザーが所有する支出を削除し、削除件数を返す。
	DeleteOwned(ctx context.Context, userID string, ids []string) (int64, error)
}

// ImportRepository はCSV一括登録履歴の永続化インターフェース。
type ImportRepository interface {
	// Create は一括登録履歴を作成する。
	Create(ctx context.Context, imp *model.ExpenseImport) error
}
