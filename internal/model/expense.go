package model

import "time"

// Expense はユーザーが記録した1件の支出を表す。
// UserIDは常に認証済みの呼び出し元から設定され、クライアントの入力は信用しない。
type Expense struct {
	ID            string
	UserID        string
	Amount        Money
	Description   string
	Category      string
	PaymentMethod string
	Date          time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ExpensePatch は支出の部分更新内容を表す。
// nilフィールドは変更せず、既存の値を維持する。
type ExpensePatch struct {
	Amount        *Money
	Description   *string
	Category      *string
	PaymentMethod *string
	Date          *time.Time
}

// IsEmpty は更新対象のフィールドが1つも指定されていない場合にtrueを返す。
func (p ExpensePatch) IsEmpty() bool {
	return p.Amount == nil &&
		p.Description == nil &&
		p.Category == nil &&
		p.PaymentMethod == nil &&
		p.Date == nil
}

// ExpenseFilter は支出一覧の絞り込み条件を表す。
// 空文字列のフィールドは条件に含めない。
// 日付範囲はDateFromとDateToの両方が指定された場合のみ適用する。
type ExpenseFilter struct {
	Category      string
	PaymentMethod string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// HasDateRange は日付範囲条件が有効かどうかを返す。
func (f ExpenseFilter) HasDateRange() bool {
	return f.DateFrom != nil && f.DateTo != nil
}

// SortField は一覧の並び順の1要素を表す。
// Fieldは date, amount, category, paymentMethod, description, createdAt のいずれか。
type SortField struct {
	Field string
	Desc  bool
}

// DefaultSort は並び順未指定時の既定値（日付の降順）。
var DefaultSort = []SortField{{Field: "date", Desc: true}}

// ExpenseImport はCSV一括登録の履歴を表す。
type ExpenseImport struct {
	ID        string
	UserID    string
	FileName  string
	RowCount  int
	CreatedAt time.Time
}
