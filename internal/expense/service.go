// Package expense は支出の登録・一覧・更新・削除とCSV一括登録を提供する。
// すべての操作は認証済みユーザー（所有者）の支出に限定される。
package expense

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kakeibo/internal/events"
	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
	"github.com/hitoshi/kakeibo/internal/security"
)

// Service は支出に関するビジネスロジックを提供する。
type Service struct {
	expenses  repository.ExpenseRepository
	imports   repository.ImportRepository
	sanitizer security.TextSanitizerService
	publisher events.Publisher
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	expenses repository.ExpenseRepository,
	imports repository.ImportRepository,
	sanitizer security.TextSanitizerService,
	publisher events.Publisher,
	collector metrics.MetricsCollector,
) *Service {
	return &Service{
		expenses:  expenses,
		imports:   imports,
		sanitizer: sanitizer,
		publisher: publisher,
		metrics:   collector,
		now:       time.Now,
	}
}

// CreateInput は支出の個別登録の入力。
// Amountがnil、または文字列項目が空の場合は未入力として扱う。
type CreateInput struct {
	Amount        *model.Money
	Description   string
	Category      string
	PaymentMethod string
	Date          string
}

// UpdateInput は支出の部分更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Amount        *model.Money
	Description   *string
	Category      *string
	PaymentMethod *string
	Date          *string
}

// ListResult は一覧取得の結果。
type ListResult struct {
	Expenses    []*model.Expense
	Total       int
	CurrentPage int
	TotalPages  int
}

// Create は支出を1件登録する。所有者は常にuserIDとなる。
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*model.Expense, error) {
	description := s.sanitizer.Sanitize(in.Description)
	category := s.sanitizer.Sanitize(in.Category)
	paymentMethod := s.sanitizer.Sanitize(in.PaymentMethod)
	dateStr := strings.TrimSpace(in.Date)

	var missing []string
	if in.Amount == nil {
		missing = append(missing, "amount")
	}
	if description == "" {
		missing = append(missing, "description")
	}
	if category == "" {
		missing = append(missing, "category")
	}
	if paymentMethod == "" {
		missing = append(missing, "paymentMethod")
	}
	if dateStr == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing)
	}

	if in.Amount.Cents < 0 {
		return nil, model.NewInvalidAmountError(in.Amount.String())
	}
	date, err := model.ParseDate(dateStr)
	if err != nil {
		return nil, model.NewInvalidDateError(dateStr)
	}

	now := s.now()
	e := &model.Expense{
		ID:            uuid.New().String(),
		UserID:        userID,
		Amount:        *in.Amount,
		Description:   description,
		Category:      category,
		PaymentMethod: paymentMethod,
		Date:          date,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.expenses.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("failed to create expense: %w", err)
	}

	s.metrics.RecordExpensesCreated(1)
	s.publish(ctx, events.TypeExpenseCreated, userID, []string{e.ID})

	return e, nil
}

// List はユーザーの支出を絞り込み・並び順・ページ指定で取得する。
// ページが範囲外の場合は空の一覧を返す。
func (s *Service) List(ctx context.Context, userID string, q ListQuery) (*ListResult, error) {
	expenses := []*model.Expense{}
	if offset, ok := pageOffset(q.Page, q.Limit); ok {
		var err error
		expenses, err = s.expenses.List(ctx, userID, q.Filter, q.Sort, offset, q.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to list expenses: %w", err)
		}
	}
	total, err := s.expenses.Count(ctx, userID, q.Filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count expenses: %w", err)
	}

	return &ListResult{
		Expenses:    expenses,
		Total:       total,
		CurrentPage: q.Page,
		TotalPages:  totalPages(total, q.Limit),
	}, nil
}

// pageOffset はページ番号からOFFSETを計算する。
// intに収まらないほど大きなページは、どの件数でも範囲外なのでfalseを返す。
func pageOffset(page, limit int) (int, bool) {
	if page < 1 || limit < 1 {
		return 0, false
	}
	if page-1 > math.MaxInt/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}

// Update はユーザーが所有する支出を部分更新する。
// IDの形式不正・存在しない・他ユーザーの支出はいずれもEXPENSE_NOT_FOUNDとなる。
func (s *Service) Update(ctx context.Context, userID, id string, in UpdateInput) (*model.Expense, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.NewExpenseNotFoundError()
	}

	patch, err := s.buildPatch(in)
	if err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return nil, model.NewInvalidRequestError("更新する項目を1つ以上指定してください。")
	}

	updated, err := s.expenses.UpdateOwned(ctx, id, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	if updated == nil {
		return nil, model.NewExpenseNotFoundError()
	}

	s.publish(ctx, events.TypeExpenseUpdated, userID, []string{updated.ID})
	return updated, nil
}

// Delete は指定IDのうちユーザーが所有する支出を削除し、削除件数を返す。
// 1件も削除されなかった場合はEXPENSE_NOT_FOUNDとなる。
func (s *Service) Delete(ctx context.Context, userID string, ids []string) (int, error) {
	normalized, err := normalizeIDs(ids)
	if err != nil {
		return 0, err
	}

	deleted, err := s.expenses.DeleteOwned(ctx, userID, normalized)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expenses: %w", err)
	}
	if deleted == 0 {
		return 0, model.NewExpenseNotFoundError()
	}

	s.metrics.RecordExpensesDeleted(int(deleted))
	ev := events.NewExpenseEvent(events.TypeExpensesDeleted, userID, normalized, s.now())
	ev.Count = int(deleted)
	s.publishEvent(ctx, ev)

	slog.Info("expenses deleted",
		slog.String("user_id", userID),
		slog.Int("requested", len(normalized)),
		slog.Int64("deleted", deleted),
	)
	return int(deleted), nil
}

// buildPatch は更新入力を検証し、サニタイズ済みのExpensePatchに変換する。
// 文字列項目が空になる更新は許可しない。
func (s *Service) buildPatch(in UpdateInput) (model.ExpensePatch, error) {
	var patch model.ExpensePatch

	if in.Amount != nil {
		if in.Amount.Cents < 0 {
			return patch, model.NewInvalidAmountError(in.Amount.String())
		}
		amount := *in.Amount
		patch.Amount = &amount
	}

	var empty []string
	text := func(name string, v *string) *string {
		if v == nil {
			return nil
		}
		cleaned := s.sanitizer.Sanitize(*v)
		if cleaned == "" {
			empty = append(empty, name)
		}
		return &cleaned
	}
	patch.Description = text("description", in.Description)
	patch.Category = text("category", in.Category)
	patch.PaymentMethod = text("paymentMethod", in.PaymentMethod)
	if len(empty) > 0 {
		return patch, model.NewMissingFieldsError(empty)
	}

	if in.Date != nil {
		date, err := model.ParseDate(*in.Date)
		if err != nil {
			return patch, model.NewInvalidDateError(*in.Date)
		}
		patch.Date = &date
	}

	return patch, nil
}

// normalizeIDs は削除対象IDの重複と前後の空白を取り除き、UUID形式であることを検証する。
func normalizeIDs(ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.TrimSpace(raw)
		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, model.NewInvalidExpenseIDsError()
		}
		canonical := parsed.String()
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, canonical)
	}
	if len(out) == 0 {
		return nil, model.NewInvalidExpenseIDsError()
	}
	return out, nil
}

func totalPages(total, limit int) int {
	if limit <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func (s *Service) publish(ctx context.Context, eventType, userID string, ids []string) {
	s.publishEvent(ctx, events.NewExpenseEvent(eventType, userID, ids, s.now()))
}

// publishEvent はイベントを送信する。送信失敗はログに残し、呼び出し元には返さない。
func (s *Service) publishEvent(ctx context.Context, ev events.ExpenseEvent) {
	if err := s.publisher.Publish(ctx, ev); err != nil {
		slog.Warn("failed to publish expense event",
			slog.String("type", ev.Type),
			slog.String("user_id", ev.UserID),
			slog.String("error", err.Error()),
		)
	}
}
