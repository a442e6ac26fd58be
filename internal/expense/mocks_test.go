package expense

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/kakeibo/internal/events"
	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
	"github.com/hitoshi/kakeibo/internal/security"
)

// --- モック定義 ---

type mockExpenseRepo struct {
	createFn      func(ctx context.Context, e *model.Expense) error
	createBatchFn func(ctx context.Context, expenses []*model.Expense) error
	listFn        func(ctx context.Context, userID string, filter model.ExpenseFilter, sort []model.SortField, offset, limit int) ([]*model.Expense, error)
	countFn       func(ctx context.Context, userID string, filter model.ExpenseFilter) (int, error)
	updateOwnedFn func(ctx context.Context, id, userID string, patch model.ExpensePatch) (*model.Expense, error)
	deleteOwnedFn func(ctx context.Context, userID string, ids []string) (int64, error)
}

func (m *mockExpenseRepo) Create(ctx context.Context, e *model.Expense) error {
	if m.createFn != nil {
		return m.createFn(ctx, e)
	}
	return nil
}

func (m *mockExpenseRepo) CreateBatch(ctx context.Context, expenses []*model.Expense) error {
	if m.createBatchFn != nil {
		return m.createBatchFn(ctx, expenses)
	}
	return nil
}

func (m *mockExpenseRepo) List(ctx context.Context, userID string, filter model.ExpenseFilter, sort []model.SortField, offset, limit int) ([]*model.Expense, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, filter, sort, offset, limit)
	}
	return []*model.Expense{}, nil
}

func (m *mockExpenseRepo) Count(ctx context.Context, userID string, filter model.ExpenseFilter) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID, filter)
	}
	return 0, nil
}

func (m *mockExpenseRepo) UpdateOwned(ctx context.Context, id, userID string, patch model.ExpensePatch) (*model.Expense, error) {
	if m.updateOwnedFn != nil {
		return m.updateOwnedFn(ctx, id, userID, patch)
	}
	return nil, nil
}

func (m *mockExpenseRepo) DeleteOwned(ctx context.Context, userID string, ids []string) (int64, error) {
	if m.deleteOwnedFn != nil {
		return m.deleteOwnedFn(ctx, userID, ids)
	}
	return 0, nil
}

type mockImportRepo struct {
	createFn func(ctx context.Context, imp *model.ExpenseImport) error
}

func (m *mockImportRepo) Create(ctx context.Context, imp *model.ExpenseImport) error {
	if m.createFn != nil {
		return m.createFn(ctx, imp)
	}
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.ExpenseEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev events.ExpenseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

type spyMetrics struct {
	created       int
	imported      int
	deleted       int
	purged        int
	importFailure []string
}

func (s *spyMetrics) RecordExpensesCreated(n int)        { s.created += n }
func (s *spyMetrics) RecordExpensesImported(n int)       { s.imported += n }
func (s *spyMetrics) RecordImportFailure(reason string)  { s.importFailure = append(s.importFailure, reason) }
func (s *spyMetrics) RecordExpensesDeleted(n int)        { s.deleted += n }
func (s *spyMetrics) RecordImportLogsPurged(n int)       { s.purged += n }
func (s *spyMetrics) RecordHTTPStatus(int)               {}
func (s *spyMetrics) RecordRequestLatency(time.Duration) {}

// --- compile-time interface checks ---
var _ repository.ExpenseRepository = (*mockExpenseRepo)(nil)
var _ repository.ImportRepository = (*mockImportRepo)(nil)
var _ events.Publisher = (*recordingPublisher)(nil)
var _ metrics.MetricsCollector = (*spyMetrics)(nil)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testDeps struct {
	repo      *mockExpenseRepo
	imports   *mockImportRepo
	publisher *recordingPublisher
	metrics   *spyMetrics
}

func newTestService(deps *testDeps) *Service {
	if deps.repo == nil {
		deps.repo = &mockExpenseRepo{}
	}
	if deps.imports == nil {
		deps.imports = &mockImportRepo{}
	}
	if deps.publisher == nil {
		deps.publisher = &recordingPublisher{}
	}
	if deps.metrics == nil {
		deps.metrics = &spyMetrics{}
	}
	svc := NewService(deps.repo, deps.imports, security.NewTextSanitizer(), deps.publisher, deps.metrics)
	svc.now = func() time.Time { return fixedNow }
	return svc
}

// memExpenseRepo は所有者での絞り込みとページ指定を再現するインメモリ実装。
// 日付の降順のみをサポートする。
type memExpenseRepo struct {
	mockExpenseRepo
	items []*model.Expense
}

func (m *memExpenseRepo) matches(e *model.Expense, userID string, f model.ExpenseFilter) bool {
	if e.UserID != userID {
		return false
	}
	if f.Category != "" && e.Category != f.Category {
		return false
	}
	if f.PaymentMethod != "" && e.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.HasDateRange() && (e.Date.Before(*f.DateFrom) || e.Date.After(*f.DateTo)) {
		return false
	}
	return true
}

func (m *memExpenseRepo) List(_ context.Context, userID string, f model.ExpenseFilter, _ []model.SortField, offset, limit int) ([]*model.Expense, error) {
	out := []*model.Expense{}
	for _, e := range m.items {
		if m.matches(e, userID, f) {
			out = append(out, e)
		}
	}
	if offset >= len(out) {
		return []*model.Expense{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *memExpenseRepo) Count(_ context.Context, userID string, f model.ExpenseFilter) (int, error) {
	n := 0
	for _, e := range m.items {
		if m.matches(e, userID, f) {
			n++
		}
	}
	return n, nil
}

func (m *memExpenseRepo) DeleteOwned(_ context.Context, userID string, ids []string) (int64, error) {
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var kept []*model.Expense
	var deleted int64
	for _, e := range m.items {
		if e.UserID == userID && want[e.ID] {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	m.items = kept
	return deleted, nil
}
