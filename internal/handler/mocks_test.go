package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kakeibo/internal/auth"
	"github.com/hitoshi/kakeibo/internal/expense"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// --- モック定義 ---

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	registerFn func(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	loginFn    func(ctx context.Context, email, password string) (*auth.AuthResult, error)
}

func (m *mockAuthService) Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error) {
	if m.registerFn != nil {
		return m.registerFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) Login(ctx context.Context, email, password string) (*auth.AuthResult, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, email, password)
	}
	return nil, nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	profileFn func(ctx context.Context, userID string) (*model.User, error)
}

func (m *mockUserService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return &model.User{ID: userID, Username: "user", Email: "user@example.com", Role: model.RoleUser}, nil
}

// mockExpenseService はExpenseServiceInterfaceのモック実装。
type mockExpenseService struct {
	createFn     func(ctx context.Context, userID string, in expense.CreateInput) (*model.Expense, error)
	bulkCreateFn func(ctx context.Context, userID, fileName string, r io.Reader) (int, error)
	listFn       func(ctx context.Context, userID string, q expense.ListQuery) (*expense.ListResult, error)
	updateFn     func(ctx context.Context, userID, id string, in expense.UpdateInput) (*model.Expense, error)
	deleteFn     func(ctx context.Context, userID string, ids []string) (int, error)
}

func (m *mockExpenseService) Create(ctx context.Context, userID string, in expense.CreateInput) (*model.Expense, error) {
	if m.createFn != nil {
		return m.createFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockExpenseService) BulkCreate(ctx context.Context, userID, fileName string, r io.Reader) (int, error) {
	if m.bulkCreateFn != nil {
		return m.bulkCreateFn(ctx, userID, fileName, r)
	}
	return 0, nil
}

func (m *mockExpenseService) List(ctx context.Context, userID string, q expense.ListQuery) (*expense.ListResult, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID, q)
	}
	return &expense.ListResult{Expenses: []*model.Expense{}, CurrentPage: q.Page}, nil
}

func (m *mockExpenseService) Update(ctx context.Context, userID, id string, in expense.UpdateInput) (*model.Expense, error) {
	if m.updateFn != nil {
		return m.updateFn(ctx, userID, id, in)
	}
	return nil, nil
}

func (m *mockExpenseService) Delete(ctx context.Context, userID string, ids []string) (int, error) {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, userID, ids)
	}
	return len(ids), nil
}

// --- ヘルパー ---

// withUserID はテスト用にリクエストコンテキストにユーザーIDを注入するヘルパー。
func withUserID(r *http.Request, userID string) *http.Request {
	ctx := middleware.ContextWithUserID(r.Context(), userID)
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

// assertErrorCode はステータスコードとエラーコードを検証するヘルパー。
func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if w.Code != wantStatus {
		t.Errorf("status = %d, want %d (body=%s)", w.Code, wantStatus, w.Body.String())
	}
	body := parseAPIErrorResponse(t, w)
	if body["code"] != wantCode {
		t.Errorf("code = %q, want %q", body["code"], wantCode)
	}
	if body["message"] == "" {
		t.Error("message should not be empty")
	}
}
