package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/kakeibo/internal/expense"
	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/report"
)

// multipartMemoryLimit はマルチパート解析時にメモリに保持する上限。
// 超過分は一時ファイルに書き出され、リクエスト終了時に削除する。
const multipartMemoryLimit = 1 << 20

// ExpenseServiceInterface は支出ハンドラーが必要とするサービスインターフェース。
type ExpenseServiceInterface interface {
	Create(ctx context.Context, userID string, in expense.CreateInput) (*model.Expense, error)
	BulkCreate(ctx context.Context, userID, fileName string, r io.Reader) (int, error)
	List(ctx context.Context, userID string, q expense.ListQuery) (*expense.ListResult, error)
	Update(ctx context.Context, userID, id string, in expense.UpdateInput) (*model.Expense, error)
	Delete(ctx context.Context, userID string, ids []string) (int, error)
}

// ExpenseHandlerConfig は支出ハンドラーの設定。
type ExpenseHandlerConfig struct {
	BulkMaxSize    int64          // CSVアップロードのリクエストボディ上限（バイト）
	MaxListLimit   int            // 一覧取得のlimit上限
	ReportLocation *time.Location // 月別集計で使用するタイムゾーン
}

// ExpenseHandler は支出管理のHTTPハンドラー。
type ExpenseHandler struct {
	service ExpenseServiceInterface
	config  ExpenseHandlerConfig
}

// NewExpenseHandler はExpenseHandlerを生成する。
func NewExpenseHandler(service ExpenseServiceInterface, config ExpenseHandlerConfig) *ExpenseHandler {
	if config.ReportLocation == nil {
		config.ReportLocation = time.Local
	}
	return &ExpenseHandler{service: service, config: config}
}

// createExpenseRequest は支出登録リクエストのボディ。
// 所有者はトークンから決定するため、クライアントが送るuserは読み取らない。
type createExpenseRequest struct {
	Amount        *model.Money `json:"amount"`
	Description   string       `json:"description"`
	Category      string       `json:"category"`
	PaymentMethod string       `json:"paymentMethod"`
	Date          string       `json:"date"`
}

// updateExpenseRequest は支出の部分更新リクエストのボディ。
type updateExpenseRequest struct {
	Amount        *model.Money `json:"amount"`
	Description   *string      `json:"description"`
	Category      *string      `json:"category"`
	PaymentMethod *string      `json:"paymentMethod"`
	Date          *string      `json:"date"`
}

// idList は単一の文字列と文字列配列の両方を受け付けるID指定。
type idList []string

// UnmarshalJSON は "id" と ["id1", "id2"] のどちらの形式も受け付ける。
func (l *idList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*l = idList{s}
		return nil
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*l = ids
	return nil
}

type deleteExpensesRequest struct {
	IDs idList `json:"ids"`
}

// expenseResponse は支出のAPIレスポンス。
type expenseResponse struct {
	ID            string      `json:"id"`
	User          string      `json:"user"`
	Amount        model.Money `json:"amount"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	PaymentMethod string      `json:"paymentMethod"`
	Date          time.Time   `json:"date"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// listExpensesResponse は支出一覧のAPIレスポンス。
type listExpensesResponse struct {
	Expenses      []expenseResponse `json:"expenses"`
	TotalExpenses int               `json:"totalExpenses"`
	CurrentPage   int               `json:"currentPage"`
	TotalPages    int               `json:"totalPages"`
}

type bulkCreateResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type deleteExpensesResponse struct {
	Message string `json:"message"`
	Deleted int    `json:"deleted"`
}

// summaryResponse は取得したページの集計結果。
type summaryResponse struct {
	report.Summary
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// CreateExpense は支出を1件登録する。
// POST /api/expenses
func (h *ExpenseHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req createExpenseRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	created, err := h.service.Create(r.Context(), userID, expense.CreateInput{
		Amount:        req.Amount,
		Description:   req.Description,
		Category:      req.Category,
		PaymentMethod: req.PaymentMethod,
		Date:          req.Date,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toExpenseResponse(created))
}

// BulkCreateExpenses はマルチパートの "file" フィールドで受け取ったCSVから支出を一括登録する。
// POST /api/expenses/bulk
func (h *ExpenseHandler) BulkCreateExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if h.config.BulkMaxSize > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.config.BulkMaxSize)
	}

	err := r.ParseMultipartForm(multipartMemoryLimit)
	// 解析の成否に関わらず一時ファイルを削除する
	if r.MultipartForm != nil {
		defer func() {
			if rmErr := r.MultipartForm.RemoveAll(); rmErr != nil {
				slog.Warn("failed to remove multipart temp files", slog.String("error", rmErr.Error()))
			}
		}()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handleServiceError(w, model.NewUploadError("ファイルサイズが上限を超えています"))
			return
		}
		handleServiceError(w, model.NewUploadError("マルチパート形式のリクエストではありません"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		handleServiceError(w, model.NewUploadError("fileフィールドがありません"))
		return
	}
	defer file.Close()

	count, err := h.service.BulkCreate(r.Context(), userID, header.Filename, file)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, bulkCreateResponse{
		Message: "Expenses added successfully",
		Count:   count,
	})
}

// ListExpenses は支出一覧を絞り込み・並び順・ページ指定で返す。
// GET /api/expenses
func (h *ExpenseHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	q, err := expense.ParseListQuery(r.URL.Query(), h.config.MaxListLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), userID, q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := listExpensesResponse{
		Expenses:      make([]expenseResponse, 0, len(result.Expenses)),
		TotalExpenses: result.Total,
		CurrentPage:   result.CurrentPage,
		TotalPages:    result.TotalPages,
	}
	for _, e := range result.Expenses {
		resp.Expenses = append(resp.Expenses, toExpenseResponse(e))
	}

	writeJSON(w, http.StatusOK, resp)
}

// SummarizeExpenses は支出一覧の1ページを取得し、カテゴリ別・月別に集計する。
// ストア側の絞り込みは行わず、category・monthは取得したページに対して適用する。
// GET /api/expenses/summary
func (h *ExpenseHandler) SummarizeExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	values := r.URL.Query()
	category := strings.TrimSpace(values.Get("category"))
	month := strings.TrimSpace(values.Get("month"))
	if month != "" && !strings.EqualFold(month, report.All) {
		if _, ok := report.ParseMonth(month); !ok {
			handleServiceError(w, model.NewInvalidQueryError("month", month))
			return
		}
	}

	pageValues := url.Values{}
	for _, key := range []string{"page", "limit", "sort"} {
		if v, ok := values[key]; ok {
			pageValues[key] = v
		}
	}
	q, err := expense.ParseListQuery(pageValues, h.config.MaxListLimit)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.List(r.Context(), userID, q)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	filtered := report.Filter(result.Expenses, category, month, h.config.ReportLocation)
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:     report.Summarize(filtered, h.config.ReportLocation),
		CurrentPage: result.CurrentPage,
		TotalPages:  result.TotalPages,
	})
}

// UpdateExpense は支出を部分更新する。
// PATCH /api/expenses/{id}
func (h *ExpenseHandler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req updateExpenseRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	updated, err := h.service.Update(r.Context(), userID, id, expense.UpdateInput{
		Amount:        req.Amount,
		Description:   req.Description,
		Category:      req.Category,
		PaymentMethod: req.PaymentMethod,
		Date:          req.Date,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toExpenseResponse(updated))
}

// DeleteExpenses は指定IDの支出を削除する。idsは文字列または文字列の配列。
// DELETE /api/expenses
func (h *ExpenseHandler) DeleteExpenses(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	var req deleteExpensesRequest
	if err := decodeJSONBody(r, &req); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeInvalidRequest {
			err = model.NewInvalidExpenseIDsError()
		}
		handleServiceError(w, err)
		return
	}

	deleted, err := h.service.Delete(r.Context(), userID, req.IDs)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, deleteExpensesResponse{
		Message: "Expenses deleted successfully",
		Deleted: deleted,
	})
}

func toExpenseResponse(e *model.Expense) expenseResponse {
	return expenseResponse{
		ID:            e.ID,
		User:          e.UserID,
		Amount:        e.Amount,
		Description:   e.Description,
		Category:      e.Category,
		PaymentMethod: e.PaymentMethod,
		Date:          e.Date,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}
