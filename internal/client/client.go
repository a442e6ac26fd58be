// Package client は家計簿APIのGoクライアントを提供する。
// 認証状態はSessionとして明示的に受け渡す。
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/report"
)

// ErrNotAuthenticated は未認証のセッションで認証が必要なAPIを呼び出した場合のエラー。
var ErrNotAuthenticated = errors.New("client: not authenticated")

// APIError はAPIが返したエラーレスポンス。
type APIError struct {
	StatusCode int `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Category   string `json:"category"`
	Action     string `json:"action"`
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d [%s] %s", e.StatusCode, e.Code, e.Message)
}

// Expense はAPIが返す支出。
type Expense struct {
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

// ExpensePage は支出一覧の1ページ。
type ExpensePage struct {
	Expenses      []Expense `json:"expenses"`
	TotalExpenses int       `json:"totalExpenses"`
	CurrentPage   int       `json:"currentPage"`
	TotalPages    int       `json:"totalPages"`
}

// Summary は取得したページの集計結果。
type Summary struct {
	report.Summary
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// RegisterRequest はユーザー登録の入力。Roleは省略できる。
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// NewExpense は支出の登録内容。Dateは "2006-01-02" またはRFC3339形式。
type NewExpense struct {
	Amount        model.Money `json:"amount"`
	Description   string      `json:"description"`
	Category      string      `json:"category"`
	PaymentMethod string      `json:"paymentMethod"`
	Date          string      `json:"date"`
}

// ExpenseUpdate は支出の部分更新の内容。nilのフィールドは送信しない。
type ExpenseUpdate struct {
	Amount        *model.Money `json:"amount,omitempty"`
	Description   *string      `json:"description,omitempty"`
	Category      *string      `json:"category,omitempty"`
	PaymentMethod *string      `json:"paymentMethod,omitempty"`
	Date          *string      `json:"date,omitempty"`
}

// ListOptions は一覧取得の条件。ゼロ値の項目は送信しない。
type ListOptions struct {
	Page          int
	Limit         int
	Category      string
	PaymentMethod string
	DateFrom      string
	DateTo        string
	Sort          string
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	setPositive(v, "page", o.Page)
	setPositive(v, "limit", o.Limit)
	setNonEmpty(v, "category", o.Category)
	setNonEmpty(v, "paymentMethod", o.PaymentMethod)
	setNonEmpty(v, "dateFrom", o.DateFrom)
	setNonEmpty(v, "dateTo", o.DateTo)
	setNonEmpty(v, "sort", o.Sort)
	return v
}

// SummaryOptions は集計の条件。CategoryとMonthは取得したページに対して適用される。
type SummaryOptions struct {
	Page     int
	Limit    int
	Sort     string
	Category string
	Month    string
}

func (o SummaryOptions) values() url.Values {
	v := url.Values{}
	setPositive(v, "page", o.Page)
	setPositive(v, "limit", o.Limit)
	setNonEmpty(v, "sort", o.Sort)
	setNonEmpty(v, "category", o.Category)
	setNonEmpty(v, "month", o.Month)
	return v
}

func setPositive(v url.Values, key string, n int) {
	if n > 0 {
		v.Set(key, strconv.Itoa(n))
	}
}

func setNonEmpty(v url.Values, key, s string) {
	if s != "" {
		v.Set(key, s)
	}
}

type authResponse struct {
	User
	Token string `json:"token"`
}

type countResponse struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
	Deleted int    `json:"deleted"`
}

// Client は家計簿APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string
	session    *Session
}

// NewClient はClientを生成する。baseURLはAPIのルート（例: "http://localhost:8080"）。
func NewClient(baseURL string, httpClient *http.Client, session *Session, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if session == nil {
		session = NewSession(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    session,
	}
}

// Session はクライアントが使用するセッションを返す。
func (c *Client) Session() *Session {
	return c.session
}

// Register はユーザーを登録し、発行されたトークンでセッションを開始する。
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/register", nil, req, &resp, false); err != nil {
		return nil, err
	}
	return c.begin(resp)
}

// Login はログインし、発行されたトークンでセッションを開始する。
func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/users/login", nil, body, &resp, false); err != nil {
		return nil, err
	}
	return c.begin(resp)
}

func (c *Client) begin(resp authResponse) (*User, error) {
	if err := c.session.Begin(resp.Token, resp.User); err != nil {
		return nil, err
	}
	user := resp.User
	return &user, nil
}

// Logout はセッションを破棄する。サーバー側の処理はない。
func (c *Client) Logout() error {
	return c.session.Clear()
}

// Profile は認証済みユーザーの情報を取得する。
func (c *Client) Profile(ctx context.Context) (*User, error) {
	var user User
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/profile", nil, nil, &user, true); err != nil {
		return nil, err
	}
	return &user, nil
}

// FetchExpenses は条件に一致する支出を1ページ取得する。
func (c *Client) FetchExpenses(ctx context.Context, opts ListOptions) (*ExpensePage, error) {
	var page ExpensePage
	if err := c.doJSON(ctx, http.MethodGet, "/api/expenses", opts.values(), nil, &page, true); err != nil {
		return nil, err
	}
	return &page, nil
}

// AddExpense は支出を1件登録する。
func (c *Client) AddExpense(ctx context.Context, e NewExpense) (*Expense, error) {
	var created Expense
	if err := c.doJSON(ctx, http.MethodPost, "/api/expenses", nil, e, &created, true); err != nil {
		return nil, err
	}
	return &created, nil
}

// BulkAddExpenses はCSVファイルを送信して支出を一括登録し、登録件数を返す。
func (c *Client) BulkAddExpenses(ctx context.Context, fileName string, r io.Reader) (int, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return 0, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return 0, fmt.Errorf("failed to read csv: %w", err)
	}
	if err := mw.Close(); err != nil {
		return 0, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	var resp countResponse
	if err := c.do(ctx, http.MethodPost, "/api/expenses/bulk", nil, &buf, mw.FormDataContentType(), &resp, true); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// UpdateExpense は支出を部分更新し、更新後の支出を返す。
func (c *Client) UpdateExpense(ctx context.Context, id string, u ExpenseUpdate) (*Expense, error) {
	var updated Expense
	path := "/api/expenses/" + url.PathEscape(id)
	if err := c.doJSON(ctx, http.MethodPatch, path, nil, u, &updated, true); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteExpenses は指定IDの支出を削除し、削除件数を返す。
func (c *Client) DeleteExpenses(ctx context.Context, ids []string) (int, error) {
	body := map[string][]string{"ids": ids}
	var resp countResponse
	if err := c.doJSON(ctx, http.MethodDelete, "/api/expenses", nil, body, &resp, true); err != nil {
		return 0, err
	}
	return resp.Deleted, nil
}

// Summary は1ページ分の支出をカテゴリ別・月別に集計した結果を取得する。
func (c *Client) Summary(ctx context.Context, opts SummaryOptions) (*Summary, error) {
	var s Summary
	if err := c.doJSON(ctx, http.MethodGet, "/api/expenses/summary", opts.values(), nil, &s, true); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any, authenticated bool) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, query, body, contentType, out, authenticated)
}

// do はリクエストを送信し、2xxならoutへデコード、それ以外は*APIErrorを返す。
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any, authenticated bool) error {
	token := c.session.Token()
	if authenticated && token == "" {
		return ErrNotAuthenticated
	}

	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if authenticated {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("api request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeAPIError はエラーレスポンスを*APIErrorに変換する。
// 本文が統一エラーフォーマットでない場合もステータスコードは保持する。
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err == nil && json.Unmarshal(data, apiErr) == nil && apiErr.Code != "" {
		return apiErr
	}
	apiErr.Code = model.ErrCodeInternal
	apiErr.Message = strings.TrimSpace(string(data))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}
