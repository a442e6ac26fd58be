package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// serveLogged はhandlerをロギングミドルウェア越しに実行し、出力されたログエントリを返す。
func serveLogged(t *testing.T, handler http.HandlerFunc, req *http.Request) map[string]interface{} {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	NewLoggingMiddleware(logger)(handler).ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse JSON log: %v\nraw: %s", err, buf.String())
	}
	return entry
}

func TestLoggingMiddleware_ListExpenses_LogsRequestFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/expenses?page=2&category=Food", nil)
	req.RemoteAddr = "203.0.113.7:52100"

	entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"expenses":[]}`))
	}, req)

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %v, want http_request", entry["msg"])
	}
	if entry["method"] != "GET" || entry["path"] != "/api/expenses" {
		t.Errorf("method/path = %v %v", entry["method"], entry["path"])
	}
	if entry["status"] != float64(200) {
		t.Errorf("status = %v, want 200", entry["status"])
	}
	if entry["bytes"] != float64(len(`{"expenses":[]}`)) {
		t.Errorf("bytes = %v", entry["bytes"])
	}
	if entry["remote_ip"] != "203.0.113.7" {
		t.Errorf("remote_ip = %v, want 203.0.113.7", entry["remote_ip"])
	}
	if d, ok := entry["duration_ms"].(float64); !ok || d < 0 {
		t.Errorf("duration_ms = %v", entry["duration_ms"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("level = %v, want INFO", entry["level"])
	}
}

func TestLoggingMiddleware_UserIDFromAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodDelete, "/api/expenses", nil)

	// 内側の認証ミドルウェアがsetLogIdentityで通知した値を記録する
	entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {
		setLogIdentity(r.Context(), "user-123", model.RoleAdmin)
		w.WriteHeader(http.StatusOK)
	}, req)

	if entry["user_id"] != "user-123" {
		t.Errorf("user_id = %v, want user-123", entry["user_id"])
	}
	if entry["role"] != "admin" {
		t.Errorf("role = %v, want admin", entry["role"])
	}
}

func TestLoggingMiddleware_UserIDFromContext(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/users/profile", nil)
	ctx := context.WithValue(req.Context(), userIDContextKey, "user-456")
	ctx = context.WithValue(ctx, roleContextKey, "user")
	req = req.WithContext(ctx)

	entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {}, req)

	if entry["user_id"] != "user-456" {
		t.Errorf("user_id = %v, want user-456", entry["user_id"])
	}
	if entry["role"] != "user" {
		t.Errorf("role = %v, want user", entry["role"])
	}
}

func TestLoggingMiddleware_Unauthenticated_OmitsUserID(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/users/login", nil)

	entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}, req)

	if _, ok := entry["user_id"]; ok {
		t.Errorf("user_id should be omitted, got %v", entry["user_id"])
	}
	if _, ok := entry["role"]; ok {
		t.Errorf("role should be omitted, got %v", entry["role"])
	}
}

func TestLoggingMiddleware_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusCreated, "INFO"},
		{http.StatusBadRequest, "WARN"},
		{http.StatusNotFound, "WARN"},
		{http.StatusTooManyRequests, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/expenses/bulk", nil)
			entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}, req)

			if entry["status"] != float64(tt.status) {
				t.Errorf("status = %v, want %d", entry["status"], tt.status)
			}
			if entry["level"] != tt.level {
				t.Errorf("level = %v, want %s", entry["level"], tt.level)
			}
		})
	}
}

func TestLoggingMiddleware_FirstStatusWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/api/expenses/abc", nil)

	entry := serveLogged(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.WriteHeader(http.StatusOK)
	}, req)

	if entry["status"] != float64(http.StatusNotFound) {
		t.Errorf("status = %v, want 404", entry["status"])
	}
}

func TestStatusRecorder_Unwrap(t *testing.T) {
	w := httptest.NewRecorder()
	rec := &statusRecorder{ResponseWriter: w}

	if rec.Unwrap() != w {
		t.Error("Unwrap should return the wrapped ResponseWriter")
	}
}

func TestLoggingMiddleware_RequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/expenses/summary", nil)
	req.Header.Set(chimw.RequestIDHeader, "req-42")

	var entry map[string]interface{}
	chimw.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		entry = serveLogged(t, func(w http.ResponseWriter, r *http.Request) {}, r)
	})).ServeHTTP(httptest.NewRecorder(), req)

	if entry["request_id"] != "req-42" {
		t.Errorf("request_id = %v, want req-42", entry["request_id"])
	}
}
