package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hitoshi/kakeibo/internal/model"
)

// bearerRealm はWWW-Authenticateヘッダーで示す保護領域名。
const bearerRealm = "kakeibo"

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// messageは常に設定し、空の場合はステータスの説明文で補う。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	if apiErr == nil {
		apiErr = model.NewInternalError()
	}
	body := ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	}
	if body.Message == "" {
		body.Message = http.StatusText(statusCode)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// WriteUnauthorized はベアラー認証の失敗を401で返す。
// トークンが提示されていた場合はinvalid_tokenとして通知する（RFC 6750）。
func WriteUnauthorized(w http.ResponseWriter, tokenPresented bool) {
	challenge := `Bearer realm="` + bearerRealm + `"`
	if tokenPresented {
		challenge += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", challenge)
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
}

// WriteRateLimited は429 Too Many RequestsをRetry-After（秒）付きで返す。
func WriteRateLimited(w http.ResponseWriter, retryAfterSec int) {
	if retryAfterSec < 1 {
		retryAfterSec = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, model.NewRateLimitedError())
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}
