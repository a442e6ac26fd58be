package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/model"
)

// messageResponse はメッセージのみを返すレスポンス。
type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, model.NewInternalError())
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeMissingFields,
		model.ErrCodeInvalidRequest,
		model.ErrCodeInvalidExpenseIDs,
		model.ErrCodeInvalidQuery,
		model.ErrCodeInvalidCSV,
		model.ErrCodeInvalidAmount,
		model.ErrCodeInvalidDate,
		model.ErrCodeInvalidRole,
		model.ErrCodeUploadError,
		model.ErrCodeUserExists,
		model.ErrCodePersistence:
		return http.StatusBadRequest
	case model.ErrCodeAuthFailed, model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeExpenseNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSONBody はリクエストボディをJSONとしてdstに読み込む。
// 金額の形式不正はINVALID_AMOUNT、それ以外の解析失敗はINVALID_REQUESTとして返す。
func decodeJSONBody(r *http.Request, dst any) error {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}
	if errors.Is(err, model.ErrInvalidMoney) {
		return model.NewInvalidAmountError("")
	}
	if errors.Is(err, io.EOF) {
		return model.NewInvalidRequestError("リクエストボディが空です。")
	}
	return model.NewInvalidRequestError("リクエストボディの解析に失敗しました。")
}

// requireUserID は認証済みユーザーIDを取得する。取得できない場合は401を書き込みfalseを返す。
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", false
	}
	return userID, true
}
