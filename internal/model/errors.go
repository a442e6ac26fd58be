// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, expense, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeMissingFields     = "MISSING_FIELDS"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeInvalidExpenseIDs = "INVALID_EXPENSE_IDS"
	ErrCodeInvalidQuery      = "INVALID_QUERY"
	ErrCodeInvalidCSV        = "INVALID_CSV"
	ErrCodeInvalidAmount     = "INVALID_AMOUNT"
	ErrCodeInvalidDate       = "INVALID_DATE"
	ErrCodeInvalidRole       = "INVALID_ROLE"
	ErrCodeUploadError       = "UPLOAD_ERROR"
	ErrCodeUserExists        = "USER_EXISTS"
	ErrCodeAuthFailed        = "AUTH_FAILED"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeExpenseNotFound   = "EXPENSE_NOT_FOUND"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodePersistence       = "PERSISTENCE_ERROR"
	ErrCodeIO                = "IO_ERROR"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewMissingFieldsError は必須項目の欠落エラーを生成する。
func NewMissingFieldsError(fields []string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingFields,
		Message:  fmt.Sprintf("必須項目が入力されていません: %v", fields),
		Category: "validation",
		Action:   "すべての必須項目を入力してください。",
	}
}

// NewInvalidRequestError はリクエスト内容が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  reason,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewInvalidExpenseIDsError は支出IDの指定が不正な場合のエラーを生成する。
func NewInvalidExpenseIDsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidExpenseIDs,
		Message:  "有効な支出IDを指定してください。",
		Category: "validation",
		Action:   "削除対象の支出IDを1件以上、正しい形式で指定してください。",
	}
}

// NewInvalidQueryError は一覧取得のクエリパラメータが不正な場合のエラーを生成する。
func NewInvalidQueryError(param, value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidQuery,
		Message:  fmt.Sprintf("無効なクエリパラメータです: %s=%s", param, value),
		Category: "validation",
		Action:   "クエリパラメータの値を確認してください。",
	}
}

// NewInvalidCSVError はCSVの内容が不正な場合のエラーを生成する。
// lineが0の場合は行番号を含めない。
func NewInvalidCSVError(line int, reason string) *APIError {
	msg := fmt.Sprintf("CSVファイルの内容が不正です: %s", reason)
	if line > 0 {
		msg = fmt.Sprintf("CSVファイルの%d行目が不正です: %s", line, reason)
	}
	return &APIError{
		Code:     ErrCodeInvalidCSV,
		Message:  msg,
		Category: "validation",
		Action:   "ヘッダー行（amount, description, category, paymentMethod, date）とデータ行を確認してください。",
	}
}

// NewInvalidAmountError は金額が不正な場合のエラーを生成する。
func NewInvalidAmountError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmount,
		Message:  fmt.Sprintf("無効な金額です: %s", value),
		Category: "validation",
		Action:   "0以上の数値（小数点以下2桁まで）を入力してください。",
	}
}

// NewInvalidDateError は日付が不正な場合のエラーを生成する。
func NewInvalidDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidDate,
		Message:  fmt.Sprintf("無効な日付です: %s", value),
		Category: "validation",
		Action:   "YYYY-MM-DD またはRFC3339形式で日付を入力してください。",
	}
}

// NewInvalidRoleError はロールが不正な場合のエラーを生成する。
func NewInvalidRoleError(role string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRole,
		Message:  fmt.Sprintf("無効なロールです: %s", role),
		Category: "validation",
		Action:   "ロールには user または admin を指定してください。",
	}
}

// NewUploadError はCSVファイルがアップロードされていない場合のエラーを生成する。
func NewUploadError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeUploadError,
		Message:  fmt.Sprintf("CSVファイルを受け取れませんでした: %s", reason),
		Category: "validation",
		Action:   "フォームフィールド file にCSVファイルを添付してください。",
	}
}

// NewUserExistsError は登録済みメールアドレスでの登録エラーを生成する。
func NewUserExistsError() *APIError {
	return &APIError{
		Code:     ErrCodeUserExists,
		Message:  "このメールアドレスのユーザーは既に存在します。",
		Category: "auth",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewAuthFailedError はログイン失敗エラーを生成する。
// メールアドレスの有無を推測されないよう、原因によらず同一のメッセージを返す。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "メールアドレスまたはパスワードが正しくありません。",
		Category: "auth",
		Action:   "入力内容を確認して再度ログインしてください。",
	}
}

// NewUnauthorizedError は認証情報が無効な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewExpenseNotFoundError は支出が見つからない場合のエラーを生成する。
func NewExpenseNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeExpenseNotFound,
		Message:  "指定された支出が見つかりません。",
		Category: "expense",
		Action:   "支出IDを確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewPersistenceError はデータベースへの書き込みが拒否された場合のエラーを生成する。
func NewPersistenceError() *APIError {
	return &APIError{
		Code:     ErrCodePersistence,
		Message:  "支出の一括登録に失敗しました。",
		Category: "expense",
		Action:   "CSVの内容を確認してから再度お試しください。",
	}
}

// NewIOError はアップロードファイルの読み込みに失敗した場合のエラーを生成する。
func NewIOError() *APIError {
	return &APIError{
		Code:     ErrCodeIO,
		Message:  "ファイルの処理中にエラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部サーバーエラーを生成する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
