// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hitoshi/kakeibo/internal/auth"
	"github.com/hitoshi/kakeibo/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	// userIDContextKey はリクエストコンテキストにユーザーIDを格納するためのキー。
	userIDContextKey = contextKey("user_id")
	// roleContextKey はリクエストコンテキストにロールを格納するためのキー。
	roleContextKey = contextKey("role")
)

// TokenVerifier はベアラートークンの検証に必要なインターフェース。
type TokenVerifier interface {
	Verify(token string) (*auth.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証するミドルウェアを返す。
// 認証済みユーザーIDとロールをリクエストコンテキストに注入する。
// トークンがない、または無効な場合は401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteUnauthorized(w, false)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				WriteUnauthorized(w, true)
				return
			}

			setLogIdentity(r.Context(), claims.UserID, model.Role(claims.Role))
			ctx := context.WithValue(r.Context(), userIDContextKey, claims.UserID)
			ctx = context.WithValue(ctx, roleContextKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken はAuthorizationヘッダーからトークンを取り出す。スキーム名は大文字小文字を区別しない。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserIDFromContext(ctx context.Context) (string, error) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	if !ok || userID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}

// RoleFromContext はリクエストコンテキストからロールを取得する。
// 現在はリクエストログの出力に使い、管理者向けルートを追加する際の権限判定にも使う想定。
func RoleFromContext(ctx context.Context) model.Role {
	role, _ := ctx.Value(roleContextKey).(string)
	return model.Role(role)
}

// ContextWithUserID はコンテキストにユーザーIDを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}
