// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/kakeibo/internal/auth"
	"github.com/hitoshi/kakeibo/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, in auth.RegisterInput) (*auth.AuthResult, error)
	Login(ctx context.Context, email, password string) (*auth.AuthResult, error)
}

// AuthHandler はユーザー登録・ログインのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	userResponse
	Token string `json:"token"`
}

// Register は新規ユーザーを登録する。
// POST /api/users/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	result, err := h.service.Register(r.Context(), auth.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAuthResponse(result))
}

// Login はメールアドレスとパスワードで認証し、トークンを発行する。
// POST /api/users/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSONBody(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	if req.Email == "" || req.Password == "" {
		var missing []string
		if req.Email == "" {
			missing = append(missing, "email")
		}
		if req.Password == "" {
			missing = append(missing, "password")
		}
		handleServiceError(w, model.NewMissingFieldsError(missing))
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuthResponse(result))
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     string(u.Role),
	}
}

func toAuthResponse(result *auth.AuthResult) authResponse {
	return authResponse{
		userResponse: toUserResponse(result.User),
		Token:        result.Token,
	}
}
