package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/kakeibo/internal/model"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// Profile は認証済みユーザーの情報を返す。
	Profile(ctx context.Context, userID string) (*model.User, error)
}

// UserHandler はユーザー情報のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Profile は認証済みユーザーのプロフィールを返す。
// GET /api/users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	user, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}
