// Package auth はユーザー登録・ログイン・ベアラートークンの発行と検証を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
)

// maxPasswordBytes はbcryptが扱えるパスワードの最大バイト数。
const maxPasswordBytes = 72

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	BcryptCost int
}

// RegisterInput はユーザー登録の入力。Roleは省略時に"user"となる。
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     string
}

// AuthResult は登録・ログイン成功時の結果。
type AuthResult struct {
	User  *model.User
	Token string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   *TokenManager
	hasher   *PasswordHasher
	now      func() time.Time
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, tokens *TokenManager, config ServiceConfig) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		hasher:   NewPasswordHasher(config.BcryptCost),
		now:      time.Now,
	}
}

// Register は新規ユーザーを登録し、ベアラートークンを発行する。
func (s *Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	username := strings.TrimSpace(in.Username)
	email := normalizeEmail(in.Email)

	var missing []string
	if username == "" {
		missing = append(missing, "username")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return nil, model.NewMissingFieldsError(missing)
	}
	if len(in.Password) > maxPasswordBytes {
		return nil, model.NewInvalidRequestError(fmt.Sprintf("パスワードは%dバイト以内で入力してください。", maxPasswordBytes))
	}

	role := model.RoleUser
	if r := strings.TrimSpace(in.Role); r != "" {
		role = model.Role(r)
		if !role.Valid() {
			return nil, model.NewInvalidRoleError(r)
		}
	}

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserExistsError()
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// 事前確認と登録の間に同じメールアドレスで登録された場合は一意制約で検出する
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user registered",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return &AuthResult{User: user, Token: token}, nil
}

// Login はメールアドレスとパスワードを照合し、ベアラートークンを発行する。
// 未登録のメールアドレスとパスワード不一致は区別せずAUTH_FAILEDを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewAuthFailedError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	if user == nil {
		return nil, model.NewAuthFailedError()
	}

	ok, err := s.hasher.Compare(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		slog.Warn("login failed", slog.String("user_id", user.ID))
		return nil, model.NewAuthFailedError()
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return nil, err
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return &AuthResult{User: user, Token: token}, nil
}

// Profile は認証済みユーザーの情報を取得する。
func (s *Service) Profile(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
