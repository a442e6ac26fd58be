package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// User は認証済みユーザーの公開情報。
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// SessionState は永続化されるセッションの内容。
type SessionState struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// SessionStore はセッションの永続化先のインターフェース。
type SessionStore interface {
	// Load は保存済みのセッションを返す。保存されていない場合はnilを返す。
	Load() (*SessionState, error)
	Save(state SessionState) error
	// Delete は保存済みのセッションを削除する。保存されていなくてもエラーにしない。
	Delete() error
}

// Session はクライアントの認証状態を保持する。
//
// Hydrateで永続化先から復元し、Beginでログイン・登録の結果を保存し、
// Clearで破棄する。Clientには参照で渡し、複数のClientで共有できる。
type Session struct {
	store SessionStore

	mu    sync.RWMutex
	state *SessionState
}

// NewSession はSessionを生成する。storeがnilの場合はメモリ上のみで保持する。
func NewSession(store SessionStore) *Session {
	return &Session{store: store}
}

// Hydrate は永続化先からセッションを復元する。
// 保存されたセッションがなければ未認証のままとなる。
func (s *Session) Hydrate() error {
	if s.store == nil {
		return nil
	}
	state, err := s.store.Load()
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if state == nil || state.Token == "" {
		s.state = nil
		return nil
	}
	s.state = state
	return nil
}

// Begin はトークンとユーザー情報を保持し、永続化する。
func (s *Session) Begin(token string, user User) error {
	if token == "" {
		return errors.New("session token is empty")
	}
	state := &SessionState{Token: token, User: user}

	if s.store != nil {
		if err := s.store.Save(*state); err != nil {
			return fmt.Errorf("failed to save session: %w", err)
		}
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	return nil
}

// Clear はセッションを破棄し、永続化された内容も削除する。
func (s *Session) Clear() error {
	s.mu.Lock()
	s.state = nil
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.Delete(); err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
	}
	return nil
}

// Token はベアラートークンを返す。未認証の場合は空文字列。
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return ""
	}
	return s.state.Token
}

// User は認証済みユーザーを返す。未認証の場合はfalseを返す。
func (s *Session) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return User{}, false
	}
	return s.state.User, true
}

// Authenticated はトークンを保持しているかどうかを返す。
func (s *Session) Authenticated() bool {
	return s.Token() != ""
}

// FileSessionStore はセッションをJSONファイルに保存する。
type FileSessionStore struct {
	Path string
}

// NewFileSessionStore はFileSessionStoreを生成する。
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{Path: path}
}

// Load はファイルからセッションを読み込む。ファイルがなければnilを返す。
func (f *FileSessionStore) Load() (*SessionState, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session file: %w", err)
	}
	return &state, nil
}

// Save はセッションを所有者のみ読み書き可能なファイルに書き込む。
// 一時ファイルに書き込んでからrenameするため、途中の状態は読まれない。
func (f *FileSessionStore) Save(state SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}

// Delete はセッションファイルを削除する。
func (f *FileSessionStore) Delete() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// compile-time interface check
var _ SessionStore = (*FileSessionStore)(nil)
