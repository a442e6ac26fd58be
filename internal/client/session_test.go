package client

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// memoryStore はSessionStoreのテスト用実装。
type memoryStore struct {
	state   *SessionState
	loadErr error
	saveErr error
	deleted bool
}

func (m *memoryStore) Load() (*SessionState, error) { return m.state, m.loadErr }

func (m *memoryStore) Save(state SessionState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = &state
	return nil
}

func (m *memoryStore) Delete() error {
	m.deleted = true
	m.state = nil
	return nil
}

func TestSession_Hydrate_RestoresSavedState(t *testing.T) {
	store := &memoryStore{state: &SessionState{Token: "tok", User: User{ID: "u1", Email: "a@example.com"}}}
	s := NewSession(store)

	if err := s.Hydrate(); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if s.Token() != "tok" {
		t.Errorf("Token() = %q, want tok", s.Token())
	}
	user, ok := s.User()
	if !ok || user.ID != "u1" {
		t.Errorf("User() = %+v, %v, want u1", user, ok)
	}
}

func TestSession_Hydrate_NothingSaved_Unauthenticated(t *testing.T) {
	s := NewSession(&memoryStore{})

	if err := s.Hydrate(); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if s.Authenticated() {
		t.Error("session should be unauthenticated")
	}
	if _, ok := s.User(); ok {
		t.Error("User() should report no user")
	}
}

func TestSession_Hydrate_StoreError(t *testing.T) {
	s := NewSession(&memoryStore{loadErr: errors.New("disk error")})

	if err := s.Hydrate(); err == nil {
		t.Fatal("Hydrate() should return the store error")
	}
}

func TestSession_Begin_PersistsState(t *testing.T) {
	store := &memoryStore{}
	s := NewSession(store)

	if err := s.Begin("tok", User{ID: "u1"}); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if store.state == nil || store.state.Token != "tok" {
		t.Errorf("store state = %+v, want token tok", store.state)
	}
	if !s.Authenticated() {
		t.Error("session should be authenticated after Begin")
	}
}

func TestSession_Begin_EmptyToken(t *testing.T) {
	s := NewSession(&memoryStore{})

	if err := s.Begin("", User{ID: "u1"}); err == nil {
		t.Fatal("Begin() with empty token should fail")
	}
	if s.Authenticated() {
		t.Error("session should stay unauthenticated")
	}
}

func TestSession_Begin_SaveError_KeepsPreviousState(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("read-only")}
	s := NewSession(store)

	if err := s.Begin("tok", User{ID: "u1"}); err == nil {
		t.Fatal("Begin() should return the save error")
	}
	if s.Authenticated() {
		t.Error("session should not hold a token that failed to persist")
	}
}

func TestSession_Clear_RemovesState(t *testing.T) {
	store := &memoryStore{}
	s := NewSession(store)
	_ = s.Begin("tok", User{ID: "u1"})

	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if s.Authenticated() {
		t.Error("session should be unauthenticated after Clear")
	}
	if !store.deleted {
		t.Error("Clear() should delete the persisted state")
	}
}

func TestSession_WithoutStore_MemoryOnly(t *testing.T) {
	s := NewSession(nil)

	if err := s.Hydrate(); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if err := s.Begin("tok", User{ID: "u1"}); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if s.Token() != "tok" {
		t.Errorf("Token() = %q, want tok", s.Token())
	}
	if err := s.Clear(); err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
}

func TestFileSessionStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileSessionStore(path)

	want := SessionState{Token: "tok", User: User{ID: "u1", Username: "hanako", Email: "h@example.com", Role: "user"}}
	if err := store.Save(want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("session file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o, want 600", perm)
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil || *got != want {
		t.Errorf("Load() = %+v, want %+v", got, want)
	}

	if err := store.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, err := store.Load(); err != nil || got != nil {
		t.Errorf("Load() after Delete = %+v, %v, want nil, nil", got, err)
	}
}

func TestFileSessionStore_Delete_MissingFile(t *testing.T) {
	store := NewFileSessionStore(filepath.Join(t.TempDir(), "none.json"))

	if err := store.Delete(); err != nil {
		t.Errorf("Delete() on missing file should succeed, got %v", err)
	}
}

func TestFileSessionStore_Load_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFileSessionStore(path).Load(); err == nil {
		t.Fatal("Load() should fail for a corrupt file")
	}
}

func TestSession_HydrateFromFile_AfterRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	first := NewSession(NewFileSessionStore(path))
	if err := first.Begin("tok", User{ID: "u1"}); err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	second := NewSession(NewFileSessionStore(path))
	if err := second.Hydrate(); err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if second.Token() != "tok" {
		t.Errorf("Token() = %q, want tok", second.Token())
	}
}
