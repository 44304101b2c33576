package identity

import (
	"context"
	"errors"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"trivia-quiz-service/internal/domain"
	"trivia-quiz-service/internal/infra/memory"
)

func newDirectory() (*Directory, *memory.KVStore) {
	store := memory.NewKVStore()
	return NewDirectory(store, WithHashCost(bcrypt.MinCost)), store
}

func TestRegisterValidatesForm(t *testing.T) {
	dir, _ := newDirectory()
	ctx := context.Background()

	_, err := dir.Register(ctx, RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "secret1", ConfirmPassword: "secret2"})
	if !errors.Is(err, domain.ErrPasswordMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
	_, err = dir.Register(ctx, RegisterRequest{Name: "Ann", Email: "ann@example.com", Password: "12345", ConfirmPassword: "12345"})
	if !errors.Is(err, domain.ErrPasswordTooShort) {
		t.Fatalf("expected too short, got %v", err)
	}
}

func TestRegisterLoginLogout(t *testing.T) {
	dir, store := newDirectory()
	ctx := context.Background()

	user, err := dir.Register(ctx, RegisterRequest{Name: "Ann", Email: "Ann@Example.com", Password: "secret1", ConfirmPassword: "secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.ID == "" || user.Email != "ann@example.com" {
		t.Fatalf("unexpected user %+v", user)
	}

	raw, err := store.Get(ctx, usersPrefix+"ann@example.com")
	if err != nil {
		t.Fatalf("stored user: %v", err)
	}
	if string(raw) == "" || strings.Contains(string(raw), "secret1") {
		t.Fatalf("password must not be stored in clear: %s", raw)
	}

	if _, err := dir.Register(ctx, RegisterRequest{Name: "Ann 2", Email: "ann@example.com", Password: "secret1", ConfirmPassword: "secret1"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected email taken, got %v", err)
	}

	if _, err := dir.Login(ctx, "ann@example.com", "wrong-pass"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := dir.Login(ctx, "nobody@example.com", "secret1"); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	logged, err := dir.Login(ctx, " ANN@example.com ", "secret1")
	if err != nil || logged.ID != user.ID {
		t.Fatalf("login: %+v %v", logged, err)
	}
}

func TestCurrentUser(t *testing.T) {
	store := memory.NewKVStore()
	current := NewCurrentUser(store)
	ctx := context.Background()

	if _, err := current.Get(ctx); !errors.Is(err, domain.ErrNoUser) {
		t.Fatalf("expected no user, got %v", err)
	}
	if err := current.Set(ctx, domain.User{ID: "u1", Name: "Ann"}); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := current.Get(ctx)
	if err != nil || got.ID != "u1" {
		t.Fatalf("get: %+v %v", got, err)
	}
	if err := current.Logout(ctx); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, err := current.Get(ctx); !errors.Is(err, domain.ErrNoUser) {
		t.Fatalf("expected no user after logout, got %v", err)
	}
}

func TestCurrentUserClearsCorruptRecord(t *testing.T) {
	store := memory.NewKVStore()
	ctx := context.Background()
	_ = store.Set(ctx, currentUserKey, []byte("{broken"))

	if _, err := NewCurrentUser(store).Get(ctx); !errors.Is(err, domain.ErrNoUser) {
		t.Fatalf("expected no user, got %v", err)
	}
	if _, err := store.Get(ctx, currentUserKey); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected corrupt record removed, got %v", err)
	}
}
