package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"trivia-quiz-service/internal/domain"
)

const (
	usersPrefix = "quiz_users:"

	minPasswordLength = 6
)

// Store is the keyed storage user records live in. Get returns
// domain.ErrNotFound for absent keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// RegisterRequest carries the sign-up form.
type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type storedUser struct {
	domain.User
	PasswordHash []byte `json:"passwordHash"`
}

// Directory registers and authenticates players.
type Directory struct {
	store Store
	cost  int
	now   func() time.Time

	// serializes the email uniqueness check with the insert
	mu sync.Mutex
}

type DirectoryOption func(*Directory)

// WithHashCost sets the bcrypt cost.
func WithHashCost(cost int) DirectoryOption {
	return func(d *Directory) { d.cost = cost }
}

func WithDirectoryClock(now func() time.Time) DirectoryOption {
	return func(d *Directory) { d.now = now }
}

func NewDirectory(store Store, opts ...DirectoryOption) *Directory {
	d := &Directory{
		store: store,
		cost:  bcrypt.DefaultCost,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register creates an account.
func (d *Directory) Register(ctx context.Context, req RegisterRequest) (domain.User, error) {
	if req.Password != req.ConfirmPassword {
		return domain.User{}, domain.ErrPasswordMismatch
	}
	if len(req.Password) < minPasswordLength {
		return domain.User{}, domain.ErrPasswordTooShort
	}
	email := normalizeEmail(req.Email)
	if email == "" {
		return domain.User{}, domain.ErrInvalidCredentials
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.store.Get(ctx, usersPrefix+email); err == nil {
		return domain.User{}, domain.ErrEmailTaken
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), d.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	record := storedUser{
		User: domain.User{
			ID:        uuid.NewString(),
			Name:      strings.TrimSpace(req.Name),
			Email:     email,
			CreatedAt: d.now().UTC(),
		},
		PasswordHash: hash,
	}
	data, err := json.Marshal(record)
	if err != nil {
		return domain.User{}, fmt.Errorf("encode user: %w", err)
	}
	if err := d.store.Set(ctx, usersPrefix+email, data); err != nil {
		return domain.User{}, fmt.Errorf("store user: %w", err)
	}
	return record.User, nil
}

// Login checks credentials.
func (d *Directory) Login(ctx context.Context, email, password string) (domain.User, error) {
	data, err := d.store.Get(ctx, usersPrefix+normalizeEmail(email))
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("lookup user: %w", err)
	}

	var record storedUser
	if err := json.Unmarshal(data, &record); err != nil {
		return domain.User{}, fmt.Errorf("decode user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(record.PasswordHash, []byte(password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return record.User, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
