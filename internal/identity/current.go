package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"trivia-quiz-service/internal/domain"
)

const currentUserKey = "quiz_current_user"

// CurrentUser remembers who is signed in on a single-user front end such as
// the terminal client. Servers identify players by token instead.
type CurrentUser struct {
	store Store
}

func NewCurrentUser(store Store) *CurrentUser {
	return &CurrentUser{store: store}
}

// Get returns the signed-in user or domain.ErrNoUser. An unreadable record
// is cleared.
func (c *CurrentUser) Get(ctx context.Context) (domain.User, error) {
	data, err := c.store.Get(ctx, currentUserKey)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrNoUser
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load current user: %w", err)
	}
	var user domain.User
	if err := json.Unmarshal(data, &user); err != nil || user.ID == "" {
		_ = c.store.Delete(ctx, currentUserKey)
		return domain.User{}, domain.ErrNoUser
	}
	return user, nil
}

// Set signs user in.
func (c *CurrentUser) Set(ctx context.Context, user domain.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode current user: %w", err)
	}
	if err := c.store.Set(ctx, currentUserKey, data); err != nil {
		return fmt.Errorf("store current user: %w", err)
	}
	return nil
}

// Logout forgets the signed-in user.
func (c *CurrentUser) Logout(ctx context.Context) error {
	if err := c.store.Delete(ctx, currentUserKey); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
