package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/denizatli/hattakip/internal/domain"
	"github.com/denizatli/hattakip/internal/repo"
)

// maxUserNameLen bounds the display name stored for an authorized user.
const maxUserNameLen = 80

// UserService manages the registry of chats allowed to talk to the bot.
// The registry is administered over the HTTP API; the bot itself only ever
// asks whether a chat is on the list.
type UserService struct {
	users repo.UserRepo
	now   func() time.Time
}

// NewUserService constructs a UserService backed by the given repo.
// A nil now defaults to time.Now.
func NewUserService(users repo.UserRepo, now func() time.Time) *UserService {
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, now: now}
}

// Upsert adds a user to the registry or renames an existing one. The name
// is trimmed, inner whitespace collapsed, and length-capped; an empty name
// or non-positive telegram id is rejected with domain.ErrValidation.
// The returned bool reports whether a new registry entry was created.
func (s *UserService) Upsert(ctx context.Context, telegramID int64, name string) (domain.AuthorizedUser, bool, error) {
	if telegramID <= 0 {
		return domain.AuthorizedUser{}, false, fmt.Errorf("%w: telegram id must be positive", domain.ErrValidation)
	}
	name = sanitizeUserName(name)
	if name == "" {
		return domain.AuthorizedUser{}, false, fmt.Errorf("%w: user name must not be empty", domain.ErrValidation)
	}

	created, err := s.users.Upsert(ctx, domain.AuthorizedUser{
		TelegramID: telegramID,
		Name:       name,
		CreatedAt:  s.now(),
	})
	if err != nil {
		return domain.AuthorizedUser{}, false, fmt.Errorf("service.UserService.Upsert: %w", err)
	}
	user, err := s.users.Get(ctx, telegramID)
	if err != nil {
		return domain.AuthorizedUser{}, false, fmt.Errorf("service.UserService.Upsert: %w", err)
	}
	return user, created, nil
}

// List returns the registry ordered by registration time.
// Always returns a non-nil slice so callers can safely range over it.
func (s *UserService) List(ctx context.Context) ([]domain.AuthorizedUser, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.UserService.List: %w", err)
	}
	if users == nil {
		return []domain.AuthorizedUser{}, nil
	}
	return users, nil
}

// Delete removes a user from the registry. Returns domain.ErrNotFound when
// the id was never registered.
func (s *UserService) Delete(ctx context.Context, telegramID int64) error {
	if err := s.users.Delete(ctx, telegramID); err != nil {
		return fmt.Errorf("service.UserService.Delete: %w", err)
	}
	return nil
}

// IsRegistered reports whether the chat may use the bot.
func (s *UserService) IsRegistered(ctx context.Context, chatID int64) (bool, error) {
	_, err := s.users.Get(ctx, chatID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("service.UserService.IsRegistered: %w", err)
}

// sanitizeUserName trims, collapses runs of inner whitespace to single
// spaces, and caps the length.
func sanitizeUserName(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if len(name) > maxUserNameLen {
		name = name[:maxUserNameLen]
		name = strings.TrimRight(strings.ToValidUTF8(name, ""), " ")
	}
	return name
}
