package app

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"tictactoe/internal/domain"
)

// MaxUsernameLength caps registered handles.
const MaxUsernameLength = 32

// UserService manages registration and presence.
type UserService struct {
	*core
}

// Register creates a new online user. A taken username yields ErrConflict.
func (s *UserService) Register(ctx context.Context, username string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if len(username) > MaxUsernameLength {
		return nil, fmt.Errorf("%w: username longer than %d characters", domain.ErrValidation, MaxUsernameLength)
	}

	u := &domain.User{
		ID:        s.newID(),
		Username:  username,
		Status:    domain.UserOnline,
		CreatedAt: s.now().UTC(),
	}

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.users.CreateUser(sctx, u); err != nil {
		return nil, fmt.Errorf("register %q: %w", username, err)
	}

	s.publishUser(u)
	s.record(domain.AuditUserStatus, map[string]any{
		"action":   "registered",
		"userId":   u.ID,
		"username": u.Username,
		"status":   string(u.Status),
	})
	return u, nil
}

// UpdateStatus sets a user's presence.
func (s *UserService) UpdateStatus(ctx context.Context, userID string, status domain.UserStatus) (*domain.User, error) {
	if _, err := domain.ParseUserStatus(string(status)); err != nil {
		return nil, err
	}

	unlock := s.userLocks.lock(userID)
	defer unlock()

	u, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u.Status == status {
		return u, nil
	}
	u.Status = status

	sctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := s.users.SaveUser(sctx, u); err != nil {
		return nil, fmt.Errorf("save user %s: %w", userID, err)
	}

	s.publishUser(u)
	s.record(domain.AuditUserStatus, map[string]any{
		"action": "status",
		"userId": u.ID,
		"status": string(u.Status),
	})
	return u, nil
}

// Get returns a user by id.
func (s *UserService) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.loadUser(ctx, userID)
}

// GetByUsername returns a user by handle.
func (s *UserService) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	u, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, fmt.Errorf("load user %q: %w", username, err)
	}
	return u, nil
}

// List returns every user ordered by username.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	slices.SortFunc(users, func(a, b domain.User) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

// Leaderboard ranks users by score, highest first, ties by username.
// A non-positive limit returns everyone.
func (s *UserService) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	users, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(users, func(a, b domain.User) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if limit > 0 && len(users) > limit {
		users = users[:limit]
	}
	return users, nil
}
