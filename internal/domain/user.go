// Package domain contains the core game entities and the ports the engine
// depends on.
package domain

import (
	"context"
	"fmt"
	"time"
)

// UserStatus is a player's presence.
type UserStatus string

const (
	UserOnline  UserStatus = "online"
	UserOffline UserStatus = "offline"
	UserPlaying UserStatus = "playing"
)

// ParseUserStatus validates a presence string.
func ParseUserStatus(s string) (UserStatus, error) {
	switch st := UserStatus(s); st {
	case UserOnline, UserOffline, UserPlaying:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown user status %q", ErrValidation, s)
	}
}

// User is a registered player. Score may go negative.
type User struct {
	ID        string     `json:"id"`
	Username  string     `json:"username"`
	Status    UserStatus `json:"status"`
	Score     int        `json:"score"`
	CreatedAt time.Time  `json:"createdAt"`
}

// UserRepository is the port for the identity collaborator.
// Get and GetByUsername return an error wrapping ErrNotFound for unknown
// users; Create returns one wrapping ErrConflict for a taken username.
type UserRepository interface {
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	CreateUser(ctx context.Context, u *User) error
	SaveUser(ctx context.Context, u *User) error
	ListUsers(ctx context.Context) ([]User, error)
}
