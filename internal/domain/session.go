package domain

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of a Session.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusFinished   Status = "finished"
	StatusDraw       Status = "draw"
	StatusRejected   Status = "rejected"
)

// ParseStatus validates a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusInProgress, StatusFinished, StatusDraw, StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("%w: unknown game status %q", ErrValidation, s)
	}
}

// Terminal reports whether no further mutation is valid.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusDraw || s == StatusRejected
}

// CanTransition encodes the one-way state machine.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusPending:
		return to == StatusInProgress || to == StatusRejected
	case StatusInProgress:
		return to == StatusFinished || to == StatusDraw
	default:
		return false
	}
}

// Session is one match between two users. Winner holds the winning user's
// id and is set only when Status is finished.
type Session struct {
	ID          string    `json:"id"`
	PlayerX     string    `json:"playerX"`
	PlayerO     string    `json:"playerO"`
	Board       Board     `json:"board"`
	CurrentTurn Cell      `json:"currentTurn"`
	Status      Status    `json:"status"`
	Winner      string    `json:"winner,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewSession builds a pending invite from inviter (X) to invitee (O).
func NewSession(id, inviter, invitee string, now time.Time) *Session {
	return &Session{
		ID:          id,
		PlayerX:     inviter,
		PlayerO:     invitee,
		CurrentTurn: X,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SymbolOf returns the symbol userID plays, or Empty for non-participants.
func (s *Session) SymbolOf(userID string) Cell {
	switch userID {
	case s.PlayerX:
		return X
	case s.PlayerO:
		return O
	default:
		return Empty
	}
}

// PlayerOf returns the user id holding symbol.
func (s *Session) PlayerOf(symbol Cell) string {
	switch symbol {
	case X:
		return s.PlayerX
	case O:
		return s.PlayerO
	default:
		return ""
	}
}

// Transition moves the session to a new status, enforcing the state machine.
func (s *Session) Transition(to Status) error {
	if !s.Status.CanTransition(to) {
		return fmt.Errorf("%w: game %s is %s, cannot become %s", ErrState, s.ID, s.Status, to)
	}
	s.Status = to
	return nil
}

// SessionFilter narrows Query results. Zero fields match everything.
// Participant matches either player; Invitee matches PlayerO only.
type SessionFilter struct {
	Participant string
	Invitee     string
	Status      Status
}

// Match reports whether s satisfies the filter.
func (f SessionFilter) Match(s *Session) bool {
	if f.Participant != "" && s.PlayerX != f.Participant && s.PlayerO != f.Participant {
		return false
	}
	if f.Invitee != "" && s.PlayerO != f.Invitee {
		return false
	}
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	return true
}

// SessionRepository is the port for game persistence. GetSession returns an
// error wrapping ErrNotFound for unknown ids. SaveSession upserts the session
// together with any users the same step changed, atomically where the backend
// allows. QuerySessions returns matches newest first.
type SessionRepository interface {
	GetSession(ctx context.Context, id string) (*Session, error)
	SaveSession(ctx context.Context, s *Session, changed ...*User) error
	QuerySessions(ctx context.Context, f SessionFilter) ([]Session, error)
}
