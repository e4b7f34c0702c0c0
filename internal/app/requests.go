package app

import (
	"context"
	"fmt"

	"tictactoe/internal/domain"
	"tictactoe/internal/notify"
)

// RequestService drives the invite handshake that precedes play.
type RequestService struct {
	*core
}

// SendRequest creates a pending game from fromID (X) to toID (O) and notifies
// the invitee.
func (s *RequestService) SendRequest(ctx context.Context, fromID, toID string) (*domain.Session, error) {
	if fromID == "" || toID == "" {
		return nil, fmt.Errorf("%w: both players are required", domain.ErrValidation)
	}
	if fromID == toID {
		return nil, fmt.Errorf("%w: cannot invite yourself", domain.ErrValidation)
	}

	from, err := s.loadUser(ctx, fromID)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUser(ctx, toID); err != nil {
		return nil, err
	}

	game := domain.NewSession(s.newID(), fromID, toID, s.now().UTC())

	unlock := s.sessionLocks.lock(game.ID)
	defer unlock()

	if err := s.saveSession(ctx, game); err != nil {
		return nil, err
	}

	s.bus.Publish(notify.GameRequestTopic(toID), notify.GameRequestReceived, GameRequest{
		GameID:       game.ID,
		FromID:       fromID,
		FromUsername: from.Username,
		ToID:         toID,
	})
	s.record(domain.AuditGameRequests, map[string]any{
		"action": "sent",
		"gameId": game.ID,
		"fromId": fromID,
		"toId":   toID,
	})
	return game, nil
}

// AcceptRequest starts a pending game. Both players become playing and the
// turn timer starts for X.
func (s *RequestService) AcceptRequest(ctx context.Context, gameID string) (*domain.Session, error) {
	unlock := s.sessionLocks.lock(gameID)
	defer unlock()

	cur, err := s.loadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if cur.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: game %s is %s, not pending", domain.ErrState, gameID, cur.Status)
	}
	next := *cur
	if err := next.Transition(domain.StatusInProgress); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()

	unlockUsers := s.userLocks.lockAll(next.PlayerX, next.PlayerO)
	defer unlockUsers()

	px, err := s.loadUser(ctx, next.PlayerX)
	if err != nil {
		return nil, err
	}
	po, err := s.loadUser(ctx, next.PlayerO)
	if err != nil {
		return nil, err
	}
	px.Status = domain.UserPlaying
	po.Status = domain.UserPlaying

	if err := s.saveSession(ctx, &next, px, po); err != nil {
		return nil, err
	}

	s.publishUser(px)
	s.publishUser(po)
	s.publishGame(&next)
	s.timer.Start(next.ID)

	s.record(domain.AuditGameRequests, map[string]any{"action": "accepted", "gameId": next.ID})
	return &next, nil
}

// RejectRequest declines a pending game. Users are left untouched.
func (s *RequestService) RejectRequest(ctx context.Context, gameID string) (*domain.Session, error) {
	unlock := s.sessionLocks.lock(gameID)
	defer unlock()

	cur, err := s.loadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if cur.Status != domain.StatusPending {
		return nil, fmt.Errorf("%w: game %s is %s, not pending", domain.ErrState, gameID, cur.Status)
	}
	next := *cur
	if err := next.Transition(domain.StatusRejected); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now().UTC()

	if err := s.saveSession(ctx, &next); err != nil {
		return nil, err
	}

	s.publishGame(&next)
	s.timer.Stop(next.ID)

	s.record(domain.AuditGameRequests, map[string]any{"action": "rejected", "gameId": next.ID})
	return &next, nil
}

// Get returns a game by id.
func (s *RequestService) Get(ctx context.Context, gameID string) (*domain.Session, error) {
	return s.loadSession(ctx, gameID)
}

// PendingFor lists invites waiting on userID, newest first.
func (s *RequestService) PendingFor(ctx context.Context, userID string) ([]domain.Session, error) {
	return s.querySessions(ctx, domain.SessionFilter{Invitee: userID, Status: domain.StatusPending})
}

// GamesFor lists games userID takes part in. An empty status matches all.
func (s *RequestService) GamesFor(ctx context.Context, userID string, status domain.Status) ([]domain.Session, error) {
	if status != "" {
		if _, err := domain.ParseStatus(string(status)); err != nil {
			return nil, err
		}
	}
	return s.querySessions(ctx, domain.SessionFilter{Participant: userID, Status: status})
}
