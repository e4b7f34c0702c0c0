package app

import (
	"context"
	"errors"
	"fmt"

	"tictactoe/internal/domain"
	"tictactoe/internal/logger"
)

// MoveService validates and applies moves and passes.
type MoveService struct {
	*core
}

// ApplyMove places the acting player's symbol at (x, y).
func (s *MoveService) ApplyMove(ctx context.Context, gameID, userID string, x, y int) (*domain.Session, error) {
	unlock := s.sessionLocks.lock(gameID)
	defer unlock()

	return s.step(ctx, gameID, userID, &cellRef{x, y})
}

// Pass hands the turn to the opponent without touching the board.
func (s *MoveService) Pass(ctx context.Context, gameID, userID string) (*domain.Session, error) {
	unlock := s.sessionLocks.lock(gameID)
	defer unlock()

	return s.step(ctx, gameID, userID, nil)
}

type cellRef struct{ x, y int }

// step runs one move or pass. The caller holds the session lock.
func (s *MoveService) step(ctx context.Context, gameID, userID string, at *cellRef) (*domain.Session, error) {
	cur, err := s.loadSession(ctx, gameID)
	if err != nil {
		return nil, err
	}
	if cur.Status != domain.StatusInProgress {
		return nil, fmt.Errorf("%w: game %s is %s", domain.ErrState, gameID, cur.Status)
	}
	symbol := cur.SymbolOf(userID)
	if symbol == domain.Empty {
		return nil, fmt.Errorf("%w: %s is not playing game %s", domain.ErrAuthorization, userID, gameID)
	}
	if symbol != cur.CurrentTurn {
		return nil, fmt.Errorf("%w: it is %s's turn", domain.ErrAuthorization, cur.CurrentTurn)
	}

	next := *cur
	next.UpdatedAt = s.now().UTC()

	outcome := domain.Outcome{Result: domain.Ongoing}
	if at != nil {
		if err := next.Board.Apply(at.x, at.y, symbol); err != nil {
			return nil, err
		}
		outcome = next.Board.Evaluate()
	}

	var changed []*domain.User
	switch outcome.Result {
	case domain.Ongoing:
		next.CurrentTurn = symbol.Opponent()
		if err := s.saveSession(ctx, &next); err != nil {
			return nil, err
		}
	default:
		unlockUsers := s.userLocks.lockAll(next.PlayerX, next.PlayerO)
		defer unlockUsers()

		changed, err = s.settle(ctx, &next, outcome)
		if err != nil {
			return nil, err
		}
		if err := s.saveSession(ctx, &next, changed...); err != nil {
			return nil, err
		}
	}

	s.publishGame(&next)
	for _, u := range changed {
		s.publishUser(u)
	}

	if next.Status.Terminal() {
		s.timer.Stop(next.ID)
	} else {
		s.timer.Start(next.ID)
	}

	data := map[string]any{
		"gameId": next.ID,
		"userId": userID,
		"status": string(next.Status),
		"board":  next.Board.Encode(),
	}
	if at != nil {
		data["action"] = "move"
		data["x"], data["y"] = at.x, at.y
	} else {
		data["action"] = "pass"
	}
	if next.Winner != "" {
		data["winner"] = next.Winner
	}
	s.record(domain.AuditGameUpdates, data)

	return &next, nil
}

// settle applies a terminal outcome to the session and both players. The
// returned users are not yet persisted.
func (s *MoveService) settle(ctx context.Context, next *domain.Session, outcome domain.Outcome) ([]*domain.User, error) {
	px, err := s.loadUser(ctx, next.PlayerX)
	if err != nil {
		return nil, err
	}
	po, err := s.loadUser(ctx, next.PlayerO)
	if err != nil {
		return nil, err
	}

	switch outcome.Result {
	case domain.Win:
		if err := next.Transition(domain.StatusFinished); err != nil {
			return nil, err
		}
		next.Winner = next.PlayerOf(outcome.Winner)
		if outcome.Winner == domain.X {
			px.Score++
			po.Score--
		} else {
			po.Score++
			px.Score--
		}
	case domain.Draw:
		if err := next.Transition(domain.StatusDraw); err != nil {
			return nil, err
		}
	}

	px.Status = domain.UserOnline
	po.Status = domain.UserOnline
	return []*domain.User{px, po}, nil
}

// expire is the TurnTimer callback. It passes for whoever holds the turn,
// unless a move or a newer timer got there first.
func (s *MoveService) expire(gameID string, gen uint64) {
	unlock := s.sessionLocks.lock(gameID)
	defer unlock()

	if !s.timer.Current(gameID, gen) {
		return
	}

	ctx := context.Background()
	cur, err := s.loadSession(ctx, gameID)
	if err != nil {
		s.timer.StopIf(gameID, gen)
		logger.Error("auto-pass dropped", logger.Fields{"game": gameID, "error": err})
		return
	}

	player := cur.PlayerOf(cur.CurrentTurn)
	if _, err := s.step(ctx, gameID, player, nil); err != nil {
		s.timer.StopIf(gameID, gen)
		if errors.Is(err, domain.ErrState) {
			logger.Debug("auto-pass skipped", logger.Fields{"game": gameID, "error": err})
			return
		}
		logger.Error("auto-pass failed", logger.Fields{"game": gameID, "error": err})
		return
	}
	logger.Debug("auto-pass applied", logger.Fields{"game": gameID, "player": player})
}
