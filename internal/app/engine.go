// Package app holds the game session engine: the request handshake, move
// processing, turn timers and user presence.
package app

import (
	"context"
	"fmt"
	"time"

	"tictactoe/internal/domain"
	"tictactoe/internal/logger"
	"tictactoe/internal/notify"

	"github.com/google/uuid"
)

// DefaultStoreTimeout bounds every persistence call.
const DefaultStoreTimeout = 3 * time.Second

// Options tune an Engine. Zero values select defaults.
type Options struct {
	TurnTimeout  time.Duration
	StoreTimeout time.Duration
	// Audit receives fire-and-forget event records. Nil disables auditing.
	Audit domain.AuditLog
	Now   func() time.Time
	NewID func() string
}

// Engine wires the services that share one store, bus and timer.
type Engine struct {
	Requests *RequestService
	Moves    *MoveService
	Users    *UserService

	core *core
}

// New builds an Engine. The bus lifecycle stays with the caller.
func New(users domain.UserRepository, sessions domain.SessionRepository, bus *notify.Bus, opts Options) *Engine {
	c := &core{
		users:        users,
		sessions:     sessions,
		bus:          bus,
		audit:        opts.Audit,
		sessionLocks: newKeyedLocks(),
		userLocks:    newKeyedLocks(),
		timer:        NewTurnTimer(opts.TurnTimeout),
		storeTimeout: opts.StoreTimeout,
		now:          opts.Now,
		newID:        opts.NewID,
	}
	if c.storeTimeout <= 0 {
		c.storeTimeout = DefaultStoreTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}

	moves := &MoveService{core: c}
	c.timer.OnExpire(moves.expire)

	return &Engine{
		Requests: &RequestService{core: c},
		Moves:    moves,
		Users:    &UserService{core: c},
		core:     c,
	}
}

// Resume arms a fresh turn countdown for every game the store holds in
// progress and returns how many were armed. Countdowns live only in memory,
// so call it once after New when the store outlives the process.
func (e *Engine) Resume(ctx context.Context) (int, error) {
	games, err := e.core.querySessions(ctx, domain.SessionFilter{Status: domain.StatusInProgress})
	if err != nil {
		return 0, fmt.Errorf("resume turn timers: %w", err)
	}
	for _, g := range games {
		e.core.timer.Start(g.ID)
	}
	return len(games), nil
}

// Close cancels all pending turn timers.
func (e *Engine) Close() {
	e.core.timer.StopAll()
}

type core struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	bus      *notify.Bus
	audit    domain.AuditLog

	sessionLocks *keyedLocks
	userLocks    *keyedLocks
	timer        *TurnTimer

	storeTimeout time.Duration
	now          func() time.Time
	newID        func() string
}

func (c *core) loadSession(ctx context.Context, id string) (*domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	s, err := c.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load game %s: %w", id, err)
	}
	return s, nil
}

func (c *core) loadUser(ctx context.Context, id string) (*domain.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	u, err := c.users.GetUser(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
	return u, nil
}

func (c *core) saveSession(ctx context.Context, s *domain.Session, changed ...*domain.User) error {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	if err := c.sessions.SaveSession(ctx, s, changed...); err != nil {
		return fmt.Errorf("save game %s: %w", s.ID, err)
	}
	return nil
}

func (c *core) querySessions(ctx context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.storeTimeout)
	defer cancel()
	out, err := c.sessions.QuerySessions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	return out, nil
}

func (c *core) publishGame(s *domain.Session) {
	c.bus.Publish(notify.GameUpdatedTopic(s.ID), notify.GameUpdated, *s)
}

func (c *core) publishUser(u *domain.User) {
	c.bus.Publish(notify.UserStatusTopic, notify.UserStatusChanged, UserStatus{
		UserID:   u.ID,
		Username: u.Username,
		Status:   u.Status,
		Score:    u.Score,
	})
}

// record appends to the audit log in the background. Errors are logged and
// otherwise ignored.
func (c *core) record(eventType string, data map[string]any) {
	if c.audit == nil {
		return
	}
	ev := domain.AuditEvent{Type: eventType, Data: data, CreatedAt: c.now().UTC()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.storeTimeout)
		defer cancel()
		if err := c.audit.Append(ctx, ev); err != nil {
			logger.Error("audit append failed", logger.Fields{"type": eventType, "error": err})
		}
	}()
}

// UserStatus is the payload of user-status-changed events.
type UserStatus struct {
	UserID   string            `json:"userId"`
	Username string            `json:"username"`
	Status   domain.UserStatus `json:"status"`
	Score    int               `json:"score"`
}

// GameRequest is the payload of game-request-received events.
type GameRequest struct {
	GameID       string `json:"gameId"`
	FromID       string `json:"fromId"`
	FromUsername string `json:"fromUsername"`
	ToID         string `json:"toId"`
}
