// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"tictactoe/internal/domain"

	"github.com/jinzhu/copier"
)

// DB implements in-memory storage for users, games and audit events.
// Values are copied in and out so callers never share state with the store.
type DB struct {
	mu        sync.RWMutex
	users     map[string]*domain.User
	usernames map[string]string
	sessions  map[string]*domain.Session
	events    []domain.AuditEvent
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		users:     make(map[string]*domain.User),
		usernames: make(map[string]string),
		sessions:  make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*DB)(nil)
var _ domain.AuditLog = (*DB)(nil)

func clone[T any](src *T) (*T, error) {
	dst := new(T)
	if err := copier.Copy(dst, src); err != nil {
		return nil, fmt.Errorf("copy %T: %w", src, err)
	}
	return dst, nil
}

// --- UserRepository ---

// GetUser returns the user with id.
func (db *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	u, ok := db.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return clone(u)
}

// GetUserByUsername returns the user registered under username.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	id, ok := db.usernames[username]
	if !ok {
		return nil, fmt.Errorf("%w: username %q", domain.ErrNotFound, username)
	}
	return clone(db.users[id])
}

// CreateUser stores a new user. Usernames are unique.
func (db *DB) CreateUser(ctx context.Context, u *domain.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, taken := db.usernames[u.Username]; taken {
		return fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
	}
	if _, exists := db.users[u.ID]; exists {
		return fmt.Errorf("%w: user %s exists", domain.ErrConflict, u.ID)
	}
	c, err := clone(u)
	if err != nil {
		return err
	}
	db.users[u.ID] = c
	db.usernames[u.Username] = u.ID
	return nil
}

// SaveUser overwrites an existing user.
func (db *DB) SaveUser(ctx context.Context, u *domain.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.putUser(u)
}

func (db *DB) checkUser(u *domain.User) error {
	prev, ok := db.users[u.ID]
	if !ok {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
	}
	if prev.Username != u.Username {
		if _, taken := db.usernames[u.Username]; taken {
			return fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
		}
	}
	return nil
}

func (db *DB) putUser(u *domain.User) error {
	if err := db.checkUser(u); err != nil {
		return err
	}
	c, err := clone(u)
	if err != nil {
		return err
	}
	delete(db.usernames, db.users[u.ID].Username)
	db.users[u.ID] = c
	db.usernames[u.Username] = u.ID
	return nil
}

// ListUsers returns every user in no particular order.
func (db *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	out := make([]domain.User, 0, len(db.users))
	for _, u := range db.users {
		out = append(out, *u)
	}
	return out, nil
}

// --- SessionRepository ---

// GetSession returns the game with id.
func (db *DB) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, ok := db.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: game %s", domain.ErrNotFound, id)
	}
	return clone(s)
}

// SaveSession upserts s and the changed users under one lock. Nothing is
// written if any user is unknown.
func (db *DB) SaveSession(ctx context.Context, s *domain.Session, changed ...*domain.User) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range changed {
		if err := db.checkUser(u); err != nil {
			return err
		}
	}
	c, err := clone(s)
	if err != nil {
		return err
	}
	for _, u := range changed {
		if err := db.putUser(u); err != nil {
			return err
		}
	}
	db.sessions[s.ID] = c
	return nil
}

// QuerySessions returns games matching f, newest first.
func (db *DB) QuerySessions(ctx context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var out []domain.Session
	for _, s := range db.sessions {
		if f.Match(s) {
			out = append(out, *s)
		}
	}
	slices.SortFunc(out, func(a, b domain.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return out, nil
}

// --- AuditLog ---

// Append records an audit event.
func (db *DB) Append(ctx context.Context, e domain.AuditEvent) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	e.Data = maps.Clone(e.Data)
	db.events = append(db.events, e)
	return nil
}

// Events returns the recorded audit events, oldest first.
func (db *DB) Events() []domain.AuditEvent {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return slices.Clone(db.events)
}
