// Package redis stores users, games and audit events in Redis as JSON blobs
// with set-based indexes.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"tictactoe/internal/domain"

	goredis "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store writes.
const DefaultPrefix = "ttt:"

// auditCap bounds the audit list.
const auditCap = 10000

// Client wraps a go-redis client that has answered a ping.
type Client struct {
	*goredis.Client
}

// New connects to addr and pings it.
func New(addr, password string) (*Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return &Client{Client: client}, nil
}

// Store implements the domain repositories on Redis.
type Store struct {
	rdb    *goredis.Client
	prefix string
}

var (
	_ domain.UserRepository    = (*Store)(nil)
	_ domain.SessionRepository = (*Store)(nil)
	_ domain.AuditLog          = (*Store)(nil)
)

// NewStore creates a store over c.
func NewStore(c *Client) *Store {
	return &Store{rdb: c.Client, prefix: DefaultPrefix}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.rdb.Close()
}

func (s *Store) userKey(id string) string       { return s.prefix + "user:" + id }
func (s *Store) usernameKey(name string) string { return s.prefix + "username:" + name }
func (s *Store) usersKey() string               { return s.prefix + "users" }
func (s *Store) gameKey(id string) string       { return s.prefix + "game:" + id }
func (s *Store) gamesKey() string               { return s.prefix + "games" }
func (s *Store) userGamesKey(id string) string  { return s.prefix + "games:user:" + id }
func (s *Store) auditKey() string               { return s.prefix + "audit" }

func getJSON[T any](ctx context.Context, rdb *goredis.Client, key string) (*T, error) {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	v := new(T)
	if err := json.Unmarshal(raw, v); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// decodeAll decodes MGET results, skipping keys that vanished.
func decodeAll[T any](vals []any) ([]T, error) {
	out := make([]T, 0, len(vals))
	for _, v := range vals {
		raw, ok := v.(string)
		if !ok {
			continue
		}
		var item T
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}

// --- UserRepository ---

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := getJSON[domain.User](ctx, s.rdb, s.userKey(id))
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return u, err
}

// GetUserByUsername resolves the username index and loads the user.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	id, err := s.rdb.Get(ctx, s.usernameKey(username)).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: username %q", domain.ErrNotFound, username)
	}
	if err != nil {
		return nil, err
	}
	return s.GetUser(ctx, id)
}

// CreateUser claims the username with SETNX, then writes the user.
func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	ok, err := s.rdb.SetNX(ctx, s.usernameKey(u.Username), u.ID, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
	}

	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.userKey(u.ID), data, 0)
		pipe.SAdd(ctx, s.usersKey(), u.ID)
		return nil
	})
	if err != nil {
		s.rdb.Del(context.WithoutCancel(ctx), s.usernameKey(u.Username))
		return err
	}
	return nil
}

// SaveUser overwrites an existing user.
func (s *Store) SaveUser(ctx context.Context, u *domain.User) error {
	if err := s.requireUsers(ctx, u); err != nil {
		return err
	}
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.userKey(u.ID), data, 0).Err()
}

func (s *Store) requireUsers(ctx context.Context, users ...*domain.User) error {
	for _, u := range users {
		n, err := s.rdb.Exists(ctx, s.userKey(u.ID)).Result()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
		}
	}
	return nil
}

// ListUsers returns every registered user.
func (s *Store) ListUsers(ctx context.Context) ([]domain.User, error) {
	ids, err := s.rdb.SMembers(ctx, s.usersKey()).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.userKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.User](vals)
}

// --- SessionRepository ---

// GetSession loads a game by id.
func (s *Store) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	g, err := getJSON[domain.Session](ctx, s.rdb, s.gameKey(id))
	if errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("%w: game %s", domain.ErrNotFound, id)
	}
	return g, err
}

// SaveSession writes the game, its indexes and the changed users in one
// MULTI/EXEC block.
func (s *Store) SaveSession(ctx context.Context, g *domain.Session, changed ...*domain.User) error {
	if err := s.requireUsers(ctx, changed...); err != nil {
		return err
	}
	data, err := json.Marshal(g)
	if err != nil {
		return err
	}
	users := make([][]byte, len(changed))
	for i, u := range changed {
		if users[i], err = json.Marshal(u); err != nil {
			return err
		}
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.gameKey(g.ID), data, 0)
		pipe.SAdd(ctx, s.gamesKey(), g.ID)
		pipe.SAdd(ctx, s.userGamesKey(g.PlayerX), g.ID)
		pipe.SAdd(ctx, s.userGamesKey(g.PlayerO), g.ID)
		for i, u := range changed {
			pipe.Set(ctx, s.userKey(u.ID), users[i], 0)
		}
		return nil
	})
	return err
}

// QuerySessions narrows by the per-user index when possible and filters the
// rest in memory. Results are newest first.
func (s *Store) QuerySessions(ctx context.Context, f domain.SessionFilter) ([]domain.Session, error) {
	index := s.gamesKey()
	switch {
	case f.Participant != "":
		index = s.userGamesKey(f.Participant)
	case f.Invitee != "":
		index = s.userGamesKey(f.Invitee)
	}
	ids, err := s.rdb.SMembers(ctx, index).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.gameKey(id)
	}
	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	games, err := decodeAll[domain.Session](vals)
	if err != nil {
		return nil, err
	}
	return filterGames(games, f), nil
}

func filterGames(games []domain.Session, f domain.SessionFilter) []domain.Session {
	games = slices.DeleteFunc(games, func(g domain.Session) bool { return !f.Match(&g) })
	slices.SortFunc(games, func(a, b domain.Session) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	return games
}

// --- AuditLog ---

// Append pushes an event onto the capped audit list.
func (s *Store) Append(ctx context.Context, e domain.AuditEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.LPush(ctx, s.auditKey(), data)
		pipe.LTrim(ctx, s.auditKey(), 0, auditCap-1)
		return nil
	})
	return err
}
