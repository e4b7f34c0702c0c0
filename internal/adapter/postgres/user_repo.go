package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"tictactoe/internal/domain"
)

var _ domain.UserRepository = (*DB)(nil)

const userColumns = "id, username, status, score, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Username, &u.Status, &u.Score, &u.CreatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUser retrieves a user by ID.
func (d *DB) GetUser(ctx context.Context, id string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: user %s", domain.ErrNotFound, id)
	}
	return u, err
}

// GetUserByUsername retrieves a user by username.
func (d *DB) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: username %q", domain.ErrNotFound, username)
	}
	return u, err
}

// CreateUser inserts a new user.
func (d *DB) CreateUser(ctx context.Context, u *domain.User) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO users ("+userColumns+") VALUES ($1, $2, $3, $4, $5)",
		u.ID, u.Username, u.Status, u.Score, u.CreatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
	}
	return err
}

// SaveUser updates an existing user's mutable fields.
func (d *DB) SaveUser(ctx context.Context, u *domain.User) error {
	return saveUser(ctx, d.sql, u)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveUser(ctx context.Context, ex execer, u *domain.User) error {
	res, err := ex.ExecContext(ctx,
		"UPDATE users SET username = $2, status = $3, score = $4 WHERE id = $1",
		u.ID, u.Username, u.Status, u.Score,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: username %q is taken", domain.ErrConflict, u.Username)
	}
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, u.ID)
	}
	return nil
}

// ListUsers returns all users.
func (d *DB) ListUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}
